package session

import (
	"context"
	"sync"

	"github.com/ashureev/gridassist/internal/gridservice"
)

// fakeService is a scriptable gridservice.Service. When block is non-nil each
// call signals entered and then waits for block (or ctx) before answering.
type fakeService struct {
	mu        sync.Mutex
	loadCalls []string
	chatCalls []string

	loadFn func(ctx context.Context, caseName string) (gridservice.LoadResult, error)
	chatFn func(ctx context.Context, text string) (gridservice.ChatResult, error)

	entered chan struct{}
	block   chan struct{}
}

func (f *fakeService) LoadCase(ctx context.Context, caseName string) (gridservice.LoadResult, error) {
	f.mu.Lock()
	f.loadCalls = append(f.loadCalls, caseName)
	f.mu.Unlock()
	if err := f.wait(ctx); err != nil {
		return gridservice.LoadResult{}, err
	}
	if f.loadFn == nil {
		return gridservice.LoadResult{}, nil
	}
	return f.loadFn(ctx, caseName)
}

func (f *fakeService) SendMessage(ctx context.Context, text string) (gridservice.ChatResult, error) {
	f.mu.Lock()
	f.chatCalls = append(f.chatCalls, text)
	f.mu.Unlock()
	if err := f.wait(ctx); err != nil {
		return gridservice.ChatResult{}, err
	}
	if f.chatFn == nil {
		return gridservice.ChatResult{}, nil
	}
	return f.chatFn(ctx, text)
}

func (f *fakeService) wait(ctx context.Context) error {
	if f.entered != nil {
		f.entered <- struct{}{}
	}
	if f.block == nil {
		return nil
	}
	select {
	case <-f.block:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (f *fakeService) calls() (loads, chats int) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.loadCalls), len(f.chatCalls)
}
