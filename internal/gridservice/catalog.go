package gridservice

import (
	"context"
	"log/slog"

	"github.com/ashureev/gridassist/internal/domain"
)

// Catalog returns the cases svc can load. Services that cannot list cases, or
// fail to, fall back to the built-in catalog; fromService reports which was used.
func Catalog(ctx context.Context, svc Service) (cases []domain.Case, fromService bool) {
	lister, ok := svc.(CaseLister)
	if !ok {
		return domain.DefaultCases(), false
	}
	ids, err := lister.ListCases(ctx)
	if err != nil || len(ids) == 0 {
		if err != nil {
			slog.Debug("Falling back to built-in case catalog", "error", err)
		}
		return domain.DefaultCases(), false
	}

	cases = make([]domain.Case, 0, len(ids))
	for _, id := range ids {
		if c, known := domain.LookupCase(id); known {
			cases = append(cases, c)
			continue
		}
		cases = append(cases, domain.Case{ID: id, Title: id})
	}
	return cases, true
}
