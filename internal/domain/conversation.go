package domain

import "time"

// Role tags who produced a conversation entry.
type Role string

const (
	RoleSystem    Role = "system"
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
	RoleError     Role = "error"
)

const (
	// WelcomeText seeds every new conversation.
	WelcomeText = "Welcome to the **Power System Gemini Helper**. Load a case to begin."
	// ChatFailureText is logged when the assistant could not answer.
	ChatFailureText = "Failed to get response."
)

// ConversationEntry is one turn in the chat log.
type ConversationEntry struct {
	Role Role      `json:"role"`
	Text string    `json:"text"`
	At   time.Time `json:"at"`
}

// NewEntry stamps an entry with the current time.
func NewEntry(role Role, text string) ConversationEntry {
	return ConversationEntry{Role: role, Text: text, At: time.Now().UTC()}
}

// WelcomeEntry returns the system boot message.
func WelcomeEntry() ConversationEntry {
	return NewEntry(RoleSystem, WelcomeText)
}
