package conversation

import "fmt"

// Role represents the role of a message sender.
type Role string

const (
	RoleSystem    Role = "system"
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

// Valid reports whether r is one of the known roles.
func (r Role) Valid() bool {
	switch r {
	case RoleSystem, RoleUser, RoleAssistant:
		return true
	}
	return false
}

// Message is a single chat turn. Values are treated as immutable.
type Message struct {
	Role    Role   `json:"role"`
	Content string `json:"content"`
}

// Validate checks the message role.
func (m Message) Validate() error {
	if !m.Role.Valid() {
		return fmt.Errorf("invalid role %q", m.Role)
	}
	return nil
}

// SystemMessage creates a system message.
func SystemMessage(content string) Message {
	return Message{Role: RoleSystem, Content: content}
}

// UserMessage creates a user message.
func UserMessage(content string) Message {
	return Message{Role: RoleUser, Content: content}
}

// AssistantMessage creates an assistant message.
func AssistantMessage(content string) Message {
	return Message{Role: RoleAssistant, Content: content}
}

// Conversation is an ordered message log.
type Conversation []Message

// Clone returns an independent copy. A nil conversation clones to an empty,
// non-nil one so callers can encode it as [] rather than null.
func (c Conversation) Clone() Conversation {
	out := make(Conversation, len(c))
	copy(out, c)
	return out
}

// SystemIndex returns the index of the first system message, or -1.
func (c Conversation) SystemIndex() int {
	for i, m := range c {
		if m.Role == RoleSystem {
			return i
		}
	}
	return -1
}

// HasSystem reports whether the conversation contains a system message.
func (c Conversation) HasSystem() bool {
	return c.SystemIndex() >= 0
}

// Last returns the final message, if any.
func (c Conversation) Last() (Message, bool) {
	if len(c) == 0 {
		return Message{}, false
	}
	return c[len(c)-1], true
}
