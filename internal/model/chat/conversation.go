package chat

import "errors"

// ErrSystemMessage is returned when a caller tries to append a second system message.
var ErrSystemMessage = errors.New("conversation already has a system message")

// Conversation holds the ordered message history of one session.
// The first message is always the system message; messages are only ever appended.
type Conversation struct {
	messages []Message
}

// NewConversation starts a history containing only the system message.
func NewConversation(systemPrompt string) *Conversation {
	messages := make([]Message, 0, 16)
	messages = append(messages, SystemMessage(systemPrompt))
	return &Conversation{messages: messages}
}

// Append adds a user or assistant message to the end of the history.
func (c *Conversation) Append(message Message) error {
	if message.Role == RoleSystem {
		return ErrSystemMessage
	}
	c.messages = append(c.messages, message)
	return nil
}

// Messages returns a copy of the history in chronological order.
func (c *Conversation) Messages() []Message {
	copied := make([]Message, len(c.messages))
	copy(copied, c.messages)
	return copied
}

// Len reports the number of messages, including the system message.
func (c *Conversation) Len() int {
	return len(c.messages)
}

// Last returns the most recent message.
func (c *Conversation) Last() Message {
	return c.messages[len(c.messages)-1]
}
