package core

// Conversation is the ordered, append-only message log of one invocation.
//
// Contract:
//   - Len never decreases
//   - Append stores a deep copy; appended messages are never mutated
//   - Messages and Last return defensive copies
//
// A Conversation is owned by a single invocation and is not safe for
// concurrent use; the orchestration loop appends from one goroutine only.
type Conversation struct {
	messages []Message
}

// NewConversation seeds a conversation with the given messages.
func NewConversation(seed ...Message) *Conversation {
	c := &Conversation{messages: make([]Message, 0, len(seed)+8)}
	for _, m := range seed {
		c.Append(m)
	}

	return c
}

// Append adds m to the end of the log.
func (c *Conversation) Append(m Message) {
	c.messages = append(c.messages, m.clone())
}

// Len returns the number of messages.
func (c *Conversation) Len() int { return len(c.messages) }

// Last returns the most recent message and false if the log is empty.
func (c *Conversation) Last() (Message, bool) {
	if len(c.messages) == 0 {
		return Message{}, false
	}

	return c.messages[len(c.messages)-1].clone(), true
}

// Messages returns a copy of the full log in order.
func (c *Conversation) Messages() []Message {
	out := make([]Message, len(c.messages))
	for i, m := range c.messages {
		out[i] = m.clone()
	}

	return out
}

// PendingToolCalls returns the calls of the last assistant message that have
// no matching tool result yet.
func (c *Conversation) PendingToolCalls() []ToolCall {
	var (
		calls []ToolCall
		seen  = map[string]bool{}
	)

	for i := len(c.messages) - 1; i >= 0; i-- {
		m := c.messages[i]
		if m.Role == RoleTool && m.ToolResult != nil {
			seen[m.ToolResult.CallID] = true
			continue
		}

		if m.Role == RoleAssistant {
			for _, tc := range m.ToolCalls {
				if !seen[tc.ID] {
					calls = append(calls, tc)
				}
			}
		}

		break
	}

	return calls
}
