package models

// ExecutionContext is the runtime state of one execution between persistence
// writes. It lives only in process memory and must stay reconstructible from
// the Execution row plus a resumed node id and replayed variables, because a
// pause may outlive the process.
type ExecutionContext struct {
	ExecutionID     string         `json:"execution_id"`
	AutomationID    string         `json:"automation_id"`
	ContactID       string         `json:"contact_id"`
	ConversationID  string         `json:"conversation_id"`
	TriggerPayload  map[string]any `json:"trigger_payload,omitempty"`
	Variables       map[string]any `json:"variables,omitempty"`
	LastUserMessage string         `json:"last_user_message,omitempty"`
}

// SetVariable stores a value in the variable bag, allocating it lazily.
func (c *ExecutionContext) SetVariable(key string, value any) {
	if c.Variables == nil {
		c.Variables = make(map[string]any)
	}

	c.Variables[key] = value
}
