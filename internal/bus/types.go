package bus

// InboundMessage represents one event received from the messaging transport.
// Group and broadcast chats are filtered out by the channel before publishing.
type InboundMessage struct {
	ConversationID     string `json:"conversation_id"`     // stable identifier of the remote party
	ChatID             string `json:"chat_id"`             // transport routing handle (used only for sends)
	Text               string `json:"text,omitempty"`
	ImagePresent       bool   `json:"image_present,omitempty"`
	Caption            string `json:"caption,omitempty"`
	OperatorOriginated bool   `json:"operator_originated,omitempty"` // outbound message authored by the human operator
}
