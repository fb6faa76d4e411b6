package models

// OutboundMessage is the wire body posted to the messaging relay. It is
// built once per post and not reused.
type OutboundMessage struct {
	MemberName  string `json:"memberName"`
	TeamID      string `json:"teamId"`
	MessageType string `json:"messageType"`
	Content     string `json:"content,omitempty"`
	Icon        string `json:"icon,omitempty"`
	Blocked     bool   `json:"blocked,omitempty"`
	TrackerOff  string `json:"trackerOff,omitempty"`
}

// TokenMessage is the push-token refresh body posted to the push server.
// Unlike OutboundMessage it carries no messageType field.
type TokenMessage struct {
	Name      string `json:"name"`
	Team      string `json:"team"`
	Token     string `json:"token"`
	TokenType int    `json:"tokenType"`
	UUID      string `json:"uuid"`
}
