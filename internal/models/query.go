package models

import "encoding/json"

// Query is the inbound "where are you" payload delivered by the platform
// bridge. Chat queries carry extra presentation fields the agent does not
// interpret; Raw preserves the full payload for chat history.
type Query struct {
	TeamID      string `json:"teamId"`
	MemberName  string `json:"memberName"`
	Accuracy    int    `json:"accuracy,omitempty"`
	Target      string `json:"target,omitempty"`
	MessageType string `json:"messageType,omitempty"`
	Host        string `json:"host,omitempty"`
	Time        string `json:"time,omitempty"` // epoch millis as string

	Raw json.RawMessage `json:"-"`
}

// ParseQuery decodes an inbound query while retaining the raw payload.
func ParseQuery(raw []byte) (Query, error) {
	var q Query
	if err := json.Unmarshal(raw, &q); err != nil {
		return Query{}, err
	}
	q.Raw = append(json.RawMessage(nil), raw...)
	return q, nil
}
