package models

// CallbackAction type of callback action
type CallbackAction string

const (
	CallbackContacted    CallbackAction = "c"
	CallbackNotContacted CallbackAction = "nc"
	CallbackReset        CallbackAction = "r"
)

// CallbackData structure for inline button callback
type CallbackData struct {
	Action CallbackAction `json:"a"`
	LeadID int64          `json:"l"`
}
