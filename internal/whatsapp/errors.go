package whatsapp

import (
	"errors"
	"fmt"
)

// APIError is a non-2xx answer from the Cloud API.
type APIError struct {
	Status    int
	Code      int
	Message   string
	UserTitle string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("whatsapp api error (status %d, code %d): %s", e.Status, e.Code, e.Message)
}

var codeHints = map[int]string{
	190:    "Access token expired or invalid",
	131026: "Phone number not registered with WhatsApp Business",
	131047: "Message template required. Try messaging from WhatsApp first.",
	131051: "Invalid phone number format",
	131052: "User is not a WhatsApp user",
	100:    "Invalid phone number or access token",
	4:      "Rate limit exceeded",
}

// UserMessage is the text shown to the dashboard user for a failed send.
func (e *APIError) UserMessage() string {
	msg := "Failed to send message"
	switch {
	case e.UserTitle != "":
		msg = e.UserTitle
	case e.Message != "":
		msg = e.Message
	}
	if hint, ok := codeHints[e.Code]; ok {
		msg += " - " + hint
	}
	if e.Code != 0 {
		msg += fmt.Sprintf(" (Error code: %d)", e.Code)
	}
	return msg
}

// UserMessage unwraps err to an APIError when it can; anything else reads as a
// generic failure.
func UserMessage(err error) string {
	var apiErr *APIError
	if errors.As(err, &apiErr) {
		return apiErr.UserMessage()
	}
	return "Failed to send message"
}
