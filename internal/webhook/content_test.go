package webhook

import (
	"testing"

	wa "whatsapp-inbox/pkg/models"
)

func TestExtractContent(t *testing.T) {
	tests := []struct {
		name string
		msg  wa.InboundEvent
		want string
	}{
		{"text", wa.InboundEvent{Type: "text", Text: &wa.TextBody{Body: "hi"}}, "hi"},
		{"text without body", wa.InboundEvent{Type: "text"}, "[text]"},
		{"image with caption", wa.InboundEvent{Type: "image", Image: &wa.MediaMessage{Caption: "cat"}}, "[image]: cat"},
		{"image bare", wa.InboundEvent{Type: "image", Image: &wa.MediaMessage{ID: "1"}}, "[image]"},
		{"document filename", wa.InboundEvent{Type: "document", Document: &wa.MediaMessage{Filename: "a.pdf"}}, "[document]: a.pdf"},
		{"audio", wa.InboundEvent{Type: "audio", Audio: &wa.MediaMessage{ID: "1"}}, "[audio]"},
		{"named location", wa.InboundEvent{Type: "location", Location: &wa.LocationMessage{Name: "Office"}}, "[location]: Office"},
		{"coordinates", wa.InboundEvent{Type: "location", Location: &wa.LocationMessage{Latitude: 12.5, Longitude: 77.25}}, "[location]: 12.500000,77.250000"},
		{"button", wa.InboundEvent{Type: "button", Button: &wa.ButtonMessage{Text: "Yes"}}, "[button]: Yes"},
		{"list reply", wa.InboundEvent{Type: "interactive", Interactive: &wa.InteractiveMessage{ListReply: &wa.ListReply{Title: "Plan B"}}}, "[interactive]: Plan B"},
		{"reaction", wa.InboundEvent{Type: "reaction", Reaction: &wa.ReactionMessage{Emoji: "👍"}}, "[reaction]: 👍"},
		{"unsupported", wa.InboundEvent{Type: "order"}, "[order]"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := ExtractContent(tt.msg); got != tt.want {
				t.Errorf("ExtractContent() = %q, want %q", got, tt.want)
			}
		})
	}
}
