package webhook

import (
	"fmt"

	wa "whatsapp-inbox/pkg/models"
)

// ExtractContent returns the text stored for an inbound message: the body for
// text messages, otherwise a bracketed label for the kind with any caption,
// filename or title the provider sent.
func ExtractContent(msg wa.InboundEvent) string {
	switch msg.Type {
	case "text", "":
		if msg.Text != nil {
			return msg.Text.Body
		}
		return "[text]"
	case "image":
		return mediaLabel("image", msg.Image, false)
	case "video":
		return mediaLabel("video", msg.Video, false)
	case "audio":
		return "[audio]"
	case "sticker":
		return "[sticker]"
	case "document":
		return mediaLabel("document", msg.Document, true)
	case "location":
		if loc := msg.Location; loc != nil {
			if loc.Name != "" {
				return "[location]: " + loc.Name
			}
			return fmt.Sprintf("[location]: %.6f,%.6f", loc.Latitude, loc.Longitude)
		}
		return "[location]"
	case "button":
		if msg.Button != nil && msg.Button.Text != "" {
			return "[button]: " + msg.Button.Text
		}
		return "[button]"
	case "interactive":
		if in := msg.Interactive; in != nil {
			switch {
			case in.ButtonReply != nil:
				return "[interactive]: " + in.ButtonReply.Title
			case in.ListReply != nil:
				return "[interactive]: " + in.ListReply.Title
			}
		}
		return "[interactive]"
	case "reaction":
		if msg.Reaction != nil && msg.Reaction.Emoji != "" {
			return "[reaction]: " + msg.Reaction.Emoji
		}
		return "[reaction]"
	default:
		return "[" + msg.Type + "]"
	}
}

func mediaLabel(kind string, m *wa.MediaMessage, useFilename bool) string {
	label := "[" + kind + "]"
	if m == nil {
		return label
	}
	if m.Caption != "" {
		return label + ": " + m.Caption
	}
	if useFilename && m.Filename != "" {
		return label + ": " + m.Filename
	}
	return label
}
