package relay

import (
	"encoding/json"
	"errors"
	"fmt"

	"github.com/code-100-precent/LingRelay/internal/models"
)

var (
	// ErrMalformedFrame is returned for frames that are not a JSON object with a string type.
	ErrMalformedFrame = errors.New("relay: malformed frame")
	// ErrUnknownFrame is returned for well-formed frames of an unsupported type.
	ErrUnknownFrame = errors.New("relay: unknown frame type")
)

// InboundFrame is a client frame.
type InboundFrame struct {
	Type    string `json:"type"`
	Content string `json:"content,omitempty"`
}

// HistoryFrame is sent once after a session opens.
type HistoryFrame struct {
	Type     string               `json:"type"`
	Messages []models.UserMessage `json:"messages"`
}

// MessageFrame echoes a stored message back to its sender.
type MessageFrame struct {
	Type    string              `json:"type"`
	Message *models.UserMessage `json:"message"`
}

// ErrorFrame reports a failed send.
type ErrorFrame struct {
	Type    string `json:"type"`
	Message string `json:"message"`
}

// DecodeFrame parses a client frame. Unknown types are returned together with ErrUnknownFrame.
func DecodeFrame(data []byte) (InboundFrame, error) {
	var f InboundFrame
	if err := json.Unmarshal(data, &f); err != nil {
		return InboundFrame{}, fmt.Errorf("%w: %v", ErrMalformedFrame, err)
	}
	switch f.Type {
	case FrameTypeMessage, FrameTypeRead:
		return f, nil
	case "":
		return f, fmt.Errorf("%w: missing type", ErrMalformedFrame)
	}
	return f, fmt.Errorf("%w: %q", ErrUnknownFrame, f.Type)
}

func newHistoryFrame(messages []models.UserMessage) HistoryFrame {
	if messages == nil {
		messages = []models.UserMessage{}
	}
	return HistoryFrame{Type: FrameTypeHistory, Messages: messages}
}

func newMessageFrame(m *models.UserMessage) MessageFrame {
	return MessageFrame{Type: FrameTypeMessage, Message: m}
}

func newErrorFrame(message string) ErrorFrame {
	return ErrorFrame{Type: FrameTypeError, Message: message}
}
