// Package protocol defines the JSON frames exchanged on the live intake
// socket. Clients send text and control frames; the server answers with
// agent messages, a single intake_complete, and error frames.
package protocol

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/medvoice-ai/medvoice/pkg/core/intake"
)

// CloseUnknownSession is sent as the WebSocket close code when the path
// names a session the gateway does not know.
const CloseUnknownSession = 4004

type DecodeError struct {
	Code    string
	Message string
	Param   string
}

func (e *DecodeError) Error() string {
	if e == nil {
		return ""
	}
	if strings.TrimSpace(e.Param) == "" {
		return e.Message
	}
	return fmt.Sprintf("%s (%s)", e.Message, e.Param)
}

func badRequest(message, param string) *DecodeError {
	return &DecodeError{Code: "bad_request", Message: message, Param: param}
}

func unsupported(message, param string) *DecodeError {
	return &DecodeError{Code: "unsupported", Message: message, Param: param}
}

type ClientUserMessage struct {
	Type string `json:"type"`
	Text string `json:"text"`
}

type ClientControl struct {
	Type string `json:"type"`
	Op   string `json:"op"`
}

// DecodeClientMessage parses one inbound text frame. The error is always a
// *DecodeError carrying a wire code.
func DecodeClientMessage(data []byte) (any, error) {
	var envelope struct {
		Type string `json:"type"`
	}
	if err := json.Unmarshal(data, &envelope); err != nil {
		return nil, badRequest("invalid json frame", "")
	}
	typ := strings.TrimSpace(envelope.Type)
	if typ == "" {
		return nil, badRequest("missing type", "type")
	}

	switch typ {
	case "user_message":
		var msg ClientUserMessage
		if err := json.Unmarshal(data, &msg); err != nil {
			return nil, badRequest("invalid user_message frame", "")
		}
		if strings.TrimSpace(msg.Text) == "" {
			return nil, badRequest("user_message.text is required", "text")
		}
		return msg, nil
	case "control":
		var msg ClientControl
		if err := json.Unmarshal(data, &msg); err != nil {
			return nil, badRequest("invalid control frame", "")
		}
		op := strings.TrimSpace(msg.Op)
		if op == "" {
			return nil, badRequest("control.op is required", "op")
		}
		if op != "end_session" {
			return nil, unsupported("unsupported control operation", "op")
		}
		msg.Op = op
		return msg, nil
	default:
		return nil, badRequest("unsupported message type", "type")
	}
}

// ServerAgentMessage carries one agent utterance plus the interview state
// after the turn. State is the active section's wire value.
type ServerAgentMessage struct {
	Type       string `json:"type"`
	Text       string `json:"text"`
	State      string `json:"state"`
	IsComplete bool   `json:"is_complete"`
}

// ServerIntakeComplete is pushed exactly once, when the interview reaches
// the terminal section, with the collected record.
type ServerIntakeComplete struct {
	Type   string        `json:"type"`
	Record intake.Record `json:"record"`
}

type ServerError struct {
	Type    string `json:"type"`
	Code    string `json:"code"`
	Message string `json:"message"`
	Close   bool   `json:"close,omitempty"`
}
