// Package protocol defines the records exchanged with the agent over the
// message channel.
package protocol

import (
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
)

type MessageType string

const (
	// TypeStart is sent once when the channel opens.
	TypeStart MessageType = "start"
	// TypeAgentMessage carries the agent's next utterance.
	TypeAgentMessage MessageType = "agent_message"
	// TypeUserMessage carries the resolved transcript of a turn.
	TypeUserMessage MessageType = "user_message"
	// TypeSessionEnded is sent right before the channel is closed.
	TypeSessionEnded MessageType = "session_ended"
)

var (
	ErrUnknownType    = errors.New("unknown message type")
	ErrInvalidMessage = errors.New("invalid message")
)

type Message struct {
	Type MessageType `json:"type" jsonschema:"enum=start,enum=agent_message,enum=user_message,enum=session_ended"`
	Text string      `json:"text,omitempty" jsonschema:"description=Utterance text of agent and user messages"`
	// AudioData is base64 audio that takes priority over synthesizing Text.
	AudioData string `json:"audioData,omitempty" jsonschema:"description=Base64 encoded agent audio,contentEncoding=base64"`
	Reason    string `json:"reason,omitempty" jsonschema:"description=Why the session ended"`
}

func Start() Message { return Message{Type: TypeStart} }

func UserMessage(text string) Message {
	return Message{Type: TypeUserMessage, Text: text}
}

func SessionEnded(reason string) Message {
	return Message{Type: TypeSessionEnded, Reason: reason}
}

func AgentMessage(text string, audio []byte) Message {
	msg := Message{Type: TypeAgentMessage, Text: text}
	if len(audio) > 0 {
		msg.AudioData = base64.StdEncoding.EncodeToString(audio)
	}
	return msg
}

// Audio decodes AudioData. It returns nil when the message carries no audio.
func (m Message) Audio() ([]byte, error) {
	if m.AudioData == "" {
		return nil, nil
	}

	audio, err := base64.StdEncoding.DecodeString(m.AudioData)
	if err != nil {
		return nil, fmt.Errorf("failed to decode audio data: %w", err)
	}
	return audio, nil
}

func (m Message) Validate() error {
	switch m.Type {
	case TypeStart:
	case TypeAgentMessage:
		if m.Text == "" && m.AudioData == "" {
			return fmt.Errorf("%w: agent_message needs text or audioData", ErrInvalidMessage)
		}
	case TypeUserMessage:
		if m.Text == "" {
			return fmt.Errorf("%w: user_message needs text", ErrInvalidMessage)
		}
	case TypeSessionEnded:
		if m.Reason == "" {
			return fmt.Errorf("%w: session_ended needs a reason", ErrInvalidMessage)
		}
	default:
		return fmt.Errorf("%w: %q", ErrUnknownType, m.Type)
	}
	return nil
}

func Encode(m Message) ([]byte, error) {
	if err := m.Validate(); err != nil {
		return nil, err
	}

	data, err := json.Marshal(m)
	if err != nil {
		return nil, fmt.Errorf("error marshalling JSON: %w", err)
	}
	return data, nil
}

func Decode(data []byte) (Message, error) {
	var m Message
	if err := json.Unmarshal(data, &m); err != nil {
		return Message{}, fmt.Errorf("%w: %w", ErrInvalidMessage, err)
	}
	if err := m.Validate(); err != nil {
		return Message{}, err
	}
	return m, nil
}
