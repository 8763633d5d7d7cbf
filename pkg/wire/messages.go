// Package wire defines the JSON envelopes exchanged with the live analysis
// service. Inbound decoding is deliberately loose: the service has shipped
// several shapes for the same signals and unknown fields are ignored.
package wire

import (
	"bytes"
	"encoding/json"

	"github.com/auralis-ai/auralis/pkg/audio"
)

// SetupMessage declares the desired response modality and persona prompt.
type SetupMessage struct {
	Setup Setup `json:"setup"`
}

type Setup struct {
	Model             string           `json:"model"`
	GenerationConfig  GenerationConfig `json:"generationConfig"`
	SystemInstruction *Content         `json:"systemInstruction,omitempty"`
}

type GenerationConfig struct {
	ResponseModalities []string `json:"responseModalities"`
}

type Content struct {
	Role  string `json:"role,omitempty"`
	Parts []Part `json:"parts"`
}

type Part struct {
	Text string `json:"text,omitempty"`
}

// RealtimeInputMessage carries encoded audio toward the service.
type RealtimeInputMessage struct {
	RealtimeInput RealtimeInput `json:"realtimeInput"`
}

type RealtimeInput struct {
	MediaChunks []audio.Chunk `json:"mediaChunks"`
}

// ClientContentMessage is the explicit turn prompt sent after a flushed
// utterance in segmented mode.
type ClientContentMessage struct {
	ClientContent ClientContent `json:"clientContent"`
}

type ClientContent struct {
	Turns        []Content `json:"turns"`
	TurnComplete bool      `json:"turnComplete"`
}

func NewSetup(model, systemPrompt string) SetupMessage {
	msg := SetupMessage{
		Setup: Setup{
			Model:            model,
			GenerationConfig: GenerationConfig{ResponseModalities: []string{"TEXT"}},
		},
	}
	if systemPrompt != "" {
		msg.Setup.SystemInstruction = &Content{Parts: []Part{{Text: systemPrompt}}}
	}
	return msg
}

func NewRealtimeInput(chunks ...audio.Chunk) RealtimeInputMessage {
	return RealtimeInputMessage{RealtimeInput: RealtimeInput{MediaChunks: chunks}}
}

func NewTurnPrompt(text string) ClientContentMessage {
	return ClientContentMessage{
		ClientContent: ClientContent{
			Turns:        []Content{{Role: "user", Parts: []Part{{Text: text}}}},
			TurnComplete: true,
		},
	}
}

// ServerMessage is the inbound envelope. Exactly one of the signal fields is
// expected per message; callers check them in a fixed order.
type ServerMessage struct {
	SetupComplete json.RawMessage `json:"setupComplete,omitempty"`
	Error         *ServerError    `json:"error,omitempty"`
	ServerContent *ServerContent  `json:"serverContent,omitempty"`
}

type ServerError struct {
	Message string `json:"message"`
}

type ServerContent struct {
	ModelTurn    *ModelTurn `json:"modelTurn,omitempty"`
	TurnComplete bool       `json:"turnComplete,omitempty"`
	Interrupted  bool       `json:"interrupted,omitempty"`
}

type ModelTurn struct {
	Parts []Part `json:"parts,omitempty"`
}

// IsSetupComplete reports whether the setup marker is present. The service
// has emitted it both as an empty object and as a bare boolean.
func (m ServerMessage) IsSetupComplete() bool {
	raw := bytes.TrimSpace(m.SetupComplete)
	if len(raw) == 0 {
		return false
	}
	return !bytes.Equal(raw, []byte("null")) && !bytes.Equal(raw, []byte("false"))
}

// Fragments returns the text parts of a content payload in arrival order.
func (c *ServerContent) Fragments() []string {
	if c == nil || c.ModelTurn == nil {
		return nil
	}
	var out []string
	for _, p := range c.ModelTurn.Parts {
		if p.Text != "" {
			out = append(out, p.Text)
		}
	}
	return out
}

// ParseServerMessage decodes one inbound transport payload.
func ParseServerMessage(data []byte) (ServerMessage, error) {
	var msg ServerMessage
	if err := json.Unmarshal(data, &msg); err != nil {
		return ServerMessage{}, err
	}
	return msg, nil
}
