// Package ai proxies explanation and chat prompts to a generative text model.
package ai

import (
	"context"
	"errors"
)

var (
	// ErrMissingAPIKey is returned when no credentials are configured.
	ErrMissingAPIKey = errors.New("ai: missing API key")
	// ErrMalformedResponse is returned when a reply cannot be parsed.
	ErrMalformedResponse = errors.New("ai: malformed response")
	// ErrEmptyMessage is returned for a blank chat message.
	ErrEmptyMessage = errors.New("ai: empty message")
	// ErrEmptyReply is returned when a model answers with no text.
	ErrEmptyReply = errors.New("ai: empty reply")
)

// Role marks who authored a message.
type Role string

const (
	RoleUser  Role = "user"
	RoleModel Role = "model"
)

type Message struct {
	Role Role   `json:"role"`
	Text string `json:"content"`
}

// Request is one generation call. System is sent as a system instruction;
// JSON asks the backend for a JSON response body.
type Request struct {
	System   string
	Messages []Message
	JSON     bool
}

// Reply carries the generated text and the model that produced it.
type Reply struct {
	Text  string
	Model string
}

// Generator produces text for a request.
type Generator interface {
	Generate(ctx context.Context, req Request) (Reply, error)
}

// Disabled is the Generator used when no API key is available.
type Disabled struct{}

func (Disabled) Generate(context.Context, Request) (Reply, error) {
	return Reply{}, ErrMissingAPIKey
}

// Message keys for user-facing failures, resolved through the i18n bundle.
const (
	MsgMissingKey = "ai.missing_key"
	MsgMalformed  = "ai.malformed"
	MsgFailed     = "ai.failed"
	MsgChatFailed = "chat.failed"
)

// MessageKey maps an error from this package to the key of the text shown
// to the user.
func MessageKey(err error) string {
	switch {
	case errors.Is(err, ErrMissingAPIKey):
		return MsgMissingKey
	case errors.Is(err, ErrMalformedResponse):
		return MsgMalformed
	default:
		return MsgFailed
	}
}
