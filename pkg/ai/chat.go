package ai

import (
	"context"
	"fmt"
	"regexp"
	"strings"

	"go.uber.org/zap"
)

// Greeting is the persona's opening line.
const Greeting = "Greetings. I am Valluvar. How may I guide you through the complexities of this modern age?"

// DefaultMaxHistory bounds how many prior messages are sent with each turn.
const DefaultMaxHistory = 20

const personaPrompt = `You are the ancient Tamil poet and philosopher Thiruvalluvar, living in the year 2025.
Your task is to provide advice to users on their modern problems using the wisdom from your Thirukkural.

Current User Language: %s

Guidelines:
1. Persona: Maintain a wise, calm, and poetic tone.
2. Language:
   - IF User Language is TAMIL: Respond ONLY in Tamil (formal but understandable). You can use English for technical terms if absolutely needed, but prefer Tamil.
   - IF User Language is ENGLISH: Respond in English, but you may quote the Kural in Tamil (transliterated or script) followed by meaning.
3. Content:
   - Listen to the user's problem.
   - Quote a relevant Kural if applicable.
   - EXPLAIN how that Kural applies to the specific modern situation.
   - Give practical, actionable advice.
4. Tone: Benevolent, philosophical, yet grounded and practical.
5. Context: You understand 2025 technology, society, and struggles.
6. Formatting: use plain text only. Do not use markdown (no bold, italics, or code blocks).

Respond to the user's latest input in the requested language.`

// PersonaPrompt renders the persona instructions for lang ("ta" or "en").
func PersonaPrompt(lang string) string {
	name := "ENGLISH"
	if lang == "ta" {
		name = "TAMIL"
	}
	return fmt.Sprintf(personaPrompt, name)
}

// Chat converses as Thiruvalluvar.
type Chat struct {
	Gen        Generator
	MaxHistory int
	Logger     *zap.Logger
}

func NewChat(gen Generator, logger *zap.Logger) *Chat {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Chat{Gen: gen, MaxHistory: DefaultMaxHistory, Logger: logger}
}

// Reply answers message given the prior conversation. Only the most recent
// MaxHistory messages of history are sent.
func (c *Chat) Reply(ctx context.Context, history []Message, message, lang string) (string, error) {
	message = strings.TrimSpace(message)
	if message == "" {
		return "", ErrEmptyMessage
	}
	if c.MaxHistory > 0 && len(history) > c.MaxHistory {
		history = history[len(history)-c.MaxHistory:]
	}

	msgs := make([]Message, 0, len(history)+3)
	msgs = append(msgs,
		Message{Role: RoleUser, Text: PersonaPrompt(lang)},
		Message{Role: RoleModel, Text: Greeting},
	)
	for _, m := range history {
		if strings.TrimSpace(m.Text) == "" {
			continue
		}
		if m.Role != RoleModel {
			m.Role = RoleUser
		}
		msgs = append(msgs, m)
	}
	msgs = append(msgs, Message{Role: RoleUser, Text: message})

	reply, err := c.Gen.Generate(ctx, Request{Messages: msgs})
	if err != nil {
		c.Logger.Warn("chat failed", zap.Error(err))
		return "", fmt.Errorf("chat: %w", err)
	}
	return StripMarkdown(reply.Text), nil
}

var (
	markdownCleaner = strings.NewReplacer("**", "", "*", "", "```", "")
	headerPrefix    = regexp.MustCompile(`(?m)^#+\s`)
)

// StripMarkdown removes bold, italics, code fences and leading header marks.
func StripMarkdown(s string) string {
	s = markdownCleaner.Replace(s)
	s = headerPrefix.ReplaceAllString(s, "")
	return strings.TrimSpace(s)
}
