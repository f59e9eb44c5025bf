package ai

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/japaniel/thirukkural/pkg/kural"
)

// Section is the explanation in one language.
type Section struct {
	Context string   `json:"context"`
	Insight string   `json:"insight"`
	Modern  []string `json:"modern"`
}

// Explanation holds the English and Tamil interpretations of a kural.
type Explanation struct {
	EN    Section `json:"en"`
	TA    Section `json:"ta"`
	Model string  `json:"-"`
}

// For returns the section for lang, defaulting to English.
func (e Explanation) For(lang string) Section {
	if lang == "ta" {
		return e.TA
	}
	return e.EN
}

const explainPrompt = `Analyze Thirukkural Number %d:
"%s
%s"
Meaning: "%s"

Please provide a CONCISE explanation in both English and Tamil.
IMPORTANT: Do NOT use markdown formatting, bold text, or asterisks (**). Output plain text only.

Return the response ONLY as a JSON object with the following structure:
{
  "en": {
    "context": "Brief context about the Kural's meaning/situation. DO NOT mention the Paal or Adhigaram names.",
    "insight": "Concise insight into the meaning.",
    "modern": ["Actionable step 1", "Actionable step 2", "Actionable step 3", "Actionable step 4"]
  },
  "ta": {
    "context": "Brief context in Tamil about the situation. DO NOT mention the Paal or Adhigaram names.",
    "insight": "Concise insight in Tamil.",
    "modern": ["Actionable step 1 in Tamil", "Actionable step 2 in Tamil", "Actionable step 3 in Tamil", "Actionable step 4 in Tamil"]
  }
}`

// ExplainPrompt renders the prompt for k.
func ExplainPrompt(k kural.Kural) string {
	meaning := k.MeaningEnglish
	if meaning == "" {
		meaning = k.MeaningTamil
	}
	return fmt.Sprintf(explainPrompt, k.Number, k.Line1, k.Line2, meaning)
}

// Explainer asks a Generator for a structured interpretation of a kural.
type Explainer struct {
	Gen    Generator
	Logger *zap.Logger
}

func NewExplainer(gen Generator, logger *zap.Logger) *Explainer {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Explainer{Gen: gen, Logger: logger}
}

func (e *Explainer) Explain(ctx context.Context, k kural.Kural) (Explanation, error) {
	reply, err := e.Gen.Generate(ctx, Request{
		Messages: []Message{{Role: RoleUser, Text: ExplainPrompt(k)}},
		JSON:     true,
	})
	if err != nil {
		return Explanation{}, fmt.Errorf("explain kural %d: %w", k.Number, err)
	}
	exp, err := ParseExplanation(reply.Text)
	if err != nil {
		e.Logger.Warn("unparseable explanation",
			zap.Int("kural", k.Number),
			zap.String("model", reply.Model),
			zap.String("raw", reply.Text))
		return Explanation{}, fmt.Errorf("explain kural %d: %w", k.Number, err)
	}
	exp.Model = reply.Model
	return exp, nil
}

var explanationCleaner = strings.NewReplacer("```json", "", "```", "", "**", "", "*", "")

type rawSection struct {
	Context string          `json:"context"`
	Insight string          `json:"insight"`
	Modern  json.RawMessage `json:"modern"`
}

// ParseExplanation strips formatting artifacts from a model reply and decodes it.
func ParseExplanation(text string) (Explanation, error) {
	cleaned := strings.TrimSpace(explanationCleaner.Replace(text))
	if i, j := strings.Index(cleaned, "{"), strings.LastIndex(cleaned, "}"); i >= 0 && j > i {
		cleaned = cleaned[i : j+1]
	}
	var raw struct {
		EN *rawSection `json:"en"`
		TA *rawSection `json:"ta"`
	}
	if err := json.Unmarshal([]byte(cleaned), &raw); err != nil {
		return Explanation{}, fmt.Errorf("%w: %v", ErrMalformedResponse, err)
	}
	if raw.EN == nil && raw.TA == nil {
		return Explanation{}, fmt.Errorf("%w: no en or ta section", ErrMalformedResponse)
	}
	return Explanation{EN: raw.EN.section(), TA: raw.TA.section()}, nil
}

func (r *rawSection) section() Section {
	if r == nil {
		return Section{Modern: []string{}}
	}
	return Section{Context: r.Context, Insight: r.Insight, Modern: normalizeModern(r.Modern)}
}

// normalizeModern keeps an array, wraps a lone string and drops anything else.
func normalizeModern(raw json.RawMessage) []string {
	var list []any
	if err := json.Unmarshal(raw, &list); err == nil {
		out := make([]string, 0, len(list))
		for _, v := range list {
			switch v := v.(type) {
			case string:
				out = append(out, v)
			case nil:
			default:
				out = append(out, fmt.Sprint(v))
			}
		}
		return out
	}
	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		return []string{s}
	}
	return []string{}
}
