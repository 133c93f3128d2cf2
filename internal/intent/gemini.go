package intent

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/google/generative-ai-go/genai"
	"google.golang.org/api/option"

	"dentalbot/internal/session"
)

const defaultGeminiModel = "gemini-1.5-flash"

// generator is the single model call the classifier needs.
type generator interface {
	Generate(ctx context.Context, prompt string) (string, error)
}

// Gemini classifies intents with a Gemini model.
type Gemini struct {
	gen    generator
	closer func() error
}

func NewGemini(ctx context.Context, apiKey, modelID string) (*Gemini, error) {
	if strings.TrimSpace(apiKey) == "" {
		return nil, errors.New("intent: gemini api key is required")
	}
	if strings.TrimSpace(modelID) == "" {
		modelID = defaultGeminiModel
	}
	client, err := genai.NewClient(ctx, option.WithAPIKey(apiKey))
	if err != nil {
		return nil, fmt.Errorf("intent: failed to create gemini client: %w", err)
	}
	model := client.GenerativeModel(modelID)
	model.SetTemperature(0)
	model.ResponseMIMEType = "application/json"
	model.SystemInstruction = genai.NewUserContent(genai.Text(systemPrompt))
	return &Gemini{gen: genaiGenerator{model: model}, closer: client.Close}, nil
}

// Close releases the underlying client.
func (g *Gemini) Close() error {
	if g.closer != nil {
		return g.closer()
	}
	return nil
}

const systemPrompt = `You classify messages sent to a dental clinic's booking assistant.
Answer with a JSON array containing zero or more of: "booking", "cancel", "reschedule", "price_inquiry".
Answer [] when the message only answers a question (yes, no, a name, a date, a number).`

func (g *Gemini) DetectIntents(ctx context.Context, text string, c Context) ([]session.Intent, error) {
	raw, err := g.gen.Generate(ctx, buildPrompt(text, c))
	if err != nil {
		return nil, fmt.Errorf("intent: gemini request failed: %w", err)
	}
	intents, err := parseIntents(raw)
	if err != nil {
		return nil, err
	}
	return intents, nil
}

func buildPrompt(text string, c Context) string {
	var b strings.Builder
	if len(c.History) > 0 {
		b.WriteString("Recent conversation:\n")
		for _, m := range c.History {
			fmt.Fprintf(&b, "%s: %s\n", m.Role, m.Text)
		}
	}
	if len(c.Known) > 0 {
		known := make([]string, len(c.Known))
		for i, k := range c.Known {
			known[i] = string(k)
		}
		fmt.Fprintf(&b, "Active intents: %s\n", strings.Join(known, ", "))
	}
	fmt.Fprintf(&b, "Message: %s\n", text)
	return b.String()
}

// parseIntents reads the JSON array out of a model reply, tolerating code fences.
func parseIntents(raw string) ([]session.Intent, error) {
	start := strings.Index(raw, "[")
	end := strings.LastIndex(raw, "]")
	if start < 0 || end < start {
		return nil, fmt.Errorf("intent: no JSON array in model reply %q", raw)
	}
	var values []string
	if err := json.Unmarshal([]byte(raw[start:end+1]), &values); err != nil {
		return nil, fmt.Errorf("intent: failed to decode model reply: %w", err)
	}
	out := make([]session.Intent, 0, len(values))
	for _, v := range values {
		out = append(out, session.Intent(strings.ToLower(strings.TrimSpace(v))))
	}
	return normalize(out), nil
}

type genaiGenerator struct {
	model *genai.GenerativeModel
}

func (g genaiGenerator) Generate(ctx context.Context, prompt string) (string, error) {
	resp, err := g.model.GenerateContent(ctx, genai.Text(prompt))
	if err != nil {
		return "", err
	}
	if len(resp.Candidates) == 0 || resp.Candidates[0].Content == nil {
		return "", errors.New("intent: gemini returned no candidates")
	}
	var sb strings.Builder
	for _, part := range resp.Candidates[0].Content.Parts {
		if text, ok := part.(genai.Text); ok {
			sb.WriteString(string(text))
		}
	}
	return sb.String(), nil
}
