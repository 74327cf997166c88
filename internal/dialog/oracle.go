package dialog

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/google/generative-ai-go/genai"
	"google.golang.org/api/option"
)

const oracleSystemPrompt = `You answer questions for the Cancer Association of Zimbabwe WhatsApp service.
Answer briefly and factually about cancer, screening, treatment, support services,
opening hours and how to book an appointment. If the question is outside those
topics, or you do not know the answer, reply starting with "Sorry".`

// GeminiOracle answers free-text questions through Google's Gemini API.
// It satisfies the engine's Oracle interface; the engine interprets the
// sentinel substring, not this client.
type GeminiOracle struct {
	client  *genai.Client
	modelID string
}

func NewGeminiOracle(ctx context.Context, apiKey, modelID string) (*GeminiOracle, error) {
	if strings.TrimSpace(apiKey) == "" {
		return nil, errors.New("dialog: gemini api key is required")
	}
	if strings.TrimSpace(modelID) == "" {
		modelID = "gemini-2.5-flash"
	}
	client, err := genai.NewClient(ctx, option.WithAPIKey(apiKey))
	if err != nil {
		return nil, fmt.Errorf("dialog: create gemini client: %w", err)
	}
	return &GeminiOracle{client: client, modelID: modelID}, nil
}

func (o *GeminiOracle) Query(ctx context.Context, sessionID, text string) (string, error) {
	model := o.client.GenerativeModel(o.modelID)
	model.SetTemperature(0.2)
	model.SetMaxOutputTokens(512)
	model.SystemInstruction = genai.NewUserContent(genai.Text(oracleSystemPrompt))

	cs := model.StartChat()
	resp, err := cs.SendMessage(ctx, genai.Text(text))
	if err != nil {
		return "", fmt.Errorf("dialog: gemini query: %w", err)
	}
	if len(resp.Candidates) == 0 {
		return "", errors.New("dialog: gemini returned no candidates")
	}
	candidate := resp.Candidates[0]
	if candidate.Content == nil || len(candidate.Content.Parts) == 0 {
		return "", errors.New("dialog: gemini returned empty content")
	}

	var answer strings.Builder
	for _, part := range candidate.Content.Parts {
		if t, ok := part.(genai.Text); ok {
			answer.WriteString(string(t))
		}
	}
	return strings.TrimSpace(answer.String()), nil
}

func (o *GeminiOracle) Close() error {
	if o.client != nil {
		return o.client.Close()
	}
	return nil
}
