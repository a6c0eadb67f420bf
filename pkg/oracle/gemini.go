package oracle

import (
	"context"
	"fmt"
	"strings"

	"github.com/google/generative-ai-go/genai"
	"google.golang.org/api/option"
)

type Gemini struct {
	client *genai.Client
	params Params
}

func NewGemini(ctx context.Context, apiKey string, p Params) (*Gemini, error) {
	if apiKey == "" {
		return nil, ErrMissingAPIKey
	}
	client, err := genai.NewClient(ctx, option.WithAPIKey(apiKey))
	if err != nil {
		return nil, fmt.Errorf("oracle: gemini client: %w", err)
	}
	return &Gemini{client: client, params: p}, nil
}

func (g *Gemini) Complete(ctx context.Context, system, prompt string) (string, error) {
	model := g.client.GenerativeModel(g.params.Model)
	model.SystemInstruction = genai.NewUserContent(genai.Text(system))
	model.SetTemperature(g.params.Temperature)
	model.SetMaxOutputTokens(int32(g.params.MaxTokens))

	resp, err := model.GenerateContent(ctx, genai.Text(prompt))
	if err != nil {
		return "", fmt.Errorf("oracle: gemini: %w", err)
	}
	return geminiText(resp), nil
}

func geminiText(resp *genai.GenerateContentResponse) string {
	if resp == nil || len(resp.Candidates) == 0 || resp.Candidates[0].Content == nil {
		return ""
	}
	var sb strings.Builder
	for _, part := range resp.Candidates[0].Content.Parts {
		if t, ok := part.(genai.Text); ok {
			sb.WriteString(string(t))
		}
	}
	return sb.String()
}

func (g *Gemini) Close() error {
	return g.client.Close()
}
