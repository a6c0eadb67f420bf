package oracle

import (
	"context"
	"fmt"
	"net/http"

	"github.com/nedaZarei/CrystalBallFortunes/config"
)

const (
	defaultGeminiModel    = "gemini-1.5-flash"
	defaultAnthropicModel = "claude-3-5-haiku-latest"
)

// New builds the provider named in cfg.Provider.
func New(ctx context.Context, cfg config.Oracle) (Oracle, error) {
	if cfg.APIKey == "" {
		return nil, ErrMissingAPIKey
	}
	p := Params{Model: cfg.Model, MaxTokens: cfg.MaxTokens, Temperature: cfg.Temperature}
	if p.MaxTokens <= 0 {
		p.MaxTokens = 100
	}

	switch cfg.Provider {
	case "gemini", "":
		if p.Model == "" {
			p.Model = defaultGeminiModel
		}
		return NewGemini(ctx, cfg.APIKey, p)
	case "anthropic":
		if p.Model == "" {
			p.Model = defaultAnthropicModel
		}
		return NewAnthropic(cfg.APIKey, p)
	case "huggingface":
		return NewHuggingFace(cfg.URL, cfg.APIKey, p, &http.Client{Timeout: cfg.Timeout})
	default:
		return nil, fmt.Errorf("oracle: unknown provider %q", cfg.Provider)
	}
}
