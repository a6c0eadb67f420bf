// Package oracle asks a language model for fortunes.
package oracle

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/nedaZarei/CrystalBallFortunes/pkg/models"
)

const (
	SystemRole = "You are a fortune-telling crystal ball."
	Hazy       = "The crystal ball is hazy... please try again."
)

var ErrMissingAPIKey = errors.New("oracle: api key is not configured")

// Oracle completes a single system+user exchange.
type Oracle interface {
	Complete(ctx context.Context, system, prompt string) (string, error)
}

type Params struct {
	Model       string
	MaxTokens   int
	Temperature float32
}

// Prompt builds the user message for one set of answers.
func Prompt(answers models.UserAnswers) string {
	raw, err := json.Marshal(answers)
	if err != nil {
		raw = []byte("{}")
	}
	return fmt.Sprintf(`You are a mystical fortune teller.
The user has provided the following information: %s.
Generate a short fortune, in one to three sentences, in a whimsical, mystical style.
Begin each fortune with "Adentus Furiosi says: ", encasing the fortune, not the 'Adentus Furiosi says: ', in quotation marks.`, raw)
}

// Teller turns answers into a fortune.
type Teller struct {
	oracle Oracle
	log    *slog.Logger
}

func NewTeller(o Oracle, log *slog.Logger) *Teller {
	if log == nil {
		log = slog.Default()
	}
	return &Teller{oracle: o, log: log}
}

// Tell returns the trimmed completion, or Hazy when the model returned nothing.
// Provider errors are returned unchanged for the caller to map.
func (t *Teller) Tell(ctx context.Context, answers models.UserAnswers) (models.Fortune, error) {
	text, err := t.oracle.Complete(ctx, SystemRole, Prompt(answers))
	if err != nil {
		t.log.ErrorContext(ctx, "oracle failed", slog.Any("error", err))
		return "", err
	}
	text = strings.TrimSpace(text)
	if text == "" {
		t.log.WarnContext(ctx, "oracle returned an empty completion")
		return Hazy, nil
	}
	return models.Fortune(text), nil
}
