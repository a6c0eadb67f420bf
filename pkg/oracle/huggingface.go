package oracle

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
)

// HuggingFace talks to a text-generation inference endpoint.
type HuggingFace struct {
	url    string
	apiKey string
	params Params
	client *http.Client
}

func NewHuggingFace(url, apiKey string, p Params, client *http.Client) (*HuggingFace, error) {
	if apiKey == "" {
		return nil, ErrMissingAPIKey
	}
	if url == "" {
		return nil, fmt.Errorf("oracle: huggingface endpoint url is empty")
	}
	if client == nil {
		client = &http.Client{}
	}
	return &HuggingFace{url: url, apiKey: apiKey, params: p, client: client}, nil
}

type hfRequest struct {
	Inputs     string       `json:"inputs"`
	Parameters hfParameters `json:"parameters"`
}

type hfParameters struct {
	MaxNewTokens   int     `json:"max_new_tokens"`
	Temperature    float32 `json:"temperature"`
	ReturnFullText bool    `json:"return_full_text"`
}

type hfResult struct {
	GeneratedText string `json:"generated_text"`
}

func (h *HuggingFace) Complete(ctx context.Context, system, prompt string) (string, error) {
	reqBody, err := json.Marshal(hfRequest{
		Inputs: system + "\n\n" + prompt,
		Parameters: hfParameters{
			MaxNewTokens: h.params.MaxTokens,
			Temperature:  h.params.Temperature,
		},
	})
	if err != nil {
		return "", fmt.Errorf("failed to marshal request body: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, h.url, bytes.NewReader(reqBody))
	if err != nil {
		return "", fmt.Errorf("failed to create Hugging Face request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+h.apiKey)
	req.Header.Set("Content-Type", "application/json")

	resp, err := h.client.Do(req)
	if err != nil {
		return "", fmt.Errorf("failed to send Hugging Face request: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", fmt.Errorf("failed to read Hugging Face response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("received non-200 response from Hugging Face: %d", resp.StatusCode)
	}

	var results []hfResult
	if err := json.Unmarshal(body, &results); err != nil {
		return "", fmt.Errorf("failed to decode Hugging Face response: %w", err)
	}
	if len(results) == 0 {
		return "", nil
	}
	return results[0].GeneratedText, nil
}
