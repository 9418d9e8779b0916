package realtime

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
)

// TokenClient mints short-lived realtime session credentials from the
// provider's sessions endpoint.
type TokenClient struct {
	httpClient *http.Client
	apiKey     string
	baseURL    string
	model      string
}

func NewTokenClient(httpClient *http.Client, apiKey, baseURL, model string) *TokenClient {
	return &TokenClient{
		httpClient: httpClient,
		apiKey:     apiKey,
		baseURL:    strings.TrimRight(baseURL, "/"),
		model:      model,
	}
}

func (t *TokenClient) IssueToken(ctx context.Context) (string, error) {
	body, err := json.Marshal(map[string]string{"model": t.model})
	if err != nil {
		return "", fmt.Errorf("marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, t.baseURL+"/realtime/sessions", bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+t.apiKey)

	resp, err := t.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("http call: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", fmt.Errorf("read response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("upstream status %d: %s", resp.StatusCode, string(respBody))
	}

	var out struct {
		ClientSecret struct {
			Value string `json:"value"`
		} `json:"client_secret"`
	}
	if err := json.Unmarshal(respBody, &out); err != nil {
		return "", fmt.Errorf("decode response: %w", err)
	}
	if out.ClientSecret.Value == "" {
		return "", fmt.Errorf("no client secret in response")
	}
	return out.ClientSecret.Value, nil
}
