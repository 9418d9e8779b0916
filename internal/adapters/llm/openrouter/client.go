// Package openrouter implements ports.Oracle via the OpenRouter API.
package openrouter

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"

	"github.com/dungdc40/tarot-nextjs-sub000/internal/domain"
	"github.com/dungdc40/tarot-nextjs-sub000/internal/ports"
)

// Client calls an OpenAI-compatible chat completions endpoint. Each call
// returns the upstream response id as the conversation handle; passing it
// back threads the next call onto the same exchange.
type Client struct {
	httpClient     *http.Client
	apiKey         string
	baseURL        string
	model          string
	fallbackModels []string
	logger         *slog.Logger
}

func NewClient(httpClient *http.Client, apiKey, baseURL, model string, fallbackModels []string, logger *slog.Logger) *Client {
	return &Client{
		httpClient:     httpClient,
		apiKey:         apiKey,
		baseURL:        strings.TrimRight(baseURL, "/"),
		model:          model,
		fallbackModels: fallbackModels,
		logger:         logger,
	}
}

// chatRequest / chatResponse mirror the OpenAI-compatible API shapes.
type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type chatRequest struct {
	Model              string        `json:"model"`
	Messages           []chatMessage `json:"messages"`
	PreviousResponseID string        `json:"previous_response_id,omitempty"`
}

type chatResponse struct {
	ID      string `json:"id"`
	Choices []struct {
		Message struct {
			Content string `json:"content"`
		} `json:"message"`
	} `json:"choices"`
}

func (c *Client) AssessIntent(ctx context.Context, userMessage string, prior ports.Handle) (ports.IntentAssessment, error) {
	var out struct {
		Status           string `json:"status"`
		Summary          string `json:"summary"`
		Topic            string `json:"topic"`
		Timeframe        string `json:"timeframe"`
		AssistantMessage string `json:"assistant_message"`
	}
	handle, err := c.completeJSON(ctx, assessIntentSystem, assessIntentUser(userMessage), prior, &out)
	if err != nil {
		return ports.IntentAssessment{}, err
	}
	return ports.IntentAssessment{
		Clear:            out.Status == "clear",
		Summary:          out.Summary,
		Topic:            out.Topic,
		Timeframe:        out.Timeframe,
		AssistantMessage: out.AssistantMessage,
		Handle:           handle,
	}, nil
}

func (c *Client) GenerateSpread(ctx context.Context, intentSummary, timeframe string) (ports.SpreadResult, error) {
	var out struct {
		Positions []domain.SpreadPosition `json:"positions"`
	}
	handle, err := c.completeJSON(ctx, generateSpreadSystem, generateSpreadUser(intentSummary, timeframe), "", &out)
	if err != nil {
		return ports.SpreadResult{}, err
	}
	if len(out.Positions) < 1 || len(out.Positions) > 10 {
		return ports.SpreadResult{}, fmt.Errorf("%w: spread has %d positions", domain.ErrInvalidLLMJSON, len(out.Positions))
	}
	return ports.SpreadResult{Positions: out.Positions, Handle: handle}, nil
}

func (c *Client) GenerateReading(ctx context.Context, intentSummary string, cards []ports.CardContext) (ports.Reading, error) {
	var out struct {
		Cards     []ports.InterpretedCard `json:"cards"`
		Synthesis string                  `json:"synthesis"`
	}
	handle, err := c.completeJSON(ctx, generateReadingSystem, generateReadingUser(intentSummary, cards), "", &out)
	if err != nil {
		return ports.Reading{}, err
	}
	return ports.Reading{Cards: out.Cards, Synthesis: out.Synthesis, Handle: handle}, nil
}

func (c *Client) HandleClarification(ctx context.Context, question string, newCards []ports.CardContext, prior ports.Handle) (ports.Clarification, error) {
	var out struct {
		Synthesis          string                  `json:"synthesis"`
		IsFinalAnswer      bool                    `json:"is_final_answer"`
		Cards              []ports.InterpretedCard `json:"cards"`
		RequestedPositions []domain.SpreadPosition `json:"requested_positions"`
	}
	handle, err := c.completeJSON(ctx, clarificationSystem, clarificationUser(question, newCards), prior, &out)
	if err != nil {
		return ports.Clarification{}, err
	}
	return ports.Clarification{
		Synthesis:          out.Synthesis,
		IsFinalAnswer:      out.IsFinalAnswer,
		Cards:              out.Cards,
		RequestedPositions: out.RequestedPositions,
		Handle:             handle,
	}, nil
}

// completeJSON runs the model fallback chain and decodes the response body
// into out, retrying once with a correction prompt on invalid JSON.
func (c *Client) completeJSON(ctx context.Context, system, user string, prior ports.Handle, out any) (ports.Handle, error) {
	models := make([]string, 0, 1+len(c.fallbackModels))
	models = append(models, c.model)
	models = append(models, c.fallbackModels...)

	var lastErr error
	for _, model := range models {
		handle, err := c.completeWithModel(ctx, model, system, user, prior, out)
		if err == nil {
			return handle, nil
		}
		lastErr = err
		if len(models) > 1 {
			c.logger.WarnContext(ctx, "model failed, trying next", "model", model, "error", err)
		}
	}
	return "", lastErr
}

func (c *Client) completeWithModel(ctx context.Context, model, system, user string, prior ports.Handle, out any) (ports.Handle, error) {
	content, handle, err := c.callLLM(ctx, model, system, user, prior)
	if err != nil {
		return "", fmt.Errorf("%w: %w", domain.ErrUpstreamLLM, err)
	}

	if err := json.Unmarshal([]byte(content), out); err != nil {
		c.logger.WarnContext(ctx, "LLM returned invalid JSON, retrying", "model", model, "error", err)
		content, handle, err = c.callLLM(ctx, model, system, retryPrompt(content), prior)
		if err != nil {
			return "", fmt.Errorf("%w: %w", domain.ErrUpstreamLLM, err)
		}
		if err := json.Unmarshal([]byte(content), out); err != nil {
			return "", fmt.Errorf("%w: %w", domain.ErrInvalidLLMJSON, err)
		}
	}
	return handle, nil
}

func (c *Client) callLLM(ctx context.Context, model, system, user string, prior ports.Handle) (string, ports.Handle, error) {
	reqBody := chatRequest{
		Model: model,
		Messages: []chatMessage{
			{Role: "system", Content: system},
			{Role: "user", Content: user},
		},
		PreviousResponseID: string(prior),
	}

	body, err := json.Marshal(reqBody)
	if err != nil {
		return "", "", fmt.Errorf("marshal request: %w", err)
	}

	url := c.baseURL + "/chat/completions"
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return "", "", fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+c.apiKey)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", "", fmt.Errorf("http call: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", "", fmt.Errorf("read response: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		return "", "", fmt.Errorf("upstream status %d: %s", resp.StatusCode, string(respBody))
	}

	var chatResp chatResponse
	if err := json.Unmarshal(respBody, &chatResp); err != nil {
		return "", "", fmt.Errorf("decode response: %w", err)
	}
	if len(chatResp.Choices) == 0 {
		return "", "", fmt.Errorf("no choices in response")
	}

	content := strings.TrimSpace(chatResp.Choices[0].Message.Content)
	content = strings.TrimPrefix(content, "```json")
	content = strings.Trim(content, "` \n")
	return content, ports.Handle(chatResp.ID), nil
}
