package groq

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/koscakluka/ema-voice/core/llms"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
)

type requestBody struct {
	Model       string    `json:"model"`
	Messages    []message `json:"messages"`
	Stream      bool      `json:"stream"`
	MaxTokens   int       `json:"max_tokens,omitempty"`
	Temperature float64   `json:"temperature"`
}

type responseBody struct {
	Choices []struct {
		Message struct {
			Role    string `json:"role"`
			Content string `json:"content"`
		} `json:"message"`
		FinishReason string `json:"finish_reason"`
	} `json:"choices"`
	Usage *struct {
		PromptTokens     int `json:"prompt_tokens"`
		CompletionTokens int `json:"completion_tokens"`
		TotalTokens      int `json:"total_tokens"`
	} `json:"usage"`
}

// Complete sends the conversation and returns the assistant reply. A response
// without choices or with empty content is reported as an error.
func (c *Client) Complete(ctx context.Context, conversation []llms.Message) (string, error) {
	ctx, span := tracer.Start(ctx, "complete conversation")
	defer span.End()
	span.SetAttributes(
		attribute.String("request.model", c.options.Model),
		attribute.Int("request.messages", len(conversation)),
	)

	fail := func(err error) (string, error) {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		logger.ErrorContext(ctx, "groq completion failed", "error", err)
		return "", err
	}

	messages, err := toMessages(conversation)
	if err != nil {
		return fail(err)
	}

	requestBodyBytes, err := json.Marshal(requestBody{
		Model:       c.options.Model,
		Messages:    messages,
		MaxTokens:   c.options.MaxTokens,
		Temperature: c.options.Temperature,
	})
	if err != nil {
		return fail(fmt.Errorf("error marshalling JSON: %w", err))
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.url, bytes.NewBuffer(requestBodyBytes))
	if err != nil {
		return fail(fmt.Errorf("error creating HTTP request: %w", err))
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+c.apiKey)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fail(fmt.Errorf("error sending request: %w", err))
	}
	defer resp.Body.Close()

	span.SetAttributes(attribute.Int("response.status_code", resp.StatusCode))
	bodyBytes, err := io.ReadAll(resp.Body)
	if err != nil {
		return fail(fmt.Errorf("error reading response body: %w", err))
	}
	if resp.StatusCode != http.StatusOK {
		span.SetAttributes(attribute.String("response.error", string(bodyBytes)))
		return fail(fmt.Errorf("non-OK HTTP status: %s", resp.Status))
	}

	var body responseBody
	if err := json.Unmarshal(bodyBytes, &body); err != nil {
		return fail(fmt.Errorf("error unmarshalling response body: %w", err))
	}
	if body.Usage != nil {
		span.SetAttributes(
			attribute.Int("usage.prompt", body.Usage.PromptTokens),
			attribute.Int("usage.completion", body.Usage.CompletionTokens),
			attribute.Int("usage.total", body.Usage.TotalTokens),
		)
	}
	if len(body.Choices) == 0 {
		return fail(fmt.Errorf("response contained no choices"))
	}

	content := strings.TrimSpace(body.Choices[0].Message.Content)
	if content == "" {
		return fail(fmt.Errorf("response contained empty content (finish reason %q)", body.Choices[0].FinishReason))
	}
	return content, nil
}
