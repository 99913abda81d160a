package openai

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/koscakluka/ema-voice/core/llms"
	"github.com/koscakluka/ema-voice/internal/utils"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
)

type requestBody struct {
	Model           string          `json:"model"`
	Input           []openAIMessage `json:"input"`
	Stream          bool            `json:"stream"`
	MaxOutputTokens int             `json:"max_output_tokens,omitempty"`
	Temperature     *float64        `json:"temperature,omitempty"`
}

type responseBody struct {
	Status string            `json:"status"`
	Output []json.RawMessage `json:"output"`
	Usage  *responseBodyUsage `json:"usage"`
}

type responseBodyUsage struct {
	InputTokens  int `json:"input_tokens"`
	OutputTokens int `json:"output_tokens"`
	TotalTokens  int `json:"total_tokens"`
}

type responseBodyOutputType struct {
	// Type is the type of the output item.
	Type string `json:"type"`
}

type responseBodyOutputMessage struct {
	// Content is a list of 'output_text' or 'refusal' parts.
	Content []json.RawMessage `json:"content"`
}

type responseBodyOutputContent struct {
	Type    string `json:"type"`
	Text    string `json:"text"`
	Refusal string `json:"refusal"`
}

const responseBodyOutputTypeMessage = "message"

// Complete sends the conversation and returns the assistant reply. Reasoning
// and other non-message output items are skipped. A refusal from the model is
// returned as the reply.
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
		logger.ErrorContext(ctx, "openai completion failed", "error", err)
		return "", err
	}

	input, err := toOpenAIMessages(conversation)
	if err != nil {
		return fail(err)
	}

	requestBodyBytes, err := json.Marshal(requestBody{
		Model:           c.options.Model,
		Input:           input,
		MaxOutputTokens: c.options.MaxTokens,
		Temperature:     samplingTemperature(c.options.Model, c.options.Temperature),
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
			attribute.Int("usage.input", body.Usage.InputTokens),
			attribute.Int("usage.output", body.Usage.OutputTokens),
			attribute.Int("usage.total", body.Usage.TotalTokens),
		)
	}

	reply, err := extractText(body.Output)
	if err != nil {
		return fail(err)
	}
	if reply == "" {
		return fail(fmt.Errorf("response contained no text output (status %q)", body.Status))
	}
	return reply, nil
}

func extractText(output []json.RawMessage) (string, error) {
	var text strings.Builder
	for _, item := range output {
		var outputType responseBodyOutputType
		if err := json.Unmarshal(item, &outputType); err != nil {
			return "", fmt.Errorf("error unmarshalling output type: %w", err)
		}
		if outputType.Type != responseBodyOutputTypeMessage {
			continue
		}

		var outputMessage responseBodyOutputMessage
		if err := json.Unmarshal(item, &outputMessage); err != nil {
			return "", fmt.Errorf("error unmarshalling output message: %w", err)
		}
		for _, part := range outputMessage.Content {
			var content responseBodyOutputContent
			if err := json.Unmarshal(part, &content); err != nil {
				return "", fmt.Errorf("error unmarshalling output message content: %w", err)
			}
			switch content.Type {
			case "output_text":
				text.WriteString(content.Text)
			case "refusal":
				text.WriteString(content.Refusal)
			}
		}
	}
	return strings.TrimSpace(text.String()), nil
}

// samplingTemperature returns nil for reasoning models, which reject the
// parameter.
func samplingTemperature(model string, temperature float64) *float64 {
	for _, prefix := range []string{"o1", "o3", "o4", "gpt-5"} {
		if strings.HasPrefix(model, prefix) {
			return nil
		}
	}
	return utils.Ptr(temperature)
}
