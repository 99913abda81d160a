package openai

import (
	"net/http"

	"github.com/koscakluka/ema-voice/core/llms"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
)

const (
	defaultURL   = "https://api.openai.com/v1/responses"
	DefaultModel = "gpt-4o-mini"
)

// Client generates replies through the OpenAI Responses API.
type Client struct {
	apiKey     string
	url        string
	httpClient *http.Client
	options    llms.GenerationOptions
}

type ClientOption func(*Client)

func WithURL(url string) ClientOption {
	return func(c *Client) { c.url = url }
}

func WithHTTPClient(httpClient *http.Client) ClientOption {
	return func(c *Client) { c.httpClient = httpClient }
}

func WithGenerationOptions(opts ...llms.GenerationOption) ClientOption {
	return func(c *Client) {
		for _, opt := range opts {
			opt(&c.options)
		}
	}
}

func NewClient(apiKey string, opts ...ClientOption) *Client {
	client := &Client{
		apiKey:     apiKey,
		url:        defaultURL,
		httpClient: &http.Client{Transport: otelhttp.NewTransport(http.DefaultTransport)},
		options:    llms.DefaultGenerationOptions(DefaultModel),
	}
	for _, opt := range opts {
		opt(client)
	}
	return client
}
