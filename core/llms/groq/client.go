package groq

import (
	"net/http"

	"github.com/koscakluka/ema-voice/core/llms"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
)

const (
	defaultURL   = "https://api.groq.com/openai/v1/chat/completions"
	DefaultModel = "llama-3.3-70b-versatile"
)

// Client generates replies through the Groq chat completions API.
type Client struct {
	apiKey     string
	url        string
	httpClient *http.Client
	options    llms.GenerationOptions
}

type ClientOption func(*Client)

// WithURL overrides the chat completions endpoint.
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
		apiKey: apiKey,
		url:    defaultURL,
		httpClient: &http.Client{Transport: otelhttp.NewTransport(http.DefaultTransport,
			otelhttp.WithSpanNameFormatter(func(operationName string, request *http.Request) string {
				return operationName + " " + request.URL.Path
			}),
		)},
		options: llms.DefaultGenerationOptions(DefaultModel),
	}
	for _, opt := range opts {
		opt(client)
	}
	return client
}
