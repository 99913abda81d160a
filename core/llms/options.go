package llms

const (
	DefaultMaxTokens   = 500
	DefaultTemperature = 0.7
)

// GenerationOptions are the sampling parameters shared by all generators.
type GenerationOptions struct {
	Model       string
	MaxTokens   int
	Temperature float64
}

type GenerationOption func(*GenerationOptions)

func DefaultGenerationOptions(model string) GenerationOptions {
	return GenerationOptions{
		Model:       model,
		MaxTokens:   DefaultMaxTokens,
		Temperature: DefaultTemperature,
	}
}

func WithModel(model string) GenerationOption {
	return func(o *GenerationOptions) {
		if model != "" {
			o.Model = model
		}
	}
}

func WithMaxTokens(maxTokens int) GenerationOption {
	return func(o *GenerationOptions) {
		if maxTokens > 0 {
			o.MaxTokens = maxTokens
		}
	}
}

func WithTemperature(temperature float64) GenerationOption {
	return func(o *GenerationOptions) { o.Temperature = temperature }
}
