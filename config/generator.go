package config

import (
	"log/slog"

	"github.com/lucasjlepore/fit-coach/feedback"
	"github.com/lucasjlepore/fit-coach/llmexport"
)

// NewGenerator returns the remote client when an endpoint is configured and the
// offline template generator otherwise.
func (c GeneratorConfig) NewGenerator(logger *slog.Logger) (feedback.Generator, error) {
	if c.Endpoint == "" {
		return feedback.TemplateGenerator{}, nil
	}
	retry := llmexport.DefaultRetryPolicy()
	retry.MaxRetries = c.MaxRetries
	opts := []llmexport.Option{
		llmexport.WithTimeout(c.Timeout),
		llmexport.WithRetryPolicy(retry),
		llmexport.WithLogger(logger),
	}
	if c.Model != "" {
		opts = append(opts, llmexport.WithModel(c.Model))
	}
	return llmexport.NewClient(c.Endpoint, c.APIKey.Unmask(), opts...)
}
