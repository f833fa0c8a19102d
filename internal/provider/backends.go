package provider

import (
	"context"
	"fmt"

	einoark "github.com/cloudwego/eino-ext/components/model/ark"
	einogemini "github.com/cloudwego/eino-ext/components/model/gemini"
	einoollama "github.com/cloudwego/eino-ext/components/model/ollama"
	einoopenai "github.com/cloudwego/eino-ext/components/model/openai"
	"github.com/cloudwego/eino/components/model"
	"google.golang.org/genai"
)

// newOllama constructs a chat model backed by a local Ollama instance.
func newOllama(ctx context.Context, cfg *Config) (model.ToolCallingChatModel, error) {
	host := cfg.Ollama.Host
	if host == "" {
		host = "http://localhost:11434"
	}
	v, err := einoollama.NewChatModel(ctx, &einoollama.ChatModelConfig{ //nolint:wrapcheck // constructor passthrough
		BaseURL: host,
		Model:   cfg.Ollama.Model,
	})
	return v, err
}

// newOpenAI constructs a chat model backed by the OpenAI API.
func newOpenAI(ctx context.Context, cfg *Config) (model.ToolCallingChatModel, error) {
	v, err := einoopenai.NewChatModel(ctx, &einoopenai.ChatModelConfig{ //nolint:wrapcheck // constructor passthrough
		Model:       cfg.OpenAI.Model,
		APIKey:      cfg.OpenAI.APIKey,
		MaxTokens:   &cfg.Tuning.MaxTokens,
		Temperature: &cfg.Tuning.Temperature,
	})
	return v, err
}

// newAzure constructs a chat model backed by Azure OpenAI Service.
func newAzure(ctx context.Context, cfg *Config) (model.ToolCallingChatModel, error) {
	mc := &einoopenai.ChatModelConfig{
		Model:      cfg.AzureOpenAI.Deployment,
		APIKey:     cfg.AzureOpenAI.APIKey,
		BaseURL:    cfg.AzureOpenAI.Endpoint,
		ByAzure:    true,
		APIVersion: cfg.AzureOpenAI.APIVersion,
		MaxTokens:  &cfg.Tuning.MaxTokens,
		// Use the deployment name as-is — the default mapper strips dots/colons
		// which breaks deployment names like "gpt-4.1".
		AzureModelMapperFunc: func(model string) string { return model },
	}
	// Reasoning deployments reject the temperature parameter.
	if !isAzureReasoningModel(cfg.AzureOpenAI.Deployment) {
		mc.Temperature = &cfg.Tuning.Temperature
	}
	return einoopenai.NewChatModel(ctx, mc) //nolint:wrapcheck // constructor passthrough
}

// newBedrock constructs a chat model backed by AWS Bedrock via its
// OpenAI-compatible runtime endpoint.
func newBedrock(ctx context.Context, cfg *Config) (model.ToolCallingChatModel, error) {
	endpoint := cfg.Bedrock.Endpoint
	if endpoint == "" {
		endpoint = fmt.Sprintf("https://bedrock-runtime.%s.amazonaws.com", cfg.Bedrock.AWSRegion)
	}
	maxTokens := cfg.Tuning.MaxTokens
	temp := cfg.Tuning.Temperature
	return einoark.NewChatModel(ctx, &einoark.ChatModelConfig{ //nolint:wrapcheck // constructor passthrough
		Model:       cfg.Bedrock.ModelID,
		APIKey:      cfg.Bedrock.APIKey,
		BaseURL:     endpoint,
		MaxTokens:   &maxTokens,
		Temperature: &temp,
	})
}

// newGemini constructs a chat model backed by Google Gemini.
func newGemini(ctx context.Context, cfg *Config) (model.ToolCallingChatModel, error) {
	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:  cfg.Gemini.APIKey,
		Backend: genai.BackendGeminiAPI,
	})
	if err != nil {
		return nil, fmt.Errorf("provider: failed to create Gemini client: %w", err)
	}
	return einogemini.NewChatModel(ctx, &einogemini.Config{ //nolint:wrapcheck // constructor passthrough
		Client: client,
		Model:  cfg.Gemini.Model,
	})
}
