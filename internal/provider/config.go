// Package provider selects and constructs the chat model backend used for
// LLM answer composition. Supported backends: Ollama, OpenAI, Azure OpenAI,
// AWS Bedrock, Google Gemini.
package provider

import (
	"fmt"
	"strings"
)

// Backend enumerates the supported LLM inference providers.
type Backend string

const (
	// BackendOllama selects a locally running Ollama instance.
	BackendOllama Backend = "ollama"
	// BackendOpenAI selects the OpenAI API.
	BackendOpenAI Backend = "openai"
	// BackendAzure selects Azure OpenAI Service.
	BackendAzure Backend = "azure"
	// BackendBedrock selects AWS Bedrock.
	BackendBedrock Backend = "bedrock"
	// BackendGemini selects Google Gemini via AI Studio.
	BackendGemini Backend = "gemini"
)

// ProviderOllama holds Ollama-specific settings.
type ProviderOllama struct {
	// Host is the Ollama base URL (default: http://localhost:11434).
	Host string

	// Model is the Ollama model name (e.g. "llama3").
	Model string
}

// ProviderOpenAI holds OpenAI-specific settings.
type ProviderOpenAI struct {
	// APIKey is the OpenAI API key.
	APIKey string

	// Model is the model name (e.g. "gpt-4o").
	Model string
}

// ProviderAzureOpenAI holds Azure OpenAI Service settings.
type ProviderAzureOpenAI struct {
	// APIKey is the Azure OpenAI API key.
	APIKey string

	// Endpoint is the resource endpoint (https://<resource>.openai.azure.com).
	Endpoint string

	// Deployment is the deployment name to call.
	Deployment string

	// APIVersion is the REST API version (e.g. "2024-02-01").
	APIVersion string
}

// ProviderBedrock holds AWS Bedrock settings. AWS credentials are resolved
// via the standard SDK chain, not through this config.
type ProviderBedrock struct {
	// AWSRegion is the AWS region hosting the model.
	AWSRegion string

	// ModelID is the Bedrock model identifier.
	ModelID string

	// Endpoint overrides the Bedrock-compatible endpoint URL.
	Endpoint string

	// APIKey is the bearer credential for the Bedrock-compatible endpoint.
	APIKey string
}

// ProviderGemini holds Google Gemini settings.
type ProviderGemini struct {
	// APIKey is the Google AI Studio API key.
	APIKey string

	// Model is the Gemini model name (e.g. "gemini-1.5-pro").
	Model string
}

// SharedTuning holds generation parameters common to all backends.
type SharedTuning struct {
	// MaxTokens caps the number of tokens the model may generate per response.
	MaxTokens int

	// Temperature controls response randomness (0.0-1.0).
	Temperature float32
}

// Config holds the full provider configuration. Only the section matching
// Backend is consulted.
type Config struct {
	// Backend identifies which inference provider to use.
	Backend Backend

	Ollama      ProviderOllama
	OpenAI      ProviderOpenAI
	AzureOpenAI ProviderAzureOpenAI
	Bedrock     ProviderBedrock
	Gemini      ProviderGemini
	Tuning      SharedTuning
}

// Validate checks that the section selected by Backend carries everything
// its factory needs, so misconfiguration surfaces at startup rather than on
// the first question.
func (c *Config) Validate() error {
	switch c.Backend {
	case BackendOllama:
		if c.Ollama.Model == "" {
			return fmt.Errorf("provider: OLLAMA_MODEL is required for ollama backend")
		}
	case BackendOpenAI:
		if c.OpenAI.APIKey == "" {
			return fmt.Errorf("provider: OPENAI_API_KEY is required for openai backend")
		}
		if c.OpenAI.Model == "" {
			return fmt.Errorf("provider: OPENAI_MODEL is required for openai backend")
		}
	case BackendAzure:
		if c.AzureOpenAI.APIKey == "" {
			return fmt.Errorf("provider: AZURE_OPENAI_API_KEY is required for azure backend")
		}
		if c.AzureOpenAI.Endpoint == "" {
			return fmt.Errorf("provider: AZURE_OPENAI_ENDPOINT is required for azure backend")
		}
		if c.AzureOpenAI.Deployment == "" {
			return fmt.Errorf("provider: AZURE_OPENAI_DEPLOYMENT is required for azure backend")
		}
	case BackendBedrock:
		if c.Bedrock.ModelID == "" {
			return fmt.Errorf("provider: BEDROCK_MODEL_ID is required for bedrock backend")
		}
		if c.Bedrock.AWSRegion == "" {
			return fmt.Errorf("provider: AWS_REGION is required for bedrock backend")
		}
	case BackendGemini:
		if c.Gemini.APIKey == "" {
			return fmt.Errorf("provider: GOOGLE_API_KEY is required for gemini backend")
		}
		if c.Gemini.Model == "" {
			return fmt.Errorf("provider: GEMINI_MODEL is required for gemini backend")
		}
	default:
		return fmt.Errorf("provider: unknown backend %q — valid values: ollama, openai, azure, bedrock, gemini", c.Backend)
	}
	return nil
}

// isAzureReasoningModel reports whether an Azure deployment name looks like
// an o-series or codex-class reasoning model. Those deployments reject the
// temperature parameter, so the factory must omit it.
func isAzureReasoningModel(deployment string) bool {
	d := strings.ToLower(deployment)
	for _, prefix := range []string{"o1", "o3", "o4", "codex"} {
		if d == prefix || strings.HasPrefix(d, prefix+"-") {
			return true
		}
	}
	return false
}
