package providers

import (
	"context"
	"fmt"
	"os"
	"strings"

	openai "github.com/sashabaranov/go-openai"
)

// OpenAIProvider talks to OpenAI or Azure OpenAI through the shared client
// library. Azure mode is selected when an endpoint is configured; deployments
// stand in for model names there.
type OpenAIProvider struct {
	keyName    string
	client     *openai.Client
	chatModel  string
	embedModel string
	azure      bool
}

type OpenAIOptions struct {
	AzureEndpoint        string
	AzureDeployment      string
	AzureEmbedDeployment string
	AzureAPIVersion      string
}

func NewOpenAIProvider(keyName string, opts OpenAIOptions) *OpenAIProvider {
	apiKey := resolveOpenAIKey(keyName)
	p := &OpenAIProvider{
		keyName:    keyName,
		chatModel:  "gpt-4o-mini",
		embedModel: string(openai.SmallEmbedding3),
	}
	if strings.TrimSpace(opts.AzureEndpoint) != "" {
		cfg := openai.DefaultAzureConfig(apiKey, opts.AzureEndpoint)
		if strings.TrimSpace(opts.AzureAPIVersion) != "" {
			cfg.APIVersion = opts.AzureAPIVersion
		}
		p.client = openai.NewClientWithConfig(cfg)
		p.azure = true
		if opts.AzureDeployment != "" {
			p.chatModel = opts.AzureDeployment
		}
		if opts.AzureEmbedDeployment != "" {
			p.embedModel = opts.AzureEmbedDeployment
		}
		return p
	}
	p.client = openai.NewClient(apiKey)
	return p
}

func (o *OpenAIProvider) info(model string) ProviderInfo {
	name := "openai"
	if o.azure {
		name = "azure-openai"
	}
	return ProviderInfo{Name: name, Model: model, Key: o.keyName}
}

func (o *OpenAIProvider) Generate(ctx context.Context, req GenerateRequest) (GenerateResponse, ProviderInfo, error) {
	messages := make([]openai.ChatCompletionMessage, 0, 2)
	if strings.TrimSpace(req.System) != "" {
		messages = append(messages, openai.ChatCompletionMessage{Role: openai.ChatMessageRoleSystem, Content: req.System})
	}
	prompt := req.Prompt
	if len(req.Context) > 0 {
		prompt += "\n\nContext:\n" + strings.Join(req.Context, "\n\n")
	}
	if len(req.Images) > 0 {
		parts := make([]openai.ChatMessagePart, 0, 1+len(req.Images))
		parts = append(parts, openai.ChatMessagePart{Type: openai.ChatMessagePartTypeText, Text: prompt})
		for _, dataURL := range req.Images {
			parts = append(parts, openai.ChatMessagePart{
				Type:     openai.ChatMessagePartTypeImageURL,
				ImageURL: &openai.ChatMessageImageURL{URL: dataURL},
			})
		}
		messages = append(messages, openai.ChatCompletionMessage{Role: openai.ChatMessageRoleUser, MultiContent: parts})
	} else {
		messages = append(messages, openai.ChatCompletionMessage{Role: openai.ChatMessageRoleUser, Content: prompt})
	}

	chatReq := openai.ChatCompletionRequest{
		Model:    o.chatModel,
		Messages: messages,
	}
	if req.MaxTokens > 0 {
		chatReq.MaxTokens = req.MaxTokens
	}
	if req.Temperature > 0 {
		chatReq.Temperature = float32(req.Temperature)
	}
	resp, err := o.client.CreateChatCompletion(ctx, chatReq)
	if err != nil {
		return GenerateResponse{}, o.info(o.chatModel), fmt.Errorf("openai generate request failed: %w", err)
	}
	if len(resp.Choices) == 0 {
		return GenerateResponse{}, o.info(o.chatModel), fmt.Errorf("openai returned empty choices")
	}
	return GenerateResponse{Text: resp.Choices[0].Message.Content}, o.info(resp.Model), nil
}

func (o *OpenAIProvider) Embed(ctx context.Context, req EmbedRequest) ([][]float32, ProviderInfo, error) {
	embReq := openai.EmbeddingRequest{
		Input: req.Inputs,
		Model: openai.EmbeddingModel(o.embedModel),
	}
	if req.Dimension > 0 {
		embReq.Dimensions = req.Dimension
	}
	resp, err := o.client.CreateEmbeddings(ctx, embReq)
	if err != nil {
		return nil, o.info(o.embedModel), fmt.Errorf("openai embedding request failed: %w", err)
	}
	out := make([][]float32, 0, len(resp.Data))
	for _, d := range resp.Data {
		out = append(out, d.Embedding)
	}
	if len(out) == 0 {
		return nil, o.info(o.embedModel), fmt.Errorf("openai returned no embeddings")
	}
	return out, o.info(o.embedModel), nil
}

func resolveOpenAIKey(alias string) string {
	if alias != "" {
		k := os.Getenv("SMARTKB_OPENAI_KEY_" + strings.ToUpper(alias))
		if k != "" {
			return k
		}
	}
	return os.Getenv("OPENAI_API_KEY")
}
