package nlp

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/sashabaranov/go-openai"

	"github.com/dealgraph/dealgraph/pkg/types"
)

const (
	// DefaultModel is used when no model is configured.
	DefaultModel = "gpt-4o-mini"
)

// OpenAIClient implements Client using the OpenAI chat completion API or any
// OpenAI-compatible endpoint.
type OpenAIClient struct {
	client *openai.Client
	config Config
}

// NewOpenAIClient creates a new OpenAI client.
func NewOpenAIClient(apiKey string, config Config) *OpenAIClient {
	clientConfig := openai.DefaultConfig(apiKey)
	if config.BaseURL != "" {
		clientConfig.BaseURL = config.BaseURL
	}
	if config.Model == "" {
		config.Model = DefaultModel
	}
	return &OpenAIClient{
		client: openai.NewClientWithConfig(clientConfig),
		config: config,
	}
}

// Chat sends a chat completion request and returns the response.
func (c *OpenAIClient) Chat(ctx context.Context, messages []types.Message) (*types.Response, error) {
	req := c.buildRequest(messages)

	resp, err := c.client.CreateChatCompletion(ctx, req)
	if err != nil {
		return nil, classifyOpenAIError(err)
	}
	if len(resp.Choices) == 0 {
		return nil, NewEmptyResponseError("no choices returned from API")
	}

	response := &types.Response{
		Content:      resp.Choices[0].Message.Content,
		Model:        resp.Model,
		FinishReason: string(resp.Choices[0].FinishReason),
	}
	if resp.Usage.TotalTokens > 0 {
		response.TokensUsed = &types.TokenUsage{
			PromptTokens:     resp.Usage.PromptTokens,
			CompletionTokens: resp.Usage.CompletionTokens,
			TotalTokens:      resp.Usage.TotalTokens,
		}
	}
	return response, nil
}

// ChatWithStructuredOutput appends a JSON schema instruction to the final
// message and requests a JSON object response.
func (c *OpenAIClient) ChatWithStructuredOutput(ctx context.Context, messages []types.Message, schema any) (*types.Response, error) {
	prepared := make([]types.Message, len(messages))
	copy(prepared, messages)

	if schema != nil && len(prepared) > 0 {
		schemaBytes, err := json.Marshal(schema)
		if err != nil {
			return nil, fmt.Errorf("failed to serialize response schema: %w", err)
		}
		last := len(prepared) - 1
		prepared[last].Content += fmt.Sprintf(
			"\n\nRespond with a JSON object in the following format:\n\n%s",
			string(schemaBytes),
		)
	}

	req := c.buildRequest(prepared)
	req.ResponseFormat = &openai.ChatCompletionResponseFormat{
		Type: openai.ChatCompletionResponseFormatTypeJSONObject,
	}

	resp, err := c.client.CreateChatCompletion(ctx, req)
	if err != nil {
		return nil, classifyOpenAIError(err)
	}
	if len(resp.Choices) == 0 {
		return nil, NewEmptyResponseError("no choices returned from API")
	}
	return &types.Response{
		Content:      resp.Choices[0].Message.Content,
		Model:        resp.Model,
		FinishReason: string(resp.Choices[0].FinishReason),
	}, nil
}

// Close cleans up resources.
func (c *OpenAIClient) Close() error { return nil }

func (c *OpenAIClient) buildRequest(messages []types.Message) openai.ChatCompletionRequest {
	openaiMessages := make([]openai.ChatCompletionMessage, 0, len(messages))
	for _, m := range messages {
		role := openai.ChatMessageRoleUser
		switch m.Role {
		case RoleSystem:
			role = openai.ChatMessageRoleSystem
		case RoleAssistant:
			role = openai.ChatMessageRoleAssistant
		}
		openaiMessages = append(openaiMessages, openai.ChatCompletionMessage{
			Role:    role,
			Content: m.Content,
		})
	}

	req := openai.ChatCompletionRequest{
		Model:    c.config.Model,
		Messages: openaiMessages,
	}
	if c.config.Temperature != nil {
		req.Temperature = *c.config.Temperature
	}
	if c.config.MaxTokens != nil {
		req.MaxTokens = *c.config.MaxTokens
	}
	return req
}

// classifyOpenAIError maps transport failures onto the layer's error taxonomy
// so operation boundaries can decide whether to retry.
func classifyOpenAIError(err error) error {
	msg := strings.ToLower(err.Error())
	if strings.Contains(msg, "rate limit") || strings.Contains(msg, "rate_limit") {
		return NewRateLimitError(err.Error())
	}
	if strings.Contains(msg, "timeout") || strings.Contains(msg, "connection") ||
		strings.Contains(msg, "service unavailable") || strings.Contains(msg, "bad gateway") ||
		strings.Contains(msg, "gateway timeout") || strings.Contains(msg, "internal server error") {
		return &types.UpstreamError{Service: "language model", Err: err}
	}
	return fmt.Errorf("openai completion failed: %w", err)
}
