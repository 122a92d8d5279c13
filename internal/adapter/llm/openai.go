package llm

import (
	"context"
	"errors"
	"fmt"
	"net"
	"strings"

	"github.com/openai/openai-go"
	"github.com/openai/openai-go/option"
	"github.com/openai/openai-go/shared"
	"unirag/internal/domain"
	"unirag/internal/port"
)

var _ port.LLM = (*OpenAILLM)(nil)

// Options configures an OpenAI-compatible chat completion client.
type Options struct {
	APIKey  string
	BaseURL string // accepts either the API root or the full chat/completions endpoint
	Model   string
	Headers map[string]string

	RequestOptions []option.RequestOption
}

// OpenAILLM issues chat completions against any OpenAI-compatible endpoint
// (Groq, OpenAI, local servers).
type OpenAILLM struct {
	client openai.Client
	model  string
}

func NewOpenAILLM(opts Options) (*OpenAILLM, error) {
	if opts.Model == "" {
		return nil, fmt.Errorf("%w: missing model name", domain.ErrLLMTransport)
	}

	clientOpts := []option.RequestOption{
		option.WithAPIKey(opts.APIKey),
		option.WithMaxRetries(0),
	}
	if base := NormalizeBaseURL(opts.BaseURL); base != "" {
		clientOpts = append(clientOpts, option.WithBaseURL(base))
	}
	for k, v := range opts.Headers {
		clientOpts = append(clientOpts, option.WithHeader(k, v))
	}
	clientOpts = append(clientOpts, opts.RequestOptions...)

	return &OpenAILLM{
		client: openai.NewClient(clientOpts...),
		model:  opts.Model,
	}, nil
}

// NormalizeBaseURL strips a trailing chat/completions path so deployments
// can configure the endpoint URL they were given.
func NormalizeBaseURL(raw string) string {
	base := strings.TrimSpace(raw)
	base = strings.TrimSuffix(base, "/")
	base = strings.TrimSuffix(base, "/chat/completions")
	if base == "" {
		return ""
	}
	return base + "/"
}

// Complete sends exactly one request. A successful response without choices
// is returned as its raw JSON payload.
func (o *OpenAILLM) Complete(ctx context.Context, req domain.CompletionRequest) (string, error) {
	model := req.Model
	if model == "" {
		model = o.model
	}

	params := openai.ChatCompletionNewParams{
		Model:    shared.ChatModel(model),
		Messages: make([]openai.ChatCompletionMessageParamUnion, 0, len(req.Messages)),
	}
	for _, m := range req.Messages {
		switch m.Role {
		case "system":
			params.Messages = append(params.Messages, openai.SystemMessage(m.Content))
		case "assistant":
			params.Messages = append(params.Messages, openai.AssistantMessage(m.Content))
		default:
			params.Messages = append(params.Messages, openai.UserMessage(m.Content))
		}
	}
	params.Temperature = openai.Float(req.Temperature)
	if req.MaxTokens > 0 {
		params.MaxTokens = openai.Int(int64(req.MaxTokens))
	}

	completion, err := o.client.Chat.Completions.New(ctx, params)
	if err != nil {
		return "", classify(err)
	}

	if len(completion.Choices) == 0 {
		raw := strings.TrimSpace(completion.RawJSON())
		if raw == "" {
			return "", fmt.Errorf("%w: empty payload", domain.ErrLLMMalformedResponse)
		}
		return raw, nil
	}

	content := strings.TrimSpace(completion.Choices[0].Message.Content)
	if content == "" {
		return "", fmt.Errorf("%w: empty message content", domain.ErrLLMMalformedResponse)
	}
	return content, nil
}

func classify(err error) error {
	var apiErr *openai.Error
	if errors.As(err, &apiErr) {
		return fmt.Errorf("%w: status %d: %v", domain.ErrLLMTransport, apiErr.StatusCode, err)
	}

	var netErr net.Error
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) || errors.As(err, &netErr) {
		return fmt.Errorf("%w: %v", domain.ErrLLMTransport, err)
	}

	return fmt.Errorf("%w: %v", domain.ErrLLMMalformedResponse, err)
}

func (o *OpenAILLM) ModelName() string {
	return o.model
}
