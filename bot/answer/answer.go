// Package answer dispatches profession questions to an OpenAI-compatible
// chat completion endpoint.
package answer

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	openaisdk "github.com/openai/openai-go"
	"github.com/openai/openai-go/option"

	contractx "github.com/ykravets/friendbook/bot/contract"
)

const systemPrompt = "You are an expert on professions and know everything about them. Answer the question."

type Config struct {
	BaseURL     string        `envconfig:"BASE_URL" split_words:"true"`
	APIKey      string        `envconfig:"API_KEY" split_words:"true" required:"true"`
	Model       string        `envconfig:"MODEL" split_words:"true" default:"gpt-4o"`
	Temperature float64       `envconfig:"TEMPERATURE" split_words:"true" default:"0.7"`
	Timeout     time.Duration `envconfig:"TIMEOUT" split_words:"true" default:"30s"`
}

// Client implements contract.Answerer.
type Client struct {
	client      openaisdk.Client
	model       string
	temperature float64
}

var _ contractx.Answerer = (*Client)(nil)

func NewClient(cfg Config) (*Client, error) {
	apiKey := strings.TrimSpace(cfg.APIKey)
	if apiKey == "" {
		return nil, errors.New("answer api key is required")
	}

	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 30 * time.Second
	}

	opts := []option.RequestOption{
		option.WithAPIKey(apiKey),
		option.WithRequestTimeout(timeout),
	}
	if trimmed := strings.TrimRight(strings.TrimSpace(cfg.BaseURL), "/"); trimmed != "" {
		opts = append(opts, option.WithBaseURL(trimmed))
	}

	return &Client{
		client:      openaisdk.NewClient(opts...),
		model:       strings.TrimSpace(cfg.Model),
		temperature: cfg.Temperature,
	}, nil
}

func (c *Client) Answer(ctx context.Context, question, profession, description string) (string, error) {
	prompt := fmt.Sprintf(
		"Profession: %s, description: %s. Answer this question: %s.\n"+
			"If the question was unclear, say so and give an example of a correct question. Otherwise, simply respond.\n"+
			"Write your answer in the same language as the question, without emphasizing this.",
		profession, description, question,
	)

	resp, err := c.client.Chat.Completions.New(ctx, openaisdk.ChatCompletionNewParams{
		Model: openaisdk.ChatModel(c.model),
		Messages: []openaisdk.ChatCompletionMessageParamUnion{
			openaisdk.SystemMessage(systemPrompt),
			openaisdk.UserMessage(prompt),
		},
		Temperature: openaisdk.Float(c.temperature),
	})
	if err != nil {
		return "", fmt.Errorf("%w: %v", contractx.ErrDispatcher, err)
	}
	if len(resp.Choices) == 0 {
		return "", fmt.Errorf("%w: empty completion", contractx.ErrDispatcher)
	}

	return strings.TrimSpace(resp.Choices[0].Message.Content), nil
}
