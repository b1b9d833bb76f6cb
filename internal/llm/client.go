package llm

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	openai "github.com/sashabaranov/go-openai"
	"go.uber.org/zap"

	"github.com/amitsahu0611/chatbot-sub001/internal/ingestion"
	"github.com/amitsahu0611/chatbot-sub001/internal/storage/models"
	"github.com/amitsahu0611/chatbot-sub001/pkg/circuitbreaker"
	"github.com/amitsahu0611/chatbot-sub001/pkg/config"
	"github.com/amitsahu0611/chatbot-sub001/pkg/logger"
	"github.com/amitsahu0611/chatbot-sub001/pkg/retry"
)

var ErrEmptyCompletion = errors.New("empty completion")

// DeclineText is what the generator is told to answer with when the supplied
// entries do not cover the question.
const DeclineText = "I don't have specific information about that. Please contact support for further help."

const (
	maxEntriesInPrompt = 5
	maxAnswerChars     = 1200
)

const systemPrompt = `You are a customer support assistant embedded in a company's website.

Rules (mandatory):
1. Answer ONLY with facts stated in the FAQ entries supplied in the user message.
2. Never invent prices, dates, policies, contact details or any other information.
3. If there are no FAQ entries, or none of them answers the question, reply exactly with:
"` + DeclineText + `"
4. Keep the reply short, friendly and in plain text without markdown.`

type Client struct {
	client      *openai.Client
	model       string
	temperature float32
	maxTokens   int
	timeout     time.Duration
	cb          *circuitbreaker.Breaker
	retryConfig retry.Config
}

type CompletionRequest struct {
	SystemPrompt string
	UserPrompt   string
	Temperature  float32
	MaxTokens    int
}

type CompletionResponse struct {
	Content string
	Usage   Usage
}

type Usage struct {
	PromptTokens     int
	CompletionTokens int
	TotalTokens      int
}

func NewClient(cfg config.LLMConfig) *Client {
	clientConfig := openai.DefaultConfig(cfg.APIKey)
	if cfg.BaseURL != "" {
		clientConfig.BaseURL = cfg.BaseURL
	}

	cb := circuitbreaker.New("llm", circuitbreaker.Config{
		FailureThreshold: 5,
		Cooldown:         30 * time.Second,
		Logger:           logger.GetLogger(),
	})

	retryConfig := retry.Config{
		MaxAttempts:    3,
		InitialDelay:   500 * time.Millisecond,
		MaxDelay:       5 * time.Second,
		Multiplier:     2.0,
		JitterFraction: 0.1,
		Retryable:      isRetryable,
		Logger:         logger.GetLogger(),
	}

	timeout := time.Duration(cfg.TimeoutSec) * time.Second
	if timeout <= 0 {
		timeout = 20 * time.Second
	}

	logger.Info("LLM client initialized",
		zap.String("model", cfg.Model),
		zap.Bool("custom_base_url", cfg.BaseURL != ""),
	)

	return &Client{
		client:      openai.NewClientWithConfig(clientConfig),
		model:       cfg.Model,
		temperature: cfg.Temperature,
		maxTokens:   cfg.MaxTokens,
		timeout:     timeout,
		cb:          cb,
		retryConfig: retryConfig,
	}
}

func (c *Client) Complete(ctx context.Context, req CompletionRequest) (*CompletionResponse, error) {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	temperature := req.Temperature
	if temperature == 0 {
		temperature = c.temperature
	}

	maxTokens := req.MaxTokens
	if maxTokens == 0 {
		maxTokens = c.maxTokens
	}

	messages := []openai.ChatCompletionMessage{
		{
			Role:    openai.ChatMessageRoleSystem,
			Content: req.SystemPrompt,
		},
		{
			Role:    openai.ChatMessageRoleUser,
			Content: req.UserPrompt,
		},
	}

	var result *CompletionResponse

	err := c.cb.Execute(ctx, func(ctx context.Context) error {
		return retry.Do(ctx, c.retryConfig, func(ctx context.Context) error {
			resp, err := c.client.CreateChatCompletion(
				ctx,
				openai.ChatCompletionRequest{
					Model:       c.model,
					Messages:    messages,
					Temperature: temperature,
					MaxTokens:   maxTokens,
				},
			)

			if err != nil {
				return fmt.Errorf("failed to create completion: %w", err)
			}
			if len(resp.Choices) == 0 {
				return ErrEmptyCompletion
			}

			logger.Debug("LLM completion generated",
				zap.Int("prompt_tokens", resp.Usage.PromptTokens),
				zap.Int("completion_tokens", resp.Usage.CompletionTokens),
			)

			result = &CompletionResponse{
				Content: resp.Choices[0].Message.Content,
				Usage: Usage{
					PromptTokens:     resp.Usage.PromptTokens,
					CompletionTokens: resp.Usage.CompletionTokens,
					TotalTokens:      resp.Usage.TotalTokens,
				},
			}

			return nil
		})
	})

	if err != nil {
		return nil, err
	}

	return result, nil
}

// GenerateAnswer phrases an answer to query using only entries. With no
// entries the model is expected to decline.
func (c *Client) GenerateAnswer(ctx context.Context, query string, entries []models.KnowledgeEntry) (string, error) {
	resp, err := c.Complete(ctx, CompletionRequest{
		SystemPrompt: systemPrompt,
		UserPrompt:   BuildUserPrompt(query, entries),
		Temperature:  0.2,
		MaxTokens:    400,
	})
	if err != nil {
		return "", fmt.Errorf("failed to generate answer: %w", err)
	}

	answer := strings.TrimSpace(resp.Content)
	if answer == "" {
		return "", ErrEmptyCompletion
	}

	logger.Debug("Answer generated",
		zap.Int("entries", len(entries)),
		zap.Int("answer_length", len(answer)),
	)

	return answer, nil
}

// BuildUserPrompt lists the entries as numbered FAQ pairs followed by the
// visitor's question.
func BuildUserPrompt(query string, entries []models.KnowledgeEntry) string {
	var b strings.Builder

	if len(entries) == 0 {
		b.WriteString("FAQ entries: none\n\n")
	} else {
		b.WriteString("FAQ entries:\n")
		for i, e := range entries {
			if i == maxEntriesInPrompt {
				break
			}
			fmt.Fprintf(&b, "%d. Q: %s\n   A: %s\n", i+1,
				ingestion.PlainText(e.Question),
				ingestion.Excerpt(ingestion.PlainText(e.Answer), maxAnswerChars),
			)
		}
		b.WriteString("\n")
	}

	fmt.Fprintf(&b, "Visitor question: %s", strings.TrimSpace(query))
	return b.String()
}

func isRetryable(err error) bool {
	if errors.Is(err, circuitbreaker.ErrOpen) {
		return false
	}
	var apiErr *openai.APIError
	if errors.As(err, &apiErr) {
		return apiErr.HTTPStatusCode == 429 || apiErr.HTTPStatusCode >= 500
	}
	var reqErr *openai.RequestError
	if errors.As(err, &reqErr) {
		return reqErr.HTTPStatusCode == 429 || reqErr.HTTPStatusCode >= 500
	}
	return true
}
