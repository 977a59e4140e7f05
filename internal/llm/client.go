// Package llm implements the supplier decision provider on top of an
// OpenAI-compatible chat completion API. It judges initial proposals and
// carries the negotiation chat; all hard failure handling lives in the game
// engine, which falls back to the pure evaluation on any error.
package llm

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	openai "github.com/sashabaranov/go-openai"

	"chainsim/internal/negotiation"
	"chainsim/internal/sim"
)

const defaultModel = openai.GPT4oMini

const (
	evalMaxTokens = 150
	chatMaxTokens = 350

	// Proposal evaluation runs cooler than chat for consistent decisions.
	evalTemperature = 0.3
	chatTemperature = 0.7
)

// Client is the OpenAI-backed negotiation provider.
type Client struct {
	api   *openai.Client
	model string
	log   *slog.Logger

	// Rate limiting: max calls per minute.
	mu        sync.Mutex
	callCount int
	resetAt   time.Time
	maxPerMin int
}

// Options configures optional client behavior.
type Options struct {
	// BaseURL points the client at an OpenAI-compatible gateway.
	BaseURL string
	// Model overrides the default chat model.
	Model string
	// MaxCallsPerMinute caps outbound API calls; 0 means the default.
	MaxCallsPerMinute int
}

// NewClient creates the supplier provider.
// Returns nil if apiKey is empty (AI negotiation disabled).
func NewClient(apiKey string, opts Options, log *slog.Logger) *Client {
	if apiKey == "" {
		return nil
	}
	if log == nil {
		log = slog.Default()
	}
	cfg := openai.DefaultConfig(apiKey)
	if opts.BaseURL != "" {
		cfg.BaseURL = opts.BaseURL
	}
	model := opts.Model
	if model == "" {
		model = defaultModel
	}
	maxPerMin := opts.MaxCallsPerMinute
	if maxPerMin <= 0 {
		maxPerMin = 30
	}
	return &Client{
		api:       openai.NewClientWithConfig(cfg),
		model:     model,
		log:       log,
		maxPerMin: maxPerMin,
	}
}

// Enabled reports whether the client can make API calls.
func (c *Client) Enabled() bool {
	return c != nil && c.api != nil
}

var _ negotiation.Provider = (*Client)(nil)

// EvaluateProposal asks the model to accept or reject an initial proposal.
// The model answers on a DECISION/MESSAGE line protocol; anything it cannot
// parse is an error and the caller falls back to the pure evaluation.
func (c *Client) EvaluateProposal(ctx context.Context, proposed sim.Contract, econ negotiation.EconContext) (negotiation.Decision, string, error) {
	if !c.Enabled() {
		return "", "", fmt.Errorf("llm client not configured")
	}

	content, err := c.complete(ctx, []openai.ChatCompletionMessage{
		{Role: openai.ChatMessageRoleSystem, Content: evalSystemPrompt},
		{Role: openai.ChatMessageRoleUser, Content: buildEvaluationPrompt(proposed, econ)},
	}, evalMaxTokens, evalTemperature)
	if err != nil {
		return "", "", err
	}

	decision, message, err := parseDecision(content)
	if err != nil {
		return "", "", fmt.Errorf("parse evaluation: %w", err)
	}
	return decision, cleanMessage(message), nil
}

// ContinueChat produces the supplier's next chat message, and a draft
// contract when the model detects the student has agreed to terms. The
// model replies in a JSON envelope; the raw draft is returned as-is and the
// engine clamps it against the instructor constraints.
func (c *Client) ContinueChat(ctx context.Context, transcript []negotiation.Turn, draft *sim.Contract, econ negotiation.EconContext, fixedType sim.ContractType) (string, *sim.Contract, error) {
	if !c.Enabled() {
		return "", nil, fmt.Errorf("llm client not configured")
	}

	content, err := c.complete(ctx, buildChatMessages(transcript, draft, econ, fixedType), chatMaxTokens, chatTemperature)
	if err != nil {
		return "", nil, err
	}

	envelope, err := parseChatEnvelope(content)
	if err != nil {
		return "", nil, fmt.Errorf("parse chat reply: %w", err)
	}
	return cleanMessage(envelope.Response), envelope.draftContract(fixedType), nil
}

func (c *Client) complete(ctx context.Context, messages []openai.ChatCompletionMessage, maxTokens int, temperature float32) (string, error) {
	if err := c.throttle(); err != nil {
		return "", err
	}

	resp, err := c.api.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model:       c.model,
		Messages:    messages,
		MaxTokens:   maxTokens,
		Temperature: temperature,
	})
	if err != nil {
		return "", fmt.Errorf("chat completion: %w", err)
	}
	if len(resp.Choices) == 0 || resp.Choices[0].Message.Content == "" {
		return "", fmt.Errorf("empty completion response")
	}

	c.log.Debug("supplier completion",
		"model", c.model,
		"prompt_tokens", resp.Usage.PromptTokens,
		"completion_tokens", resp.Usage.CompletionTokens,
	)
	return resp.Choices[0].Message.Content, nil
}

func (c *Client) throttle() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	now := time.Now()
	if now.After(c.resetAt) {
		c.callCount = 0
		c.resetAt = now.Add(time.Minute)
	}
	if c.callCount >= c.maxPerMin {
		return fmt.Errorf("rate limit exceeded (%d calls/min)", c.maxPerMin)
	}
	c.callCount++
	return nil
}
