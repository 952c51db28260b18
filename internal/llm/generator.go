// Package llm produces assistant replies with the OpenAI chat completions API.
package llm

import (
	"context"
	"errors"
	"fmt"
	"io"
	"iter"
	"strings"

	openai "github.com/sashabaranov/go-openai"

	"github.com/rbright/parley/internal/conversation"
)

// Config selects the model and transport for chat completions.
type Config struct {
	APIKey    string
	Model     string
	Stream    bool
	BaseURL   string
	MaxTokens int
}

// Generator turns a conversation into reply text fragments.
type Generator struct {
	client *openai.Client
	cfg    Config
}

// New builds a generator. An empty BaseURL uses the public API.
func New(cfg Config) *Generator {
	clientCfg := openai.DefaultConfig(cfg.APIKey)
	if base := strings.TrimRight(strings.TrimSpace(cfg.BaseURL), "/"); base != "" {
		clientCfg.BaseURL = base
	}
	return &Generator{client: openai.NewClientWithConfig(clientCfg), cfg: cfg}
}

// Model returns the configured model id.
func (g *Generator) Model() string { return g.cfg.Model }

// Respond requests a completion for messages. The sequence is lazy: the
// request is sent when iteration starts, and it yields fragments in order
// followed by at most one error. Stopping iteration early closes the stream.
func (g *Generator) Respond(ctx context.Context, messages []conversation.Message) iter.Seq2[string, error] {
	req := openai.ChatCompletionRequest{
		Model:     g.cfg.Model,
		Messages:  toOpenAI(messages),
		MaxTokens: g.cfg.MaxTokens,
	}

	if !g.cfg.Stream {
		return func(yield func(string, error) bool) {
			resp, err := g.client.CreateChatCompletion(ctx, req)
			if err != nil {
				yield("", fmt.Errorf("create completion: %w", err))
				return
			}
			if len(resp.Choices) == 0 {
				yield("", errors.New("completion returned no choices"))
				return
			}
			if content := resp.Choices[0].Message.Content; content != "" {
				yield(content, nil)
			}
		}
	}

	return func(yield func(string, error) bool) {
		req.Stream = true
		stream, err := g.client.CreateChatCompletionStream(ctx, req)
		if err != nil {
			yield("", fmt.Errorf("create completion stream: %w", err))
			return
		}
		defer stream.Close()

		for {
			chunk, err := stream.Recv()
			if errors.Is(err, io.EOF) {
				return
			}
			if err != nil {
				yield("", fmt.Errorf("receive completion chunk: %w", err))
				return
			}
			if len(chunk.Choices) == 0 {
				continue
			}
			if delta := chunk.Choices[0].Delta.Content; delta != "" {
				if !yield(delta, nil) {
					return
				}
			}
		}
	}
}

// Probe checks that the key is accepted and the model exists.
func (g *Generator) Probe(ctx context.Context) error {
	if _, err := g.client.GetModel(ctx, g.cfg.Model); err != nil {
		return fmt.Errorf("get model %q: %w", g.cfg.Model, err)
	}
	return nil
}

func toOpenAI(messages []conversation.Message) []openai.ChatCompletionMessage {
	out := make([]openai.ChatCompletionMessage, 0, len(messages))
	for _, msg := range messages {
		out = append(out, openai.ChatCompletionMessage{Role: roleFor(msg.Role), Content: msg.Content})
	}
	return out
}

func roleFor(role conversation.Role) string {
	switch role {
	case conversation.RoleSystem:
		return openai.ChatMessageRoleSystem
	case conversation.RoleAssistant:
		return openai.ChatMessageRoleAssistant
	default:
		return openai.ChatMessageRoleUser
	}
}
