// Package chat answers rolling-conversation messages with a single assistant
// reply from the completion endpoint.
package chat

import (
	"context"

	"github.com/linnemanlabs/go-core/log"

	"github.com/linnemanlabs/carecompass/internal/llm/openai"
	"github.com/linnemanlabs/carecompass/internal/triage"
)

const systemPrompt = "You are a friendly medical navigation helper. Give clear, non-diagnostic guidance and red-flag warnings. Keep answers short."

// Fixed replies for the two degrade paths. Configuration and upstream
// problems never surface as errors to the caller.
const (
	NotConfiguredReply = "Chat is not configured yet. Ask the administrator to set an API key."
	UpstreamErrorReply = "Sorry, something went wrong. Please try again in a moment."
)

// Service produces chat replies.
type Service struct {
	provider triage.Provider
	logger   log.Logger
}

// New creates a chat service. provider may be nil when no API key is
// configured; Reply then always returns NotConfiguredReply.
func New(provider triage.Provider, logger log.Logger) *Service {
	if logger == nil {
		logger = log.Nop()
	}
	return &Service{provider: provider, logger: logger}
}

// Reply sends the rolling message list to the completion endpoint and
// returns the assistant reply. It never returns an error: degrade paths
// produce fixed replies instead.
func (s *Service) Reply(ctx context.Context, messages []openai.Message) string {
	if s.provider == nil {
		return NotConfiguredReply
	}

	req := &openai.Request{
		Messages:    append([]openai.Message{{Role: "system", Content: systemPrompt}}, messages...),
		Temperature: 0.3,
	}

	resp, err := s.provider.Send(ctx, req)
	if err != nil {
		s.logger.Error(ctx, err, "chat completion call failed")
		return UpstreamErrorReply
	}

	reply, err := resp.Reply()
	if err != nil {
		s.logger.Error(ctx, err, "chat completion returned no content")
		return UpstreamErrorReply
	}
	return reply
}
