package backend

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/cenkalti/backoff/v4"

	"satfusion-desktop/internal/cache"
	"satfusion-desktop/internal/logging"
)

const (
	agentPersona        = "Sat-Fusion-AI"
	offlineAnswerPrefix = "(Backup Mode) "
)

type agentConfig struct {
	maxRetries     uint64
	initialBackoff time.Duration
	maxBackoff     time.Duration
	answers        *cache.Cache[string, AgentResponse]
}

func defaultAgentConfig() agentConfig {
	return agentConfig{
		maxRetries:     2,
		initialBackoff: 500 * time.Millisecond,
		maxBackoff:     4 * time.Second,
	}
}

// WithAgentRetry sets how many times a failed reasoning call is retried and
// the first backoff interval.
func WithAgentRetry(maxRetries uint64, initial time.Duration) Option {
	return func(c *Client) {
		c.agent.maxRetries = maxRetries
		c.agent.initialBackoff = initial
	}
}

// WithAgentCache caches answers by normalized query.
func WithAgentCache(answers *cache.Cache[string, AgentResponse]) Option {
	return func(c *Client) { c.agent.answers = answers }
}

type agentRequest struct {
	Query   string         `json:"query"`
	Context map[string]any `json:"context,omitempty"`
}

// Reason sends a natural-language query to the backend agent. If the
// backend stays unreachable after the retries, a keyword heuristic answers
// locally and the response is marked Offline. Offline answers are not
// cached so a recovered backend is consulted on the next ask.
func (c *Client) Reason(ctx context.Context, query string, hints map[string]any) AgentResponse {
	key := strings.ToLower(strings.TrimSpace(query))
	if c.agent.answers != nil {
		if cached, ok := c.agent.answers.Get(key); ok {
			return cached
		}
	}

	var out AgentResponse
	attempts := 0
	op := func() error {
		attempts++
		out = AgentResponse{}
		err := c.doJSON(ctx, "agent", http.MethodPost, "/agent/reason", agentRequest{Query: query, Context: hints}, &out)
		if err == nil {
			return nil
		}
		var se *statusError
		if errors.As(err, &se) && se.Code >= 400 && se.Code < 500 && se.Code != http.StatusTooManyRequests {
			return backoff.Permanent(err)
		}
		return err
	}

	eb := backoff.NewExponentialBackOff()
	eb.InitialInterval = c.agent.initialBackoff
	eb.MaxInterval = c.agent.maxBackoff
	policy := backoff.WithContext(backoff.WithMaxRetries(eb, c.agent.maxRetries), ctx)

	if err := backoff.Retry(op, policy); err != nil {
		c.log.Info(ctx, "agent.offline_fallback",
			logging.Int("attempts", attempts),
			logging.Err(err))
		return offlineAnswer(query, err)
	}

	if out.Query == "" {
		out.Query = query
	}
	if out.Thoughts == nil {
		out.Thoughts = []string{}
	}
	if out.Actions == nil {
		out.Actions = []Action{}
	}
	if c.agent.answers != nil {
		c.agent.answers.Set(key, out)
	}
	return out
}

// offlineAnswer is the keyword heuristic used when the backend agent is
// unreachable. It is text only and never carries actions.
func offlineAnswer(query string, cause error) AgentResponse {
	thoughts := []string{
		fmt.Sprintf("Received query: '%s'", query),
		fmt.Sprintf("Info: API Error. Details: %v", cause),
		"Switching to Offline Mode.",
	}
	q := strings.ToLower(query)

	var answer string
	switch {
	case containsAny(q, "cloud", "flood", "rain"):
		thoughts = append(thoughts, "Fallback: Detected adverse weather context. Rule 'All-Weather' applies.")
		answer = "I have activated the All-Weather mode. Using Sentinel-1 SAR backscatter to penetrate the cloud cover, fused with available optical context."
	case containsAny(q, "field", "farm", "boundary"):
		thoughts = append(thoughts, "Fallback: Detected high-resolution requirement. Rule 'Spatial Completeness' applies.")
		answer = "I have prioritized Spatial Completeness. Fusing LISS-IV (5.8m) data from ISRO for farm plot structures."
	default:
		thoughts = append(thoughts, "Fallback: Standard monitoring request.")
		answer = "Retrieved standard Sentinel-2 imagery. Conditions are clear."
	}

	return AgentResponse{
		Query:    query,
		Answer:   offlineAnswerPrefix + answer,
		Thoughts: thoughts,
		Actions:  []Action{},
		Persona:  agentPersona,
		Offline:  true,
	}
}

func containsAny(s string, words ...string) bool {
	for _, w := range words {
		if strings.Contains(s, w) {
			return true
		}
	}
	return false
}
