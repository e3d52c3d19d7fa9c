package profile

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/BaSui01/sunyadvisor/llm"
	"github.com/BaSui01/sunyadvisor/types"

	"go.uber.org/zap"
)

// DefaultRefreshEvery is the number of user messages between refreshes.
const DefaultRefreshEvery = 5

var refresherPrompt = `You maintain a student's college-search profile.
Given the current profile and a recent conversation, return a single JSON object containing only fields
the student has stated or clearly changed. Allowed keys: ` + strings.Join(PatchableKeys, ", ") + `.
Use strings for every value. Return {} when nothing changed. Never invent information.`

// Refresher proposes profile updates from a conversation transcript.
type Refresher struct {
	provider llm.Provider
	cfg      LLMConfig
	logger   *zap.Logger
}

// NewRefresher creates a refresher.
func NewRefresher(provider llm.Provider, cfg LLMConfig, logger *zap.Logger) *Refresher {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Refresher{provider: provider, cfg: cfg, logger: logger.With(zap.String("component", "profile_refresher"))}
}

// Refresh asks the model for a patch and applies the whitelisted part of it
// to p. It returns the keys that changed.
func (r *Refresher) Refresh(ctx context.Context, p *StudentProfile, transcript []types.Message) ([]string, error) {
	if r.provider == nil {
		return nil, types.NewError(types.ErrProviderNotSet, "profile refresher has no provider")
	}
	current, err := json.Marshal(p.Fields())
	if err != nil {
		return nil, err
	}
	input := fmt.Sprintf("Current profile:\n%s\n\nConversation:\n%s", current, Transcript(transcript))

	raw, err := complete(ctx, r.provider, r.cfg, llm.ResponseFormatJSON, refresherPrompt, input)
	if err != nil {
		return nil, fmt.Errorf("refresh profile: %w", err)
	}
	obj, ok := types.ExtractJSONObject(raw)
	if !ok {
		r.logger.Warn("refresh returned no JSON object", zap.Int("length", len(raw)))
		return nil, nil
	}
	var patch map[string]any
	if err := json.Unmarshal([]byte(obj), &patch); err != nil {
		r.logger.Warn("refresh returned invalid JSON", zap.Error(err))
		return nil, nil
	}
	changed := p.ApplyPatch(patch)
	if len(changed) > 0 {
		r.logger.Info("profile refreshed", zap.String("user_id", p.UserID), zap.Strings("fields", changed))
	}
	return changed, nil
}

// Transcript renders student-visible turns as "Student:" and "Counselor:"
// lines. Envelope replies are reduced to their message text.
func Transcript(msgs []types.Message) string {
	var b strings.Builder
	for _, m := range msgs {
		switch {
		case m.Role == types.RoleUser && m.Sender == types.PartyStudent:
			fmt.Fprintf(&b, "Student: %s\n", m.Content)
		case m.Role == types.RoleAssistant && !m.HasToolCalls() && m.Content != "":
			text := m.Content
			if env, err := types.ParseEnvelope(text); err == nil {
				if !env.ToStudent() {
					continue
				}
				text = env.Message
			}
			fmt.Fprintf(&b, "Counselor: %s\n", text)
		}
	}
	return b.String()
}
