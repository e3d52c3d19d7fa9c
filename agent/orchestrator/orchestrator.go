package orchestrator

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/BaSui01/sunyadvisor/agent"
	"github.com/BaSui01/sunyadvisor/agent/persistence"
	"github.com/BaSui01/sunyadvisor/profile"
	"github.com/BaSui01/sunyadvisor/rag"
	"github.com/BaSui01/sunyadvisor/types"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.uber.org/zap"
)

// GenericErrorMessage is what the student sees when a turn fails.
const GenericErrorMessage = "Sorry, I ran into a problem answering that. Please try again in a moment."

const instrumentationName = "github.com/BaSui01/sunyadvisor/agent/orchestrator"

// ErrStaleChat is returned when the chat changed while a turn was in
// flight. The turn's results are discarded. It carries the STALE_CHAT code
// so the API answers 409 and the client can resend on the new chat.
var ErrStaleChat = types.NewError(types.ErrStaleChat, "chat changed during turn")

// Session identifies whose conversation an orchestrator drives.
type Session struct {
	UserID    string `json:"user_id"`
	SessionID string `json:"session_id"`
	ChatID    int64  `json:"chat_id"`
}

// TurnResult is the outcome of one user turn.
type TurnResult struct {
	// Reply is the text shown to the student.
	Reply string `json:"reply"`
	// Envelope is the counselor's routing decision.
	Envelope types.Envelope `json:"envelope"`
	// Routed is true when the knowledge agent produced Reply.
	Routed  bool             `json:"routed"`
	Sources []string         `json:"sources,omitempty"`
	ChatID  int64            `json:"chat_id"`
	Usage   types.TokenUsage `json:"usage"`
}

// ProfileRefresher proposes profile updates from a transcript.
type ProfileRefresher interface {
	Refresh(ctx context.Context, p *profile.StudentProfile, transcript []types.Message) ([]string, error)
}

// ProfileSaver stores refreshed profiles.
type ProfileSaver interface {
	SaveStudent(ctx context.Context, p *profile.StudentProfile) error
}

// Observer receives one callback per turn.
type Observer interface {
	ObserveTurn(routed bool, duration time.Duration, err error)
}

// Config tunes an orchestrator.
type Config struct {
	// RefreshEvery is the number of user messages between profile refreshes.
	RefreshEvery int `json:"refresh_every" yaml:"refresh_every"`
	// SummarizeOnNewChat writes a summary of the finished chat on NewChat.
	SummarizeOnNewChat bool `json:"summarize_on_new_chat" yaml:"summarize_on_new_chat"`
}

// DefaultConfig returns the default settings.
func DefaultConfig() Config {
	return Config{RefreshEvery: profile.DefaultRefreshEvery, SummarizeOnNewChat: true}
}

// Orchestrator routes a student's turns between the counselor and the
// knowledge agent and persists every message. One orchestrator serves one
// session; turns are processed one at a time.
type Orchestrator struct {
	cfg       Config
	counselor *agent.Agent
	knowledge *agent.Agent
	messages  persistence.MessageStore
	sessions  persistence.SessionStore

	persona    string
	refresher  ProfileRefresher
	saver      ProfileSaver
	summarizer *Summarizer
	observer   Observer
	logger     *zap.Logger

	turnMu sync.Mutex // serialises HandleTurn

	stateMu sync.Mutex // guards session and profile
	session Session
	profile *profile.StudentProfile
}

// Option customises an Orchestrator.
type Option func(*Orchestrator)

// WithConfig overrides the default settings.
func WithConfig(cfg Config) Option {
	return func(o *Orchestrator) { o.cfg = cfg }
}

// WithProfile renders p into the counselor prompt using persona.
func WithProfile(p *profile.StudentProfile, persona string) Option {
	return func(o *Orchestrator) {
		o.profile = p
		o.persona = persona
	}
}

// WithRefresher enables periodic profile refresh. saver may be nil.
func WithRefresher(r ProfileRefresher, saver ProfileSaver) Option {
	return func(o *Orchestrator) {
		o.refresher = r
		o.saver = saver
	}
}

// WithSummarizer enables chat summaries.
func WithSummarizer(s *Summarizer) Option {
	return func(o *Orchestrator) { o.summarizer = s }
}

// WithObserver reports turns to obs.
func WithObserver(obs Observer) Option {
	return func(o *Orchestrator) { o.observer = obs }
}

// New creates an orchestrator for sess. A nil session store falls back to
// an in-memory one.
func New(sess Session, counselor, knowledge *agent.Agent, messages persistence.MessageStore, sessions persistence.SessionStore, logger *zap.Logger, opts ...Option) (*Orchestrator, error) {
	if sess.SessionID == "" {
		return nil, types.NewError(types.ErrInvalidRequest, "session id is required")
	}
	if counselor == nil || knowledge == nil {
		return nil, types.NewError(types.ErrInvalidRequest, "counselor and knowledge agents are required")
	}
	if messages == nil {
		return nil, types.NewError(types.ErrInvalidRequest, "message store is required")
	}
	if sessions == nil {
		sessions = persistence.NewMemorySessionStore()
	}
	if sess.ChatID <= 0 {
		sess.ChatID = persistence.FirstChatID
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	o := &Orchestrator{
		cfg:       DefaultConfig(),
		counselor: counselor,
		knowledge: knowledge,
		messages:  messages,
		sessions:  sessions,
		session:   sess,
		logger: logger.With(
			zap.String("component", "orchestrator"),
			zap.String("session_id", sess.SessionID),
			zap.String("user_id", sess.UserID)),
	}
	for _, opt := range opts {
		opt(o)
	}
	if o.profile != nil {
		o.counselor.SetSystemPrompt(CounselorPrompt(o.persona, o.profile))
	}
	return o, nil
}

// Session returns the current session identity.
func (o *Orchestrator) Session() Session {
	o.stateMu.Lock()
	defer o.stateMu.Unlock()
	return o.session
}

// Profile returns a copy of the current profile, or nil.
func (o *Orchestrator) Profile() *profile.StudentProfile {
	o.stateMu.Lock()
	defer o.stateMu.Unlock()
	if o.profile == nil {
		return nil
	}
	cp := *o.profile
	return &cp
}

// SetProfile replaces the profile and re-renders the counselor prompt.
func (o *Orchestrator) SetProfile(p *profile.StudentProfile) {
	o.stateMu.Lock()
	defer o.stateMu.Unlock()
	o.profile = p
	o.counselor.SetSystemPrompt(CounselorPrompt(o.persona, p))
}

// Counselor exposes the counselor agent.
// Busy reports whether a turn is in progress.
func (o *Orchestrator) Busy() bool {
	if o.turnMu.TryLock() {
		o.turnMu.Unlock()
		return false
	}
	return true
}

func (o *Orchestrator) Counselor() *agent.Agent { return o.counselor }

// Knowledge exposes the knowledge agent.
func (o *Orchestrator) Knowledge() *agent.Agent { return o.knowledge }

// Resume registers the session and loads the history of its current chat.
func (o *Orchestrator) Resume(ctx context.Context) error {
	sess := o.Session()
	st, err := o.sessions.Ensure(ctx, sess.SessionID, sess.UserID)
	if err != nil {
		return fmt.Errorf("ensure session: %w", err)
	}
	return o.LoadHistory(ctx, st.ChatID)
}

// LoadHistory switches to chatID and rebuilds both agent logs from the
// persisted messages of that chat.
func (o *Orchestrator) LoadHistory(ctx context.Context, chatID int64) error {
	o.stateMu.Lock()
	defer o.stateMu.Unlock()
	o.session.ChatID = chatID
	return o.restoreLocked(ctx)
}

func (o *Orchestrator) restoreLocked(ctx context.Context) error {
	msgs, err := o.messages.History(ctx, o.session.SessionID, o.session.ChatID)
	if err != nil {
		o.counselor.Reset(nil)
		o.knowledge.Reset(nil)
		return fmt.Errorf("load history: %w", err)
	}
	var c, k []types.Message
	for _, m := range msgs {
		switch m.AgentName {
		case o.counselor.Name():
			c = append(c, m)
		case o.knowledge.Name():
			k = append(k, m)
		}
	}
	o.counselor.Reset(c)
	o.knowledge.Reset(k)
	o.logger.Debug("history loaded",
		zap.Int64("chat_id", o.session.ChatID),
		zap.Int("counselor", len(c)),
		zap.Int("knowledge", len(k)))
	return nil
}

// History returns the persisted messages of chatID.
func (o *Orchestrator) History(ctx context.Context, chatID int64) ([]types.Message, error) {
	return o.messages.History(ctx, o.Session().SessionID, chatID)
}

// NewChat starts a new chat and resets both agents to their system
// prompts. The finished chat is summarised when a summarizer is set.
func (o *Orchestrator) NewChat(ctx context.Context) (int64, error) {
	sess := o.Session()
	next, err := o.sessions.NextChat(ctx, sess.SessionID)
	if errors.Is(err, persistence.ErrNotFound) {
		if _, err = o.sessions.Ensure(ctx, sess.SessionID, sess.UserID); err == nil {
			next, err = o.sessions.NextChat(ctx, sess.SessionID)
		}
	}
	if err != nil {
		return 0, fmt.Errorf("next chat: %w", err)
	}

	o.stateMu.Lock()
	o.session.ChatID = next
	o.counselor.Reset(nil)
	o.knowledge.Reset(nil)
	o.stateMu.Unlock()
	o.logger.Info("new chat", zap.Int64("chat_id", next), zap.Int64("previous", sess.ChatID))

	if o.summarizer != nil && o.cfg.SummarizeOnNewChat {
		if _, err := o.Summarize(ctx, sess.ChatID); err != nil {
			o.logger.Warn("chat summary failed", zap.Int64("chat_id", sess.ChatID), zap.Error(err))
		}
	}
	return next, nil
}

// ClearChat is NewChat.
func (o *Orchestrator) ClearChat(ctx context.Context) (int64, error) {
	return o.NewChat(ctx)
}

// Summarize writes a one-paragraph summary of chatID to the message store.
// An empty chat yields an empty summary and nothing is written.
func (o *Orchestrator) Summarize(ctx context.Context, chatID int64) (string, error) {
	if o.summarizer == nil {
		return "", errors.New("orchestrator: no summarizer configured")
	}
	sessionID := o.Session().SessionID
	msgs, err := o.messages.History(ctx, sessionID, chatID)
	if err != nil {
		return "", err
	}
	var visible []types.Message
	for _, m := range msgs {
		if m.AgentName == o.counselor.Name() {
			visible = append(visible, m)
		}
	}
	transcript := profile.Transcript(visible)
	if strings.TrimSpace(transcript) == "" {
		return "", nil
	}
	summary, err := o.summarizer.Summarize(ctx, transcript)
	if err != nil {
		return "", err
	}
	if err := o.messages.SaveSummary(ctx, sessionID, chatID, summary); err != nil {
		return "", fmt.Errorf("save summary: %w", err)
	}
	return summary, nil
}

// HandleTurn processes one student message.
//
// The message goes to the counselor, whose reply must be an envelope. A
// reply addressed to the student ends the turn. A reply addressed to suny
// is forwarded to the knowledge agent, which may run tools; its answer is
// wrapped in a student envelope with the original phase and appended to
// the counselor so later turns see it as the counselor's own output.
// Every message is persisted as it is appended.
func (o *Orchestrator) HandleTurn(ctx context.Context, text string) (res *TurnResult, err error) {
	text = strings.TrimSpace(text)
	if text == "" {
		return nil, types.NewError(types.ErrInvalidRequest, "message must not be empty")
	}

	o.turnMu.Lock()
	defer o.turnMu.Unlock()

	sess := o.Session()
	chat := sess.ChatID
	start := time.Now()
	ctx = types.WithSessionID(ctx, sess.SessionID)

	ctx, span := otel.Tracer(instrumentationName).Start(ctx, "orchestrator.turn")
	span.SetAttributes(
		attribute.String("session.id", sess.SessionID),
		attribute.Int64("chat.id", chat))
	defer func() {
		routed := res != nil && res.Routed
		span.SetAttributes(attribute.Bool("turn.routed", routed))
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
			o.logger.Warn("turn failed", zap.Int64("chat_id", chat), zap.Error(err))
		}
		span.End()
		if o.observer != nil {
			o.observer.ObserveTurn(routed, time.Since(start), err)
		}
	}()

	// student -> counselor
	user := types.NewUserMessage(text).Between(types.PartyStudent, types.PartyCounselor)
	if err := o.commit(ctx, chat, o.counselor, user); err != nil {
		return nil, err
	}
	count := o.countUserMessage(ctx, sess)

	resp, err := o.counselor.Invoke(ctx)
	if err != nil {
		return nil, err
	}
	raw, _ := resp.FirstMessage()
	env, err := types.ParseEnvelope(raw.Content)
	if err != nil {
		o.logger.Warn("counselor reply is not an envelope", zap.Int("length", len(raw.Content)), zap.Error(err))
		return nil, err
	}
	res = &TurnResult{Envelope: env, ChatID: chat, Usage: resp.Usage}

	reply := types.NewAssistantMessage(env.Marshal()).Between(types.PartyCounselor, env.Recipient)
	if err := o.commit(ctx, chat, o.counselor, reply); err != nil {
		return nil, err
	}
	if env.ToStudent() {
		res.Reply = env.Message
		o.maybeRefresh(ctx, count)
		return res, nil
	}

	// counselor -> suny
	forward := types.NewUserMessage(env.Marshal()).Between(types.PartyCounselor, types.PartySuny)
	if err := o.commit(ctx, chat, o.knowledge, forward); err != nil {
		return nil, err
	}
	loop, err := o.knowledge.Respond(ctx)
	if loop != nil {
		appended := knowledgeParties(loop.Appended)
		if cerr := o.commit(ctx, chat, nil, appended...); cerr != nil {
			return nil, cerr
		}
		res.Usage.Add(loop.Usage)
		res.Sources = sourcesOf(appended)
	}
	if err != nil {
		return nil, err
	}

	// suny -> student, as the counselor's own reply
	answer := loop.Final.Content
	wrapped := types.Envelope{Phase: env.Phase, Recipient: types.PartyStudent, Message: answer}
	back := types.NewAssistantMessage(wrapped.Marshal()).Between(types.PartyCounselor, types.PartyStudent)
	if err := o.commit(ctx, chat, o.counselor, back); err != nil {
		return nil, err
	}

	res.Reply = answer
	res.Routed = true
	o.logger.Debug("turn routed to knowledge",
		zap.Int64("chat_id", chat),
		zap.Int("tool_iterations", loop.Iterations),
		zap.Int("sources", len(res.Sources)))
	o.maybeRefresh(ctx, count)
	return res, nil
}

// commit appends msgs to a (when set) and persists them, unless the chat
// has moved on. In that case both agents are rebuilt for the current chat
// and ErrStaleChat is returned.
func (o *Orchestrator) commit(ctx context.Context, chat int64, a *agent.Agent, msgs ...types.Message) error {
	if len(msgs) == 0 {
		return nil
	}
	o.stateMu.Lock()
	defer o.stateMu.Unlock()

	if o.session.ChatID != chat {
		o.logger.Info("dropping results for stale chat", zap.Int64("chat_id", chat), zap.Int64("current", o.session.ChatID))
		if err := o.restoreLocked(ctx); err != nil {
			o.logger.Warn("restore after stale chat failed", zap.Error(err))
		}
		return ErrStaleChat
	}

	out := make([]types.Message, len(msgs))
	for i, m := range msgs {
		if m.Timestamp.IsZero() {
			m.Timestamp = time.Now()
		}
		if a != nil {
			m = m.WithAgent(a.Name())
			a.AddMessage(m)
		} else if m.AgentName == "" {
			m = m.WithAgent(o.knowledge.Name())
		}
		out[i] = m.InChat(o.session.SessionID, chat)
	}
	if err := o.messages.Append(ctx, out...); err != nil {
		return fmt.Errorf("persist messages: %w", err)
	}
	return nil
}

func (o *Orchestrator) countUserMessage(ctx context.Context, sess Session) int64 {
	n, err := o.sessions.IncrUserMessages(ctx, sess.SessionID)
	if errors.Is(err, persistence.ErrNotFound) {
		if _, err = o.sessions.Ensure(ctx, sess.SessionID, sess.UserID); err == nil {
			n, err = o.sessions.IncrUserMessages(ctx, sess.SessionID)
		}
	}
	if err != nil {
		o.logger.Warn("count user message", zap.Error(err))
		return 0
	}
	return n
}

// maybeRefresh runs the profile refresher on every RefreshEvery-th user
// message. Failures are logged and never fail the turn.
func (o *Orchestrator) maybeRefresh(ctx context.Context, count int64) {
	every := int64(o.cfg.RefreshEvery)
	if o.refresher == nil || every <= 0 || count == 0 || count%every != 0 {
		return
	}
	current := o.Profile()
	if current == nil {
		current = &profile.StudentProfile{UserID: o.Session().UserID}
	}
	changed, err := o.refresher.Refresh(ctx, current, o.counselor.Messages())
	if err != nil {
		o.logger.Warn("profile refresh failed", zap.Error(err))
		return
	}
	if len(changed) == 0 {
		return
	}
	o.SetProfile(current)
	if o.saver != nil {
		if err := o.saver.SaveStudent(ctx, current); err != nil {
			o.logger.Warn("save refreshed profile", zap.Error(err))
		}
	}
}

// knowledgeParties tags tool-loop messages: calls and results stay inside
// the knowledge agent, the final answer goes back to the counselor.
func knowledgeParties(msgs []types.Message) []types.Message {
	out := make([]types.Message, len(msgs))
	for i, m := range msgs {
		if m.Sender == "" {
			if m.Role == types.RoleAssistant && !m.HasToolCalls() {
				m = m.Between(types.PartySuny, types.PartyCounselor)
			} else {
				m = m.Between(types.PartySuny, types.PartySuny)
			}
		}
		out[i] = m
	}
	return out
}

// sourcesOf collects the URLs cited by retrieval results, in order.
func sourcesOf(msgs []types.Message) []string {
	var out []string
	seen := map[string]bool{}
	for _, m := range msgs {
		if m.Role != types.RoleTool || m.Name != rag.SearchToolName {
			continue
		}
		for _, line := range strings.Split(m.Content, "\n") {
			u, ok := strings.CutPrefix(line, "URL: ")
			if !ok {
				continue
			}
			u = strings.TrimSpace(u)
			if u != "" && !seen[u] {
				seen[u] = true
				out = append(out, u)
			}
		}
	}
	return out
}
