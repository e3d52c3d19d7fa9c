package handlers

import (
	"context"
	"errors"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/BaSui01/sunyadvisor/agent/orchestrator"
	"github.com/BaSui01/sunyadvisor/api"
	"github.com/BaSui01/sunyadvisor/types"

	"github.com/coder/websocket"
	"github.com/coder/websocket/wsjson"
	"go.uber.org/zap"
)

// SessionSource hands out the orchestrator of a user's session.
type SessionSource interface {
	Get(ctx context.Context, userID, sessionID string) (*orchestrator.Orchestrator, error)
}

// ChatHandler serves the conversation endpoints.
type ChatHandler struct {
	sessions    SessionSource
	turnTimeout time.Duration
	origins     []string
	logger      *zap.Logger
}

// NewChatHandler creates a chat handler. turnTimeout bounds one turn; zero
// leaves it to the request context. origins are the websocket origins
// allowed besides the server's own host.
func NewChatHandler(sessions SessionSource, turnTimeout time.Duration, origins []string, logger *zap.Logger) *ChatHandler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ChatHandler{
		sessions:    sessions,
		turnTimeout: turnTimeout,
		origins:     originHosts(origins),
		logger:      logger.With(zap.String("handler", "chat")),
	}
}

// originHosts turns configured origins such as https://app.example.edu into
// the host patterns the websocket handshake matches against.
func originHosts(origins []string) []string {
	out := make([]string, 0, len(origins))
	for _, o := range origins {
		if u, err := url.Parse(o); err == nil && u.Host != "" {
			out = append(out, u.Host)
			continue
		}
		out = append(out, o)
	}
	return out
}

func (h *ChatHandler) session(w http.ResponseWriter, r *http.Request, sessionID string) (*orchestrator.Orchestrator, bool) {
	userID, ok := types.UserID(r.Context())
	if !ok {
		WriteErrorMessage(w, http.StatusUnauthorized, types.ErrAuthentication, "authentication required", h.logger)
		return nil, false
	}
	o, err := h.sessions.Get(r.Context(), userID, sessionID)
	if err != nil {
		WriteAnyError(w, err, h.logger)
		return nil, false
	}
	return o, true
}

// turnError maps a failed turn to what the student may see. Client errors
// pass through; anything else keeps its code but shows the generic text.
func turnError(err error) *types.Error {
	e, ok := types.AsError(err)
	if !ok {
		return types.NewError(types.ErrInternalError, orchestrator.GenericErrorMessage).WithCause(err)
	}
	switch e.Code {
	case types.ErrInvalidRequest, types.ErrStaleChat, types.ErrAuthorization:
		return e
	}
	return types.NewError(e.Code, orchestrator.GenericErrorMessage).
		WithCause(err).
		WithRetryable(types.IsTransient(err))
}

func (h *ChatHandler) runTurn(ctx context.Context, o *orchestrator.Orchestrator, text string) (*api.TurnResponse, error) {
	if h.turnTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, h.turnTimeout)
		defer cancel()
	}
	res, err := o.HandleTurn(ctx, text)
	if err != nil {
		return nil, turnError(err)
	}
	return &api.TurnResponse{
		SessionID: o.Session().SessionID,
		ChatID:    res.ChatID,
		Reply:     res.Reply,
		Phase:     res.Envelope.Phase,
		Routed:    res.Routed,
		Sources:   res.Sources,
		Usage:     res.Usage,
	}, nil
}

// HandleTurn processes one student message.
// @Summary Send a message
// @Tags chat
// @Accept json
// @Produce json
// @Param request body api.TurnRequest true "Student message"
// @Success 200 {object} api.TurnResponse
// @Router /v1/chat/turn [post]
func (h *ChatHandler) HandleTurn(w http.ResponseWriter, r *http.Request) {
	if !ValidateContentType(w, r, h.logger) {
		return
	}
	var req api.TurnRequest
	if err := DecodeJSONBody(w, r, &req, h.logger); err != nil {
		return
	}
	o, ok := h.session(w, r, req.SessionID)
	if !ok {
		return
	}
	resp, err := h.runTurn(r.Context(), o, req.Message)
	if err != nil {
		WriteAnyError(w, err, h.logger)
		return
	}
	WriteSuccess(w, resp)
}

// HandleNewChat starts a new chat in the session.
// @Summary Start a new chat
// @Tags chat
// @Accept json
// @Produce json
// @Param request body api.NewChatRequest true "Session"
// @Success 200 {object} api.NewChatResponse
// @Router /v1/chat/new [post]
func (h *ChatHandler) HandleNewChat(w http.ResponseWriter, r *http.Request) {
	var req api.NewChatRequest
	if err := DecodeJSONBody(w, r, &req, h.logger); err != nil {
		return
	}
	o, ok := h.session(w, r, req.SessionID)
	if !ok {
		return
	}
	chatID, err := o.NewChat(r.Context())
	if err != nil {
		WriteAnyError(w, err, h.logger)
		return
	}
	WriteSuccess(w, api.NewChatResponse{SessionID: req.SessionID, ChatID: chatID})
}

// HandleHistory returns the messages of one chat. Without chat_id the
// current chat is returned.
// @Summary Chat history
// @Tags chat
// @Produce json
// @Param session_id query string true "Session id"
// @Param chat_id query int false "Chat id"
// @Success 200 {object} api.HistoryResponse
// @Router /v1/chat/history [get]
func (h *ChatHandler) HandleHistory(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	o, ok := h.session(w, r, q.Get("session_id"))
	if !ok {
		return
	}
	chatID := o.Session().ChatID
	if raw := q.Get("chat_id"); raw != "" {
		id, err := strconv.ParseInt(raw, 10, 64)
		if err != nil || id <= 0 {
			WriteErrorMessage(w, http.StatusBadRequest, types.ErrInvalidRequest, "chat_id must be a positive integer", h.logger)
			return
		}
		chatID = id
	}

	msgs, err := o.History(r.Context(), chatID)
	if err != nil {
		WriteAnyError(w, err, h.logger)
		return
	}
	out := api.HistoryResponse{SessionID: o.Session().SessionID, ChatID: chatID, Messages: make([]api.Message, 0, len(msgs))}
	for _, m := range msgs {
		// only the exchange with the student, as the counselor stored it
		if m.AgentName != orchestrator.CounselorName ||
			(m.Sender != types.PartyStudent && m.Recipient != types.PartyStudent) {
			continue
		}
		out.Messages = append(out.Messages, api.ToMessage(studentView(m)))
	}
	WriteSuccess(w, out)
}

// studentView replaces a counselor envelope with its message text.
func studentView(m types.Message) types.Message {
	if m.Role != types.RoleAssistant {
		return m
	}
	if env, err := types.ParseEnvelope(m.Content); err == nil {
		m.Content = env.Message
	}
	return m
}

// WSFrame is one websocket message from the client.
type WSFrame struct {
	Type    string `json:"type"` // "turn" or "new_chat"
	Message string `json:"message,omitempty"`
}

// WSReply is one websocket message to the client.
type WSReply struct {
	Type  string     `json:"type"` // "reply", "new_chat" or "error"
	Data  any        `json:"data,omitempty"`
	Error *ErrorInfo `json:"error,omitempty"`
}

// HandleSocket runs a session over a websocket, one frame per turn.
// @Summary Chat over websocket
// @Tags chat
// @Param session_id query string true "Session id"
// @Router /v1/chat/ws [get]
func (h *ChatHandler) HandleSocket(w http.ResponseWriter, r *http.Request) {
	o, ok := h.session(w, r, r.URL.Query().Get("session_id"))
	if !ok {
		return
	}
	conn, err := websocket.Accept(w, r, &websocket.AcceptOptions{OriginPatterns: h.origins})
	if err != nil {
		h.logger.Debug("websocket upgrade failed", zap.Error(err))
		return
	}
	defer conn.Close(websocket.StatusInternalError, "unexpected close")

	ctx := r.Context()
	sessionID := o.Session().SessionID
	for {
		var frame WSFrame
		if err := wsjson.Read(ctx, conn, &frame); err != nil {
			status := websocket.CloseStatus(err)
			if status == websocket.StatusNormalClosure || status == websocket.StatusGoingAway || errors.Is(err, context.Canceled) {
				conn.Close(websocket.StatusNormalClosure, "")
				return
			}
			h.logger.Debug("websocket read failed", zap.String("session_id", sessionID), zap.Error(err))
			conn.Close(websocket.StatusUnsupportedData, "expected a JSON frame")
			return
		}

		var reply WSReply
		switch frame.Type {
		case "turn", "":
			resp, err := h.runTurn(ctx, o, frame.Message)
			if err != nil {
				reply = h.wsError(err)
			} else {
				reply = WSReply{Type: "reply", Data: resp}
			}
		case "new_chat":
			chatID, err := o.NewChat(ctx)
			if err != nil {
				reply = h.wsError(err)
			} else {
				reply = WSReply{Type: "new_chat", Data: api.NewChatResponse{SessionID: sessionID, ChatID: chatID}}
			}
		default:
			reply = h.wsError(types.NewError(types.ErrInvalidRequest, "unknown frame type "+strconv.Quote(frame.Type)))
		}

		if err := wsjson.Write(ctx, conn, reply); err != nil {
			h.logger.Debug("websocket write failed", zap.String("session_id", sessionID), zap.Error(err))
			return
		}
	}
}

func (h *ChatHandler) wsError(err error) WSReply {
	e, ok := types.AsError(err)
	if !ok {
		e = types.NewError(types.ErrInternalError, "internal server error").WithCause(err)
	}
	h.logger.Warn("websocket turn failed", zap.String("code", string(e.Code)), zap.Error(e.Cause))
	return WSReply{Type: "error", Error: &ErrorInfo{Code: string(e.Code), Message: e.Message, Retryable: e.Retryable}}
}
