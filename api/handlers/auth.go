package handlers

import (
	"context"
	"net/http"
	"time"

	"github.com/BaSui01/sunyadvisor/api"
	"github.com/BaSui01/sunyadvisor/internal/account"
	"github.com/BaSui01/sunyadvisor/profile"

	"go.uber.org/zap"
)

// Accounts registers and authenticates students.
type Accounts interface {
	Signup(ctx context.Context, req account.SignupRequest) (*account.Session, error)
	Login(ctx context.Context, email, password string) (*account.Session, error)
}

// StudentStore keeps the demographic part of a profile.
type StudentStore interface {
	SaveStudent(ctx context.Context, p *profile.StudentProfile) error
}

// AuthHandler serves signup and login.
type AuthHandler struct {
	accounts Accounts
	students StudentStore
	logger   *zap.Logger
}

// NewAuthHandler creates the handler. students may be nil.
func NewAuthHandler(accounts Accounts, students StudentStore, logger *zap.Logger) *AuthHandler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &AuthHandler{accounts: accounts, students: students, logger: logger.With(zap.String("handler", "auth"))}
}

// HandleSignup creates an account and returns a token for it.
// @Summary Sign up
// @Tags auth
// @Accept json
// @Produce json
// @Param request body account.SignupRequest true "New account"
// @Success 201 {object} account.Session
// @Router /v1/auth/signup [post]
func (h *AuthHandler) HandleSignup(w http.ResponseWriter, r *http.Request) {
	if !ValidateContentType(w, r, h.logger) {
		return
	}
	var req account.SignupRequest
	if err := DecodeJSONBody(w, r, &req, h.logger); err != nil {
		return
	}
	sess, err := h.accounts.Signup(r.Context(), req)
	if err != nil {
		WriteAnyError(w, err, h.logger)
		return
	}

	if h.students != nil {
		student := &profile.StudentProfile{UserID: sess.User.ID, FirstName: sess.User.FirstName, LastName: sess.User.LastName}
		if err := h.students.SaveStudent(r.Context(), student); err != nil {
			// the account exists; the counselor just won't know the name yet
			h.logger.Warn("failed to store student record", zap.String("user_id", sess.User.ID), zap.Error(err))
		}
	}
	WriteJSON(w, http.StatusCreated, Response{Success: true, Data: sess, Timestamp: time.Now()})
}

// HandleLogin exchanges credentials for a token.
// @Summary Log in
// @Tags auth
// @Accept json
// @Produce json
// @Param request body api.LoginRequest true "Credentials"
// @Success 200 {object} account.Session
// @Router /v1/auth/login [post]
func (h *AuthHandler) HandleLogin(w http.ResponseWriter, r *http.Request) {
	if !ValidateContentType(w, r, h.logger) {
		return
	}
	var req api.LoginRequest
	if err := DecodeJSONBody(w, r, &req, h.logger); err != nil {
		return
	}
	sess, err := h.accounts.Login(r.Context(), req.Email, req.Password)
	if err != nil {
		WriteAnyError(w, err, h.logger)
		return
	}
	WriteSuccess(w, sess)
}
