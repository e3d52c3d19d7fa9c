package handlers

import (
	"context"
	"errors"
	"net/http"

	"github.com/BaSui01/sunyadvisor/api"
	"github.com/BaSui01/sunyadvisor/profile"
	"github.com/BaSui01/sunyadvisor/types"

	"go.uber.org/zap"
)

// likertScale labels answers 1 through 5.
var likertScale = []string{
	"Strongly disagree",
	"Disagree",
	"Neutral",
	"Agree",
	"Strongly agree",
}

// Assessments scores and stores strengths assessments.
type Assessments interface {
	Submit(ctx context.Context, userID string, responses []profile.Response) (*profile.StudentProfile, error)
	Profile(ctx context.Context, userID string) (*profile.StudentProfile, error)
}

// ProfileListener is told about a new profile so live sessions pick it up.
type ProfileListener interface {
	UpdateProfile(userID string, p *profile.StudentProfile) int
}

// AssessmentHandler serves the strengths assessment.
type AssessmentHandler struct {
	assessments Assessments
	listener    ProfileListener
	logger      *zap.Logger
}

// NewAssessmentHandler creates the handler. listener may be nil.
func NewAssessmentHandler(assessments Assessments, listener ProfileListener, logger *zap.Logger) *AssessmentHandler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &AssessmentHandler{
		assessments: assessments,
		listener:    listener,
		logger:      logger.With(zap.String("handler", "assessment")),
	}
}

// HandleQuestions lists every statement with its theme.
// @Summary Assessment questions
// @Tags assessment
// @Produce json
// @Success 200 {object} api.QuestionsResponse
// @Router /v1/assessment/questions [get]
func (h *AssessmentHandler) HandleQuestions(w http.ResponseWriter, r *http.Request) {
	qs := profile.Questions()
	out := api.QuestionsResponse{Scale: likertScale, Questions: make([]api.Question, 0, len(qs))}
	for _, q := range qs {
		theme, _ := profile.ThemeByID(q.ThemeID)
		out.Questions = append(out.Questions, api.Question{ID: q.ID, Text: q.Text, Theme: theme.Name})
	}
	WriteSuccess(w, out)
}

// HandleSubmit scores a complete assessment and returns the new profile.
// @Summary Submit assessment
// @Tags assessment
// @Accept json
// @Produce json
// @Param request body api.AssessmentRequest true "Answers"
// @Success 200 {object} api.ProfileResponse
// @Router /v1/assessment [post]
func (h *AssessmentHandler) HandleSubmit(w http.ResponseWriter, r *http.Request) {
	userID, ok := types.UserID(r.Context())
	if !ok {
		WriteErrorMessage(w, http.StatusUnauthorized, types.ErrAuthentication, "authentication required", h.logger)
		return
	}
	if !ValidateContentType(w, r, h.logger) {
		return
	}
	var req api.AssessmentRequest
	if err := DecodeJSONBody(w, r, &req, h.logger); err != nil {
		return
	}

	responses := make([]profile.Response, len(req.Answers))
	for i, a := range req.Answers {
		responses[i] = profile.Response{QuestionID: a.QuestionID, Answer: a.Answer}
	}
	p, err := h.assessments.Submit(r.Context(), userID, responses)
	if err != nil {
		if errors.Is(err, profile.ErrIncompleteResponses) || errors.Is(err, profile.ErrInvalidResponse) {
			WriteError(w, types.NewError(types.ErrInvalidRequest, err.Error()).WithCause(err), h.logger)
			return
		}
		WriteAnyError(w, err, h.logger)
		return
	}

	if h.listener != nil {
		if n := h.listener.UpdateProfile(userID, p); n > 0 {
			h.logger.Debug("profile pushed to live sessions", zap.String("user_id", userID), zap.Int("sessions", n))
		}
	}
	WriteSuccess(w, api.ProfileResponse{Profile: p, Rendered: profile.Render(p)})
}

// HandleProfile returns the stored profile of the caller.
// @Summary Current profile
// @Tags assessment
// @Produce json
// @Success 200 {object} api.ProfileResponse
// @Router /v1/profile [get]
func (h *AssessmentHandler) HandleProfile(w http.ResponseWriter, r *http.Request) {
	userID, ok := types.UserID(r.Context())
	if !ok {
		WriteErrorMessage(w, http.StatusUnauthorized, types.ErrAuthentication, "authentication required", h.logger)
		return
	}
	p, err := h.assessments.Profile(r.Context(), userID)
	if err != nil {
		WriteAnyError(w, err, h.logger)
		return
	}
	WriteSuccess(w, api.ProfileResponse{Profile: p, Rendered: profile.Render(p)})
}
