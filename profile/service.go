package profile

import (
	"context"
	"fmt"

	"go.uber.org/zap"
)

// Service ties scoring, analysis and storage together for one submission.
type Service struct {
	repo     *Repository
	analyzer *Analyzer
	logger   *zap.Logger
}

// NewService creates a service. analyzer may be nil, in which case
// submissions are stored without an analysis.
func NewService(repo *Repository, analyzer *Analyzer, logger *zap.Logger) *Service {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Service{repo: repo, analyzer: analyzer, logger: logger.With(zap.String("component", "assessment"))}
}

// Submit scores responses, analyses them and stores everything. A failed
// analysis is logged and the assessment is stored without one.
func (s *Service) Submit(ctx context.Context, userID string, responses []Response) (*StudentProfile, error) {
	scores, err := ScoreThemes(responses)
	if err != nil {
		return nil, err
	}

	var analysis string
	if s.analyzer != nil {
		analysis, err = s.analyzer.Analyze(ctx, responses, scores)
		if err != nil {
			s.logger.Warn("storing assessment without analysis", zap.String("user_id", userID), zap.Error(err))
			analysis = ""
		}
	}

	if err := s.repo.SaveAssessment(ctx, userID, responses, scores, analysis); err != nil {
		return nil, fmt.Errorf("save assessment: %w", err)
	}
	s.logger.Info("assessment stored",
		zap.String("user_id", userID),
		zap.String("top_theme", TopThemes(scores, 1)[0].Theme))
	return s.repo.LoadProfile(ctx, userID)
}

// Profile loads the profile of userID.
func (s *Service) Profile(ctx context.Context, userID string) (*StudentProfile, error) {
	return s.repo.LoadProfile(ctx, userID)
}

// SaveStudent stores demographic fields.
func (s *Service) SaveStudent(ctx context.Context, p *StudentProfile) error {
	return s.repo.SaveStudent(ctx, p)
}
