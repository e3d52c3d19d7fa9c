package profile

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/BaSui01/sunyadvisor/internal/database"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// DomainRecord is one row of domains.
type DomainRecord struct {
	ID   uint   `gorm:"primaryKey"`
	Name string `gorm:"size:64;not null;uniqueIndex"`
}

func (DomainRecord) TableName() string { return "domains" }

// ThemeRecord is one row of themes.
type ThemeRecord struct {
	ID          uint   `gorm:"primaryKey"`
	DomainID    uint   `gorm:"not null;index"`
	Name        string `gorm:"size:64;not null;uniqueIndex"`
	Description string `gorm:"type:text"`
}

func (ThemeRecord) TableName() string { return "themes" }

// QuestionRecord is one row of questions.
type QuestionRecord struct {
	ID       uint   `gorm:"primaryKey"`
	ThemeID  uint   `gorm:"not null;index"`
	Position int    `gorm:"not null"`
	Text     string `gorm:"type:text;not null"`
}

func (QuestionRecord) TableName() string { return "questions" }

// UserResponse is one answered statement.
type UserResponse struct {
	ID         uint64 `gorm:"primaryKey;autoIncrement"`
	UserID     string `gorm:"size:36;not null;uniqueIndex:idx_user_responses_user_question,priority:1"`
	QuestionID uint   `gorm:"not null;uniqueIndex:idx_user_responses_user_question,priority:2"`
	Answer     int    `gorm:"not null"`
	CreatedAt  time.Time
}

func (UserResponse) TableName() string { return "user_responses" }

// ThemeResult is a stored theme score.
type ThemeResult struct {
	ID            uint64 `gorm:"primaryKey;autoIncrement"`
	UserID        string `gorm:"size:36;not null;uniqueIndex:idx_theme_results_user_theme,priority:1"`
	ThemeID       uint   `gorm:"not null;uniqueIndex:idx_theme_results_user_theme,priority:2"`
	Score         int    `gorm:"not null"`
	StrengthLevel string `gorm:"size:32;not null"`
	CreatedAt     time.Time
}

func (ThemeResult) TableName() string { return "theme_results" }

// AssessmentAnalysis holds the latest analysis per user.
type AssessmentAnalysis struct {
	ID        uint64 `gorm:"primaryKey;autoIncrement"`
	UserID    string `gorm:"size:36;not null;uniqueIndex"`
	Analysis  string `gorm:"type:text"`
	CreatedAt time.Time
	UpdatedAt time.Time
}

func (AssessmentAnalysis) TableName() string { return "assessment_analysis" }

// Student is the demographic part of a profile.
type Student struct {
	UserID                 string `gorm:"primaryKey;size:36"`
	FirstName              string `gorm:"size:128"`
	LastName               string `gorm:"size:128"`
	GradeLevel             string `gorm:"size:32"`
	GPA                    string `gorm:"column:gpa;size:16"`
	IntendedMajor          string `gorm:"size:255"`
	PreferredLocation      string `gorm:"size:255"`
	PreferredCampusSetting string `gorm:"size:64"`
	Budget                 string `gorm:"size:64"`
	CareerGoals            string `gorm:"type:text"`
	Extracurriculars       string `gorm:"type:text"`
	Interests              string `gorm:"type:text"`
	CreatedAt              time.Time
	UpdatedAt              time.Time
}

func (Student) TableName() string { return "students" }

// Models lists the gorm models owned by this package, for AutoMigrate in
// tests and tooling.
func Models() []any {
	return []any{&DomainRecord{}, &ThemeRecord{}, &QuestionRecord{}, &UserResponse{}, &ThemeResult{}, &AssessmentAnalysis{}, &Student{}}
}

// Repository stores assessments and student profiles.
type Repository struct {
	db *gorm.DB
}

// NewRepository wraps db.
func NewRepository(db *gorm.DB) *Repository {
	return &Repository{db: db}
}

// Seed inserts the catalogue. Existing rows are left untouched.
func (r *Repository) Seed(ctx context.Context) error {
	domainIDs := make(map[Domain]uint, len(Domains))
	domains := make([]DomainRecord, len(Domains))
	for i, d := range Domains {
		domains[i] = DomainRecord{ID: uint(i + 1), Name: string(d)}
		domainIDs[d] = uint(i + 1)
	}
	themeRows := make([]ThemeRecord, 0, len(themes))
	for _, t := range themes {
		themeRows = append(themeRows, ThemeRecord{ID: uint(t.ID), DomainID: domainIDs[t.Domain], Name: t.Name, Description: t.Description})
	}
	questionRows := make([]QuestionRecord, 0, len(questions))
	for _, q := range questions {
		questionRows = append(questionRows, QuestionRecord{ID: uint(q.ID), ThemeID: uint(q.ThemeID), Position: q.Position, Text: q.Text})
	}

	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		ignore := tx.Clauses(clause.OnConflict{DoNothing: true})
		if err := ignore.Create(&domains).Error; err != nil {
			return fmt.Errorf("seed domains: %w", err)
		}
		if err := ignore.Create(&themeRows).Error; err != nil {
			return fmt.Errorf("seed themes: %w", err)
		}
		if err := ignore.Create(&questionRows).Error; err != nil {
			return fmt.Errorf("seed questions: %w", err)
		}
		return nil
	})
}

// SaveAssessment replaces the user's responses, scores and analysis in one
// transaction.
func (r *Repository) SaveAssessment(ctx context.Context, userID string, responses []Response, scores []ThemeScore, analysis string) error {
	if userID == "" {
		return errors.New("profile: user id is required")
	}
	now := time.Now()
	respRows := make([]UserResponse, len(responses))
	for i, resp := range responses {
		respRows[i] = UserResponse{UserID: userID, QuestionID: uint(resp.QuestionID), Answer: resp.Answer, CreatedAt: now}
	}
	scoreRows := make([]ThemeResult, len(scores))
	for i, s := range scores {
		scoreRows[i] = ThemeResult{UserID: userID, ThemeID: uint(s.ThemeID), Score: s.Score, StrengthLevel: s.Level, CreatedAt: now}
	}

	return database.Transact(ctx, r.db, database.DefaultTxAttempts, func(tx *gorm.DB) error {
		if len(respRows) > 0 {
			if err := tx.Clauses(clause.OnConflict{
				Columns:   []clause.Column{{Name: "user_id"}, {Name: "question_id"}},
				DoUpdates: clause.AssignmentColumns([]string{"answer", "created_at"}),
			}).Create(&respRows).Error; err != nil {
				return fmt.Errorf("save responses: %w", err)
			}
		}
		if len(scoreRows) > 0 {
			if err := tx.Clauses(clause.OnConflict{
				Columns:   []clause.Column{{Name: "user_id"}, {Name: "theme_id"}},
				DoUpdates: clause.AssignmentColumns([]string{"score", "strength_level", "created_at"}),
			}).Create(&scoreRows).Error; err != nil {
				return fmt.Errorf("save theme results: %w", err)
			}
		}
		row := AssessmentAnalysis{UserID: userID, Analysis: analysis, CreatedAt: now, UpdatedAt: now}
		if err := tx.Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "user_id"}},
			DoUpdates: clause.AssignmentColumns([]string{"analysis", "updated_at"}),
		}).Create(&row).Error; err != nil {
			return fmt.Errorf("save analysis: %w", err)
		}
		return nil
	})
}

// Responses returns the stored answers ordered by question id.
func (r *Repository) Responses(ctx context.Context, userID string) ([]Response, error) {
	var rows []UserResponse
	if err := r.db.WithContext(ctx).Where("user_id = ?", userID).Order("question_id").Find(&rows).Error; err != nil {
		return nil, err
	}
	out := make([]Response, len(rows))
	for i, row := range rows {
		out[i] = Response{QuestionID: int(row.QuestionID), Answer: row.Answer}
	}
	return out, nil
}

// LoadProfile assembles a profile. A user with no stored data gets an empty
// profile rather than an error.
func (r *Repository) LoadProfile(ctx context.Context, userID string) (*StudentProfile, error) {
	db := r.db.WithContext(ctx)
	p := &StudentProfile{UserID: userID}

	var st Student
	err := db.Where("user_id = ?", userID).Take(&st).Error
	switch {
	case err == nil:
		p.FirstName, p.LastName = st.FirstName, st.LastName
		p.GradeLevel, p.GPA = st.GradeLevel, st.GPA
		p.IntendedMajor = st.IntendedMajor
		p.PreferredLocation, p.PreferredCampusSetting = st.PreferredLocation, st.PreferredCampusSetting
		p.Budget, p.CareerGoals = st.Budget, st.CareerGoals
		p.Extracurriculars, p.Interests = st.Extracurriculars, st.Interests
	case !errors.Is(err, gorm.ErrRecordNotFound):
		return nil, fmt.Errorf("load student: %w", err)
	}

	var results []ThemeResult
	if err := db.Where("user_id = ?", userID).Order("theme_id").Find(&results).Error; err != nil {
		return nil, fmt.Errorf("load theme results: %w", err)
	}
	for _, res := range results {
		t, ok := ThemeByID(int(res.ThemeID))
		if !ok {
			continue
		}
		p.Scores = append(p.Scores, ThemeScore{ThemeID: t.ID, Theme: t.Name, Domain: t.Domain, Score: res.Score, Level: res.StrengthLevel})
	}

	var analysis AssessmentAnalysis
	err = db.Where("user_id = ?", userID).Take(&analysis).Error
	switch {
	case err == nil:
		p.Analysis = analysis.Analysis
	case !errors.Is(err, gorm.ErrRecordNotFound):
		return nil, fmt.Errorf("load analysis: %w", err)
	}
	return p, nil
}

// SaveStudent upserts the demographic fields of p.
func (r *Repository) SaveStudent(ctx context.Context, p *StudentProfile) error {
	if p == nil || p.UserID == "" {
		return errors.New("profile: user id is required")
	}
	row := Student{
		UserID:                 p.UserID,
		FirstName:              p.FirstName,
		LastName:               p.LastName,
		GradeLevel:             p.GradeLevel,
		GPA:                    p.GPA,
		IntendedMajor:          p.IntendedMajor,
		PreferredLocation:      p.PreferredLocation,
		PreferredCampusSetting: p.PreferredCampusSetting,
		Budget:                 p.Budget,
		CareerGoals:            p.CareerGoals,
		Extracurriculars:       p.Extracurriculars,
		Interests:              p.Interests,
	}
	return r.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns: []clause.Column{{Name: "user_id"}},
		DoUpdates: clause.AssignmentColumns([]string{
			"first_name", "last_name", "grade_level", "gpa", "intended_major",
			"preferred_location", "preferred_campus_setting", "budget",
			"career_goals", "extracurriculars", "interests", "updated_at",
		}),
	}).Create(&row).Error
}
