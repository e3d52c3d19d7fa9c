package account

import (
	"context"
	"errors"
	"fmt"
	"net/mail"
	"strings"
	"time"

	"github.com/BaSui01/sunyadvisor/config"
	"github.com/BaSui01/sunyadvisor/types"
	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"
)

var (
	// ErrInvalidCredentials covers both an unknown email and a wrong
	// password so callers cannot probe for accounts.
	ErrInvalidCredentials = types.NewError(types.ErrAuthorization, "invalid email or password")
	// ErrInvalidSignupCode is returned when a signup code is configured and
	// the request does not match it.
	ErrInvalidSignupCode = types.NewError(types.ErrAuthorization, "invalid signup code")
	ErrEmailTaken        = types.NewError(types.ErrInvalidRequest, "email is already registered")
	ErrInvalidToken      = types.NewError(types.ErrAuthorization, "invalid or expired token")
)

const minPasswordLength = 8

// User is one row of the users table.
type User struct {
	ID           string `gorm:"primaryKey;size:36"`
	Email        string `gorm:"size:255;uniqueIndex:idx_users_email;not null"`
	PasswordHash string `gorm:"size:255;not null"`
	FirstName    string `gorm:"size:128"`
	LastName     string `gorm:"size:128"`
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

func (User) TableName() string { return "users" }

// SignupRequest carries a new account.
type SignupRequest struct {
	Email      string `json:"email"`
	Password   string `json:"password"`
	FirstName  string `json:"first_name"`
	LastName   string `json:"last_name"`
	SignupCode string `json:"signup_code,omitempty"`
}

// Session is what a successful signup or login returns.
type Session struct {
	Token     string    `json:"token"`
	ExpiresAt time.Time `json:"expires_at"`
	User      *User     `json:"user"`
}

// Claims are the JWT claims issued by the service.
type Claims struct {
	Email string `json:"email"`
	jwt.RegisteredClaims
}

// Service registers and authenticates students.
type Service struct {
	db         *gorm.DB
	secret     []byte
	issuer     string
	ttl        time.Duration
	signupCode string
	cost       int
	now        func() time.Time
	logger     *zap.Logger
}

// NewService creates a service from the auth section of the configuration.
func NewService(db *gorm.DB, cfg config.AuthConfig, logger *zap.Logger) (*Service, error) {
	if db == nil {
		return nil, errors.New("account: database is required")
	}
	if cfg.JWTSecret == "" {
		return nil, errors.New("account: jwt secret is required")
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	cost := cfg.BcryptCost
	if cost == 0 {
		cost = bcrypt.DefaultCost
	}
	if cost < bcrypt.MinCost || cost > bcrypt.MaxCost {
		return nil, fmt.Errorf("account: bcrypt cost %d out of range", cost)
	}
	ttl := cfg.TokenTTL
	if ttl <= 0 {
		ttl = 24 * time.Hour
	}
	return &Service{
		db:         db,
		secret:     []byte(cfg.JWTSecret),
		issuer:     cfg.Issuer,
		ttl:        ttl,
		signupCode: cfg.SignupCode,
		cost:       cost,
		now:        time.Now,
		logger:     logger.With(zap.String("component", "account")),
	}, nil
}

func normalizeEmail(s string) string {
	return strings.ToLower(strings.TrimSpace(s))
}

func (s *Service) validate(req *SignupRequest) error {
	if s.signupCode != "" && req.SignupCode != s.signupCode {
		return ErrInvalidSignupCode
	}
	req.Email = normalizeEmail(req.Email)
	if _, err := mail.ParseAddress(req.Email); err != nil {
		return types.NewError(types.ErrInvalidRequest, "invalid email address").WithCause(err)
	}
	if len(req.Password) < minPasswordLength {
		return types.NewError(types.ErrInvalidRequest,
			fmt.Sprintf("password must be at least %d characters", minPasswordLength))
	}
	req.FirstName = strings.TrimSpace(req.FirstName)
	req.LastName = strings.TrimSpace(req.LastName)
	return nil
}

// Signup creates the account and returns a session for it.
func (s *Service) Signup(ctx context.Context, req SignupRequest) (*Session, error) {
	if err := s.validate(&req); err != nil {
		return nil, err
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(req.Password), s.cost)
	if err != nil {
		return nil, fmt.Errorf("hash password: %w", err)
	}
	user := &User{
		ID:           uuid.NewString(),
		Email:        req.Email,
		PasswordHash: string(hash),
		FirstName:    req.FirstName,
		LastName:     req.LastName,
	}

	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var n int64
		if err := tx.Model(&User{}).Where("email = ?", user.Email).Count(&n).Error; err != nil {
			return err
		}
		if n > 0 {
			return ErrEmailTaken
		}
		return tx.Create(user).Error
	})
	if err != nil {
		if errors.Is(err, ErrEmailTaken) || errors.Is(err, gorm.ErrDuplicatedKey) {
			return nil, ErrEmailTaken
		}
		return nil, fmt.Errorf("create user: %w", err)
	}

	s.logger.Info("account created", zap.String("user_id", user.ID))
	return s.issue(user)
}

// Login checks the password and returns a fresh session.
func (s *Service) Login(ctx context.Context, email, password string) (*Session, error) {
	var user User
	err := s.db.WithContext(ctx).Where("email = ?", normalizeEmail(email)).First(&user).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrInvalidCredentials
	}
	if err != nil {
		return nil, fmt.Errorf("load user: %w", err)
	}
	if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(password)); err != nil {
		s.logger.Debug("password mismatch", zap.String("user_id", user.ID))
		return nil, ErrInvalidCredentials
	}
	return s.issue(&user)
}

// User loads an account by id.
func (s *Service) User(ctx context.Context, id string) (*User, error) {
	var user User
	err := s.db.WithContext(ctx).First(&user, "id = ?", id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrInvalidCredentials
	}
	if err != nil {
		return nil, fmt.Errorf("load user: %w", err)
	}
	return &user, nil
}

func (s *Service) issue(user *User) (*Session, error) {
	now := s.now()
	exp := now.Add(s.ttl)
	claims := Claims{
		Email: user.Email,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   user.ID,
			Issuer:    s.issuer,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(exp),
			ID:        uuid.NewString(),
		},
	}
	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(s.secret)
	if err != nil {
		return nil, fmt.Errorf("sign token: %w", err)
	}
	return &Session{Token: token, ExpiresAt: exp, User: user}, nil
}

// ParseToken validates token and returns its claims.
func (s *Service) ParseToken(token string) (*Claims, error) {
	opts := []jwt.ParserOption{
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithTimeFunc(s.now),
	}
	if s.issuer != "" {
		opts = append(opts, jwt.WithIssuer(s.issuer))
	}
	var claims Claims
	parsed, err := jwt.ParseWithClaims(token, &claims, func(*jwt.Token) (any, error) {
		return s.secret, nil
	}, opts...)
	if err != nil || !parsed.Valid || claims.Subject == "" {
		return nil, ErrInvalidToken
	}
	return &claims, nil
}
