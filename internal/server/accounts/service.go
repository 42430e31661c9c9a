package accounts

import (
	"context"
	"errors"
	"fmt"
	"net/mail"
	"strings"
	"time"

	"golang.org/x/crypto/bcrypt"

	"github.com/scukconnect/clientportal/internal/common"
	"github.com/scukconnect/clientportal/internal/server/auth"
	"github.com/scukconnect/clientportal/internal/server/config"
	"github.com/scukconnect/clientportal/internal/server/sessions"
)

// ValidationError pins a validation failure to the offending request field.
// It unwraps to common.ErrorValidation so transport code can match on the
// sentinel and still surface the field to the client.
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

func (e *ValidationError) Unwrap() error {
	return common.ErrorValidation
}

type SignupRequest struct {
	Username string
	Email    string
	Password string
	Postcode string
}

type Service struct {
	repo                         Repository
	profileRepo                  ProfileRepository
	sessionRepo                  sessions.Repository
	jwtSecret                    []byte
	accessTokenValidityDuration  time.Duration
	refreshTokenValidityDuration time.Duration
}

func NewService(repo Repository, profileRepo ProfileRepository, sessionRepo sessions.Repository, cfg *config.Config) *Service {
	return &Service{
		repo:                         repo,
		profileRepo:                  profileRepo,
		sessionRepo:                  sessionRepo,
		jwtSecret:                    []byte(cfg.SecretKey),
		accessTokenValidityDuration:  cfg.AccessTokenValidityDuration,
		refreshTokenValidityDuration: cfg.RefreshTokenValidityDuration,
	}
}

func (s *Service) validateSignup(ctx context.Context, req *SignupRequest) error {

	if req.Username == "" {
		return &ValidationError{Field: "username", Message: "this field is required"}
	}
	if req.Email == "" {
		return &ValidationError{Field: "email", Message: "this field is required"}
	}
	if _, err := mail.ParseAddress(req.Email); err != nil {
		return &ValidationError{Field: "email", Message: "enter a valid email address"}
	}
	if len(req.Password) < 8 {
		return &ValidationError{Field: "password", Message: "password must be at least 8 characters"}
	}

	if _, err := s.repo.GetByUsername(ctx, req.Username); err == nil {
		return &ValidationError{Field: "username", Message: "an account with this username already exists"}
	} else if !errors.Is(err, common.ErrorNotFound) {
		return common.ErrorInternal
	}

	if _, err := s.repo.GetByEmail(ctx, req.Email); err == nil {
		return &ValidationError{Field: "email", Message: "an account with this email already exists"}
	} else if !errors.Is(err, common.ErrorNotFound) {
		return common.ErrorInternal
	}

	return nil
}

func (s *Service) Signup(ctx context.Context, req *SignupRequest) (*Account, error) {

	req.Username = strings.TrimSpace(req.Username)
	req.Email = strings.TrimSpace(req.Email)

	if err := s.validateSignup(ctx, req); err != nil {
		return nil, err
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(req.Password), bcrypt.DefaultCost)
	if err != nil {
		return nil, common.ErrorInternal
	}

	account := &Account{
		Username:     req.Username,
		Email:        req.Email,
		PasswordHash: string(hash),
	}

	account, err = s.repo.Create(ctx, account, strings.TrimSpace(req.Postcode))
	if err != nil {
		return nil, fmt.Errorf("error creating account: %v", err)
	}

	return account, nil
}

func (s *Service) generateAccessToken(account *Account) (string, error) {
	token, err := auth.GenerateToken(account.ID, s.jwtSecret, s.accessTokenValidityDuration)
	if err != nil {
		return "", err
	}
	return token, nil
}

func (s *Service) generateRefreshToken() (string, error) {
	token, err := common.MakeRandHexString(32)
	if err != nil {
		return "", err
	}
	return token, nil
}

func (s *Service) issueTokenPair(ctx context.Context, account *Account) (*TokenPair, error) {

	accessToken, err := s.generateAccessToken(account)
	if err != nil {
		return nil, common.ErrorInternal
	}

	refreshToken, err := s.generateRefreshToken()
	if err != nil {
		return nil, common.ErrorInternal
	}

	err = s.sessionRepo.Create(ctx, account.ID, refreshToken, s.refreshTokenValidityDuration)
	if err != nil {
		return nil, common.ErrorInternal
	}

	return &TokenPair{AccessToken: accessToken, RefreshToken: refreshToken}, nil
}

// Login accepts either the username or the email in the login field and
// returns the token pair together with the matched account.
func (s *Service) Login(ctx context.Context, login string, password string) (*TokenPair, *Account, error) {

	login = strings.TrimSpace(login)

	account, err := s.repo.GetByUsername(ctx, login)
	if errors.Is(err, common.ErrorNotFound) {
		account, err = s.repo.GetByEmail(ctx, login)
	}
	if err != nil {
		if errors.Is(err, common.ErrorNotFound) {
			return nil, nil, common.ErrorUnauthorized
		}
		return nil, nil, common.ErrorInternal
	}

	if bcrypt.CompareHashAndPassword([]byte(account.PasswordHash), []byte(password)) != nil {
		return nil, nil, common.ErrorUnauthorized
	}

	pair, err := s.issueTokenPair(ctx, account)
	if err != nil {
		return nil, nil, err
	}

	return pair, account, nil
}

// Refresh trades a live refresh token for a fresh pair, rotating the old one
// out so it cannot be replayed.
func (s *Service) Refresh(ctx context.Context, refreshToken string) (*TokenPair, error) {

	session, err := s.sessionRepo.Find(ctx, refreshToken)
	if err != nil {
		if errors.Is(err, common.ErrorNotFound) {
			return nil, common.ErrRefreshTokenExpired
		}
		return nil, common.ErrorInternal
	}

	if session.Expired() {
		_ = s.sessionRepo.Delete(ctx, refreshToken)
		return nil, common.ErrRefreshTokenExpired
	}

	account, err := s.repo.GetByID(ctx, session.AccountID)
	if err != nil {
		return nil, common.ErrorInternal
	}

	if err := s.sessionRepo.Delete(ctx, refreshToken); err != nil {
		return nil, common.ErrorInternal
	}

	return s.issueTokenPair(ctx, account)
}

func (s *Service) Logout(ctx context.Context, refreshToken string) error {
	if err := s.sessionRepo.Delete(ctx, refreshToken); err != nil && !errors.Is(err, common.ErrorNotFound) {
		return common.ErrorInternal
	}
	return nil
}

func (s *Service) GetAccount(ctx context.Context, accountID int64) (*Account, error) {
	return s.repo.GetByID(ctx, accountID)
}

func (s *Service) GetProfile(ctx context.Context, accountID int64) (*Profile, error) {
	return s.profileRepo.Get(ctx, accountID)
}

func (s *Service) UpdateProfile(ctx context.Context, accountID int64, update ProfileUpdate) (*Profile, error) {
	if update.Postcode != nil {
		trimmed := strings.TrimSpace(*update.Postcode)
		update.Postcode = &trimmed
	}
	return s.profileRepo.Update(ctx, accountID, update)
}

// Subject assembles the resolver's view of an account: who to look up in the
// external sheets and what to cross-check against.
func (s *Service) Subject(ctx context.Context, accountID int64) (*Account, *Profile, error) {
	account, err := s.repo.GetByID(ctx, accountID)
	if err != nil {
		return nil, nil, err
	}
	profile, err := s.profileRepo.Get(ctx, accountID)
	if err != nil {
		return nil, nil, err
	}
	return account, profile, nil
}
