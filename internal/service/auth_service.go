package service

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"golang.org/x/oauth2"
	"golang.org/x/oauth2/google"
	googleoauth "google.golang.org/api/oauth2/v2"
	"google.golang.org/api/option"

	config "github.com/maheshrc27/postify/configs"
	"github.com/maheshrc27/postify/internal/models"
	"github.com/maheshrc27/postify/internal/platform"
	"github.com/maheshrc27/postify/internal/repository"
	"github.com/maheshrc27/postify/pkg/utils"
)

// GoogleProfile is the part of the Google userinfo response we keep.
type GoogleProfile struct {
	ID      string
	Email   string
	Name    string
	Picture string
}

type AuthService interface {
	AuthCodeURL(state string) string
	LoginCallback(ctx context.Context, code string) (*models.User, error)
	SignIn(ctx context.Context, profile *GoogleProfile) (*models.User, error)
	IssueToken(user *models.User) (string, error)
}

type authService struct {
	cfg      config.Config
	db       *sql.DB
	u        repository.UserRepository
	c        repository.CredentialRepository
	registry *platform.Registry
	oauth    *oauth2.Config
}

func NewAuthService(cfg config.Config, db *sql.DB, u repository.UserRepository, c repository.CredentialRepository, registry *platform.Registry) AuthService {
	return &authService{
		cfg:      cfg,
		db:       db,
		u:        u,
		c:        c,
		registry: registry,
		oauth: &oauth2.Config{
			ClientID:     cfg.GoogleClientID,
			ClientSecret: cfg.GoogleClientSecret,
			RedirectURL:  cfg.GoogleRedirectURI,
			Scopes:       []string{googleoauth.UserinfoEmailScope, googleoauth.UserinfoProfileScope},
			Endpoint:     google.Endpoint,
		},
	}
}

func (s *authService) AuthCodeURL(state string) string {
	return s.oauth.AuthCodeURL(state, oauth2.AccessTypeOnline)
}

func (s *authService) LoginCallback(ctx context.Context, code string) (*models.User, error) {
	if code == "" {
		err := errors.New("authorization code is empty")
		slog.Info(err.Error())
		return nil, err
	}

	if s.oauth.ClientID == "" || s.oauth.ClientSecret == "" || s.oauth.RedirectURL == "" {
		err := errors.New("OAuth2 configuration is incomplete")
		slog.Info(err.Error())
		return nil, err
	}

	token, err := s.oauth.Exchange(ctx, code)
	if err != nil {
		slog.Info(err.Error())
		return nil, err
	}

	profile, err := s.fetchProfile(ctx, token)
	if err != nil {
		return nil, err
	}

	return s.SignIn(ctx, profile)
}

func (s *authService) fetchProfile(ctx context.Context, token *oauth2.Token) (*GoogleProfile, error) {
	svc, err := googleoauth.NewService(ctx, option.WithHTTPClient(s.oauth.Client(ctx, token)))
	if err != nil {
		slog.Info(err.Error())
		return nil, err
	}

	info, err := svc.Userinfo.Get().Context(ctx).Do()
	if err != nil {
		slog.Info(err.Error())
		return nil, fmt.Errorf("failed to fetch user info: %w", err)
	}

	return &GoogleProfile{ID: info.Id, Email: info.Email, Name: info.Name, Picture: info.Picture}, nil
}

// SignIn returns the account for profile, creating it together with an
// empty credential set per platform on first sign-in.
func (s *authService) SignIn(ctx context.Context, profile *GoogleProfile) (user *models.User, err error) {
	if profile == nil || profile.Email == "" {
		return nil, errors.New("profile has no email")
	}

	existing, isExist, err := s.u.GetByEmail(ctx, profile.Email)
	if err != nil {
		return nil, err
	}
	if isExist {
		return existing, nil
	}

	tx, err := s.db.BeginTx(ctx, &sql.TxOptions{})
	if err != nil {
		return nil, fmt.Errorf("failed to start transaction: %w", err)
	}
	defer func() {
		if p := recover(); p != nil {
			tx.Rollback()
			panic(p)
		} else if err != nil {
			tx.Rollback()
		}
	}()

	user = &models.User{
		UID:   profile.ID,
		Email: profile.Email,
		Name:  profile.Name,
		Image: profile.Picture,
	}
	user.ID, err = s.u.Create(ctx, tx, user)
	if err != nil {
		return nil, fmt.Errorf("error creating user: %w", err)
	}

	if err = s.c.Seed(ctx, tx, user.ID, s.registry.Names(), time.Now().UTC()); err != nil {
		return nil, fmt.Errorf("error seeding social configs: %w", err)
	}

	if err = tx.Commit(); err != nil {
		return nil, fmt.Errorf("failed to commit transaction: %w", err)
	}

	slog.Info("user created", "user_id", user.ID)
	return user, nil
}

func (s *authService) IssueToken(user *models.User) (string, error) {
	return utils.GenerateToken(s.cfg.SecretKey, fmt.Sprintf("%d", user.ID), user.Email, s.cfg.SessionTTL)
}
