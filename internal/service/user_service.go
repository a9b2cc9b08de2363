package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"html"
	"log/slog"
	"strings"
	"time"

	"github.com/microcosm-cc/bluemonday"

	"github.com/maheshrc27/postify/internal/apperr"
	"github.com/maheshrc27/postify/internal/models"
	"github.com/maheshrc27/postify/internal/repository"
	"github.com/maheshrc27/postify/internal/workflow"
)

// SecretMask replaces password-typed values in responses. Submitting it back
// keeps the stored value.
const SecretMask = "********"

type SocialConfigView struct {
	Fields      map[string]string
	Connected   bool
	LastUpdated *time.Time
}

// MarshalJSON writes the field values flat beside lastUpdated, the shape the
// dashboard reads (social_configs.instagram.username).
func (v SocialConfigView) MarshalJSON() ([]byte, error) {
	out := make(map[string]any, len(v.Fields)+2)
	for k, val := range v.Fields {
		out[k] = val
	}
	out["connected"] = v.Connected
	if v.LastUpdated != nil {
		out["lastUpdated"] = v.LastUpdated
	}
	return json.Marshal(out)
}

type UserRecord struct {
	*models.User
	SocialConfigs map[string]SocialConfigView `json:"social_configs"`
}

// UserPatch is a partial update. A nil Configs entry disconnects the
// platform; a non-nil one replaces its credentials.
type UserPatch struct {
	Email   *string
	Name    *string
	Image   *string
	Configs map[string]map[string]string
}

type UserService interface {
	GetUserInfo(ctx context.Context, id int64) (*UserRecord, error)
	UpdateUserInfo(ctx context.Context, id int64, patch UserPatch) (*UserRecord, error)
}

type userService struct {
	u         repository.UserRepository
	c         repository.CredentialRepository
	connector *workflow.Connector
	sessions  SessionService
	policy    *bluemonday.Policy
}

func NewUserService(u repository.UserRepository, c repository.CredentialRepository, connector *workflow.Connector, sessions SessionService) UserService {
	return &userService{
		u:         u,
		c:         c,
		connector: connector,
		sessions:  sessions,
		policy:    bluemonday.StrictPolicy(),
	}
}

func (s *userService) GetUserInfo(ctx context.Context, id int64) (*UserRecord, error) {
	user, isExist, err := s.u.GetByID(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("error getting user info: %w", err)
	}

	if !isExist {
		err = errors.New("user not found")
		slog.Info(err.Error(), "user_id", id)
		return nil, apperr.New(apperr.KindNotFound, "user not found")
	}

	sets, err := s.c.ListByUserID(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("error getting social configs: %w", err)
	}

	return s.record(user, sets), nil
}

func (s *userService) record(user *models.User, sets []*models.CredentialSet) *UserRecord {
	registry := s.connector.Registry()
	byPlatform := make(map[string]*models.CredentialSet, len(sets))
	for _, set := range sets {
		byPlatform[set.Platform] = set
	}

	configs := make(map[string]SocialConfigView, len(registry.Names()))
	for _, p := range registry.All() {
		view := SocialConfigView{Fields: make(map[string]string, len(p.Fields))}
		set := byPlatform[p.Name]
		var values map[string]string
		if set != nil {
			values = set.Fields
			view.LastUpdated = set.LastUpdated
		}
		for _, f := range p.Fields {
			v := values[f.Name]
			if f.Secret() && v != "" {
				v = SecretMask
			}
			view.Fields[f.Name] = v
		}
		view.Connected = registry.IsConnected(p.Name, values)
		configs[p.Name] = view
	}

	return &UserRecord{User: user, SocialConfigs: configs}
}

func (s *userService) UpdateUserInfo(ctx context.Context, id int64, patch UserPatch) (*UserRecord, error) {
	user, isExist, err := s.u.GetByID(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("error getting user info: %w", err)
	}
	if !isExist {
		return nil, apperr.New(apperr.KindNotFound, "user not found")
	}

	registry := s.connector.Registry()
	for name := range patch.Configs {
		if _, ok := registry.Get(name); !ok {
			return nil, apperr.Validation("unknown platform "+name, name+"_config")
		}
	}

	if patch.Email != nil || patch.Name != nil || patch.Image != nil {
		if patch.Email != nil {
			email := strings.TrimSpace(*patch.Email)
			if email == "" {
				return nil, apperr.Validation("email cannot be empty", "email")
			}
			user.Email = email
		}
		if patch.Name != nil {
			user.Name = s.plainName(*patch.Name)
		}
		if patch.Image != nil {
			user.Image = *patch.Image
		}
		if err := s.u.Update(ctx, user); err != nil {
			if errors.Is(err, repository.ErrNoRows) {
				return nil, apperr.New(apperr.KindNotFound, "user not found")
			}
			return nil, apperr.Wrap(apperr.KindPersistence, "failed to update user", err)
		}
	}

	for _, name := range registry.Names() {
		fields, ok := patch.Configs[name]
		if !ok {
			continue
		}
		if err := s.applyConfig(ctx, id, name, fields); err != nil {
			return nil, err
		}
	}

	return s.GetUserInfo(ctx, id)
}

// plainName drops markup from a display name. The sanitizer escapes what it
// keeps, so entities are decoded again.
func (s *userService) plainName(name string) string {
	return strings.TrimSpace(html.UnescapeString(s.policy.Sanitize(name)))
}

func (s *userService) applyConfig(ctx context.Context, userID int64, name string, fields map[string]string) error {
	if fields == nil {
		if err := s.connector.Disconnect(ctx, userID, name); err != nil {
			return err
		}
		s.sessions.CredentialsChanged(userID, &models.CredentialSet{UserID: userID, Platform: name, Fields: map[string]string{}}, false)
		return nil
	}

	fields, err := s.unmask(ctx, userID, name, fields)
	if err != nil {
		return err
	}

	set, err := s.connector.Submit(ctx, userID, name, fields)
	if err != nil {
		return err
	}
	s.sessions.CredentialsChanged(userID, set, s.connector.Registry().IsConnected(name, set.Fields))
	return nil
}

// unmask swaps SecretMask placeholders for the stored values so a client can
// send back a record it read without re-entering secrets.
func (s *userService) unmask(ctx context.Context, userID int64, name string, fields map[string]string) (map[string]string, error) {
	masked := false
	for _, v := range fields {
		if v == SecretMask {
			masked = true
			break
		}
	}
	if !masked {
		return fields, nil
	}

	stored, _, err := s.connector.Load(ctx, userID, name)
	if err != nil {
		return nil, err
	}
	out := make(map[string]string, len(fields))
	for k, v := range fields {
		if v == SecretMask {
			v = stored.Fields[k]
		}
		out[k] = v
	}
	return out, nil
}
