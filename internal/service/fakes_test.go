package service

import (
	"context"
	"database/sql"
	"sort"
	"sync"
	"time"

	"github.com/maheshrc27/postify/internal/gateway"
	"github.com/maheshrc27/postify/internal/models"
	"github.com/maheshrc27/postify/internal/platform"
	"github.com/maheshrc27/postify/internal/repository"
	"github.com/maheshrc27/postify/internal/storage"
	"github.com/maheshrc27/postify/internal/workflow"
)

type memCredentials struct {
	mu   sync.Mutex
	sets map[int64]map[string]*models.CredentialSet
}

func newMemCredentials() *memCredentials {
	return &memCredentials{sets: map[int64]map[string]*models.CredentialSet{}}
}

func (m *memCredentials) Get(_ context.Context, userID int64, name string) (*models.CredentialSet, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if set, ok := m.sets[userID][name]; ok {
		cp := *set
		return &cp, nil
	}
	return &models.CredentialSet{UserID: userID, Platform: name, Fields: map[string]string{}}, nil
}

func (m *memCredentials) ListByUserID(_ context.Context, userID int64) ([]*models.CredentialSet, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []*models.CredentialSet
	for _, set := range m.sets[userID] {
		cp := *set
		out = append(out, &cp)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Platform < out[j].Platform })
	return out, nil
}

func (m *memCredentials) Set(_ context.Context, userID int64, name string, fields map[string]string, updatedAt time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.sets[userID] == nil {
		m.sets[userID] = map[string]*models.CredentialSet{}
	}
	m.sets[userID][name] = &models.CredentialSet{UserID: userID, Platform: name, Fields: fields, LastUpdated: &updatedAt}
	return nil
}

func (m *memCredentials) Clear(_ context.Context, userID int64, name string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.sets[userID] == nil {
		m.sets[userID] = map[string]*models.CredentialSet{}
	}
	m.sets[userID][name] = &models.CredentialSet{UserID: userID, Platform: name, Fields: map[string]string{}}
	return nil
}

func (m *memCredentials) Seed(ctx context.Context, _ *sql.Tx, userID int64, platforms []string, at time.Time) error {
	for _, name := range platforms {
		if err := m.Set(ctx, userID, name, map[string]string{}, at); err != nil {
			return err
		}
	}
	return nil
}

var _ repository.CredentialRepository = (*memCredentials)(nil)

type memUsers struct {
	mu    sync.Mutex
	users map[int64]*models.User
}

func (m *memUsers) GetByID(_ context.Context, id int64) (*models.User, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	u, ok := m.users[id]
	if !ok {
		return nil, false, nil
	}
	cp := *u
	return &cp, true, nil
}

func (m *memUsers) GetByEmail(_ context.Context, email string) (*models.User, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, u := range m.users {
		if u.Email == email {
			cp := *u
			return &cp, true, nil
		}
	}
	return nil, false, nil
}

func (m *memUsers) Create(_ context.Context, _ *sql.Tx, user *models.User) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	id := int64(len(m.users) + 1)
	cp := *user
	cp.ID = id
	m.users[id] = &cp
	return id, nil
}

func (m *memUsers) Update(_ context.Context, user *models.User) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.users[user.ID]; !ok {
		return repository.ErrNoRows
	}
	cp := *user
	m.users[user.ID] = &cp
	return nil
}

type staticVerifier struct{ valid bool }

func (v staticVerifier) Verify(context.Context, string, map[string]string) (bool, error) {
	return v.valid, nil
}

type nopGenerator struct{}

func (nopGenerator) Generate(context.Context, gateway.GenerateRequest) (string, error) {
	return "preview", nil
}

type nopPublisher struct{}

func (nopPublisher) Publish(context.Context, gateway.PublishRequest) error {
	return nil
}

type serviceFixture struct {
	users       *memUsers
	credentials *memCredentials
	media       *storage.MemoryStore
	connector   *workflow.Connector
	sessions    *sessionService
	userService UserService
}

func newServiceFixture() *serviceFixture {
	f := &serviceFixture{
		users:       &memUsers{users: map[int64]*models.User{}},
		credentials: newMemCredentials(),
		media:       storage.NewMemoryStore(),
	}
	f.connector = workflow.NewConnector(platform.Default(), f.credentials, staticVerifier{valid: true})
	composer := workflow.NewComposer(f.connector, f.media, nopGenerator{}, nopPublisher{})
	f.sessions = NewSessionService(f.connector, composer).(*sessionService)
	f.userService = NewUserService(f.users, f.credentials, f.connector, f.sessions)
	return f
}
