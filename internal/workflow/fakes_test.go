package workflow

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/maheshrc27/postify/internal/gateway"
	"github.com/maheshrc27/postify/internal/models"
	"github.com/maheshrc27/postify/internal/platform"
	"github.com/maheshrc27/postify/internal/storage"
)

var fixedNow = time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)

func fixedClock() time.Time { return fixedNow }

type fakeStore struct {
	mu       sync.Mutex
	sets     map[string]*models.CredentialSet
	setCalls int
	setErr   error
	clearErr error
}

func newFakeStore() *fakeStore {
	return &fakeStore{sets: map[string]*models.CredentialSet{}}
}

func (s *fakeStore) connect(userID int64, name string, fields map[string]string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	t := fixedNow
	s.sets[name] = &models.CredentialSet{UserID: userID, Platform: name, Fields: fields, LastUpdated: &t}
}

func (s *fakeStore) fields(name string) map[string]string {
	s.mu.Lock()
	defer s.mu.Unlock()
	if set, ok := s.sets[name]; ok {
		return set.Fields
	}
	return nil
}

func (s *fakeStore) Get(_ context.Context, userID int64, name string) (*models.CredentialSet, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	set, ok := s.sets[name]
	if !ok {
		return &models.CredentialSet{UserID: userID, Platform: name, Fields: map[string]string{}}, nil
	}
	cp := *set
	return &cp, nil
}

func (s *fakeStore) Set(_ context.Context, userID int64, name string, fields map[string]string, updatedAt time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.setCalls++
	if s.setErr != nil {
		return s.setErr
	}
	s.sets[name] = &models.CredentialSet{UserID: userID, Platform: name, Fields: fields, LastUpdated: &updatedAt}
	return nil
}

func (s *fakeStore) Clear(_ context.Context, userID int64, name string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.clearErr != nil {
		return s.clearErr
	}
	s.sets[name] = &models.CredentialSet{UserID: userID, Platform: name, Fields: map[string]string{}}
	return nil
}

type fakeVerifier struct {
	mu      sync.Mutex
	valid   bool
	err     error
	calls   int
	started chan struct{}
	release chan struct{}
}

func (v *fakeVerifier) Verify(ctx context.Context, _ string, _ map[string]string) (bool, error) {
	v.mu.Lock()
	v.calls++
	v.mu.Unlock()
	if v.started != nil {
		v.started <- struct{}{}
	}
	if v.release != nil {
		<-v.release
	}
	return v.valid, v.err
}

func (v *fakeVerifier) callCount() int {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.calls
}

type fakeGenerator struct {
	mu      sync.Mutex
	out     string
	err     error
	reqs    []gateway.GenerateRequest
	started chan struct{}
	release chan struct{}
}

func (g *fakeGenerator) Generate(_ context.Context, req gateway.GenerateRequest) (string, error) {
	g.mu.Lock()
	g.reqs = append(g.reqs, req)
	g.mu.Unlock()
	if g.started != nil {
		g.started <- struct{}{}
	}
	if g.release != nil {
		<-g.release
	}
	return g.out, g.err
}

type fakePublisher struct {
	mu   sync.Mutex
	err  error
	reqs []gateway.PublishRequest
}

func (p *fakePublisher) Publish(_ context.Context, req gateway.PublishRequest) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.reqs = append(p.reqs, req)
	return p.err
}

func (p *fakePublisher) calls() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.reqs)
}

type fakeHistory struct {
	mu      sync.Mutex
	records []*models.PublishRecord
}

func (h *fakeHistory) Create(_ context.Context, rec *models.PublishRecord) (int64, error) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.records = append(h.records, rec)
	return int64(len(h.records)), nil
}

var errStoreDown = errors.New("connection refused")

type composerFixture struct {
	store     *fakeStore
	media     *storage.MemoryStore
	generator *fakeGenerator
	publisher *fakePublisher
	history   *fakeHistory
	composer  *Composer
}

func newComposerFixture() *composerFixture {
	f := &composerFixture{
		store:     newFakeStore(),
		media:     storage.NewMemoryStore(),
		generator: &fakeGenerator{out: "generated"},
		publisher: &fakePublisher{},
		history:   &fakeHistory{},
	}
	connector := NewConnector(platform.Default(), f.store, nil, WithClock(fixedClock))
	f.composer = NewComposer(connector, f.media, f.generator, f.publisher,
		WithHistory(f.history),
		WithComposerClock(fixedClock))
	return f
}

var pngBytes = append([]byte{0x89, 'P', 'N', 'G', 0x0D, 0x0A, 0x1A, 0x0A}, make([]byte, 64)...)
