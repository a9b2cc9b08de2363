package service

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/maheshrc27/postify/internal/models"
	"github.com/maheshrc27/postify/internal/workflow"
)

// SessionService owns the in-memory workflow state of signed-in users: one
// connection dialog and one draft each.
type SessionService interface {
	Connection(userID int64) *workflow.Connection
	Draft(ctx context.Context, userID int64) (*workflow.Draft, error)
	DiscardDraft(ctx context.Context, userID int64)
	CredentialsChanged(userID int64, set *models.CredentialSet, connected bool)
	SweepIdleDrafts(ctx context.Context, maxIdle time.Duration) int
}

type sessionService struct {
	connector *workflow.Connector
	composer  *workflow.Composer
	now       func() time.Time

	mu          sync.Mutex
	connections map[int64]*workflow.Connection
	drafts      map[int64]*workflow.Draft
}

func NewSessionService(connector *workflow.Connector, composer *workflow.Composer) SessionService {
	return &sessionService{
		connector:   connector,
		composer:    composer,
		now:         time.Now,
		connections: make(map[int64]*workflow.Connection),
		drafts:      make(map[int64]*workflow.Draft),
	}
}

func (s *sessionService) Connection(userID int64) *workflow.Connection {
	s.mu.Lock()
	defer s.mu.Unlock()
	conn, ok := s.connections[userID]
	if !ok {
		conn = workflow.NewConnection(s.connector, userID)
		s.connections[userID] = conn
	}
	return conn
}

func (s *sessionService) Draft(ctx context.Context, userID int64) (*workflow.Draft, error) {
	s.mu.Lock()
	d, ok := s.drafts[userID]
	s.mu.Unlock()
	if ok {
		return d, nil
	}

	d, err := s.composer.NewDraft(ctx, userID)
	if err != nil {
		return nil, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if existing, ok := s.drafts[userID]; ok {
		return existing, nil
	}
	s.drafts[userID] = d
	return d, nil
}

func (s *sessionService) DiscardDraft(ctx context.Context, userID int64) {
	s.mu.Lock()
	d, ok := s.drafts[userID]
	if ok {
		delete(s.drafts, userID)
	}
	delete(s.connections, userID)
	s.mu.Unlock()

	if ok {
		d.Discard(ctx)
	}
}

func (s *sessionService) CredentialsChanged(userID int64, set *models.CredentialSet, connected bool) {
	s.mu.Lock()
	conn, ok := s.connections[userID]
	s.mu.Unlock()
	if ok {
		conn.Refresh(set, connected)
	}
}

// SweepIdleDrafts discards drafts untouched for longer than maxIdle along
// with their attachments. Drafts with a call in flight, or touched after the
// scan, are kept.
func (s *sessionService) SweepIdleDrafts(ctx context.Context, maxIdle time.Duration) int {
	cutoff := s.now().Add(-maxIdle)

	s.mu.Lock()
	var idle []int64
	for userID, d := range s.drafts {
		updatedAt, busy := d.IdleSince()
		if !busy && updatedAt.Before(cutoff) {
			idle = append(idle, userID)
		}
	}
	s.mu.Unlock()

	swept := 0
	for _, userID := range idle {
		s.mu.Lock()
		d, ok := s.drafts[userID]
		s.mu.Unlock()
		if !ok || !d.DiscardIdle(ctx, cutoff) {
			continue
		}
		s.mu.Lock()
		if s.drafts[userID] == d {
			delete(s.drafts, userID)
		}
		s.mu.Unlock()
		swept++
	}

	if swept > 0 {
		slog.Info("swept idle drafts", "count", swept)
	}
	return swept
}
