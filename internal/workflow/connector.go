package workflow

import (
	"context"
	"log/slog"
	"time"

	"github.com/maheshrc27/postify/internal/apperr"
	"github.com/maheshrc27/postify/internal/metrics"
	"github.com/maheshrc27/postify/internal/models"
	"github.com/maheshrc27/postify/internal/platform"
)

// CredentialStore is the slice of the credential repository the workflows use.
type CredentialStore interface {
	Get(ctx context.Context, userID int64, platform string) (*models.CredentialSet, error)
	Set(ctx context.Context, userID int64, platform string, fields map[string]string, updatedAt time.Time) error
	Clear(ctx context.Context, userID int64, platform string) error
}

// Verifier reports whether a set of credentials is accepted by the platform.
// Errors mean the answer is unknown, not that the credentials are bad.
type Verifier interface {
	Verify(ctx context.Context, platform string, fields map[string]string) (bool, error)
}

const (
	outcomeConnected   = "connected"
	outcomeInvalid     = "invalid"
	outcomeIncomplete  = "incomplete"
	outcomeUnverified  = "unverified"
	outcomeStoreFailed = "store_failed"
)

// Connector validates, verifies and persists credential sets. It holds no
// per-user state; Connection drives it step by step and the user record
// endpoint calls Submit and Disconnect directly.
type Connector struct {
	registry *platform.Registry
	store    CredentialStore
	verifier Verifier
	metrics  metrics.Recorder
	now      func() time.Time
}

type ConnectorOption func(*Connector)

func WithClock(now func() time.Time) ConnectorOption {
	return func(c *Connector) { c.now = now }
}

func WithConnectorMetrics(m metrics.Recorder) ConnectorOption {
	return func(c *Connector) { c.metrics = m }
}

// NewConnector builds a Connector. verifier may be nil, in which case every
// complete submission is accepted without a remote check.
func NewConnector(registry *platform.Registry, store CredentialStore, verifier Verifier, opts ...ConnectorOption) *Connector {
	c := &Connector{
		registry: registry,
		store:    store,
		verifier: verifier,
		metrics:  metrics.Nop{},
		now:      time.Now,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

func (c *Connector) Registry() *platform.Registry {
	return c.registry
}

// Validate resolves the platform and returns the submission reduced to the
// platform's declared fields. Missing required fields yield a validation
// error naming them.
func (c *Connector) Validate(name string, fields map[string]string) (*platform.Platform, map[string]string, error) {
	p, ok := c.registry.Get(name)
	if !ok {
		return nil, nil, unknownPlatform(name)
	}
	normalized := c.registry.Normalize(p.Name, fields)
	if missing := c.registry.MissingFields(p.Name, normalized); len(missing) > 0 {
		c.metrics.RecordConnection(p.Name, outcomeIncomplete)
		return nil, nil, apperr.Validation("missing required fields", missing...)
	}
	return p, normalized, nil
}

// Verify returns apperr.ErrInvalidCredentials when the verifier rejects the
// fields. An unreachable or unconfigured verifier is logged and let through.
func (c *Connector) Verify(ctx context.Context, name string, fields map[string]string) error {
	if c.verifier == nil {
		return nil
	}
	valid, err := c.verifier.Verify(ctx, name, fields)
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return ctxErr
		}
		slog.Warn("credential verification unavailable, accepting submission",
			"platform", name,
			"error", err.Error())
		c.metrics.RecordConnection(name, outcomeUnverified)
		return nil
	}
	if !valid {
		c.metrics.RecordConnection(name, outcomeInvalid)
		return apperr.ErrInvalidCredentials
	}
	return nil
}

// Persist writes the fields with a fresh lastUpdated timestamp.
func (c *Connector) Persist(ctx context.Context, userID int64, name string, fields map[string]string) (*models.CredentialSet, error) {
	updatedAt := c.now().UTC()
	if err := c.store.Set(ctx, userID, name, fields, updatedAt); err != nil {
		c.metrics.RecordConnection(name, outcomeStoreFailed)
		return nil, apperr.Wrap(apperr.KindPersistence, "failed to save credentials", err)
	}
	c.metrics.RecordConnection(name, outcomeConnected)
	return &models.CredentialSet{UserID: userID, Platform: name, Fields: fields, LastUpdated: &updatedAt}, nil
}

// Submit runs validation, verification and persistence in one go.
func (c *Connector) Submit(ctx context.Context, userID int64, name string, fields map[string]string) (*models.CredentialSet, error) {
	p, normalized, err := c.Validate(name, fields)
	if err != nil {
		return nil, err
	}
	if err := c.Verify(ctx, p.Name, normalized); err != nil {
		return nil, err
	}
	return c.Persist(ctx, userID, p.Name, normalized)
}

// Disconnect empties one platform's fields. Other platforms are untouched.
func (c *Connector) Disconnect(ctx context.Context, userID int64, name string) error {
	p, ok := c.registry.Get(name)
	if !ok {
		return unknownPlatform(name)
	}
	if err := c.store.Clear(ctx, userID, p.Name); err != nil {
		return apperr.Wrap(apperr.KindPersistence, "failed to disconnect "+p.DisplayName, err)
	}
	c.metrics.RecordDisconnect(p.Name)
	return nil
}

// Load returns the stored set and whether it counts as connected.
func (c *Connector) Load(ctx context.Context, userID int64, name string) (*models.CredentialSet, bool, error) {
	p, ok := c.registry.Get(name)
	if !ok {
		return nil, false, unknownPlatform(name)
	}
	set, err := c.store.Get(ctx, userID, p.Name)
	if err != nil {
		return nil, false, apperr.Wrap(apperr.KindPersistence, "failed to load credentials", err)
	}
	if set == nil {
		set = &models.CredentialSet{UserID: userID, Platform: p.Name, Fields: map[string]string{}}
	}
	return set, c.registry.IsConnected(p.Name, set.Fields), nil
}

// Connected lists the user's connected platforms in registry order.
func (c *Connector) Connected(ctx context.Context, userID int64) ([]string, error) {
	var names []string
	for _, name := range c.registry.Names() {
		_, ok, err := c.Load(ctx, userID, name)
		if err != nil {
			return nil, err
		}
		if ok {
			names = append(names, name)
		}
	}
	return names, nil
}
