package workflow

import (
	"context"
	"sync"
	"time"

	"github.com/maheshrc27/postify/internal/models"
)

type ConnectionState string

const (
	StateIdle              ConnectionState = "idle"
	StateNotConnected      ConnectionState = "not_connected"
	StateCollecting        ConnectionState = "collecting_credentials"
	StateVerifying         ConnectionState = "verifying"
	StatePersisting        ConnectionState = "persisting"
	StateConnected         ConnectionState = "connected"
	StateConfirmDisconnect ConnectionState = "confirm_disconnect"
)

type ConnectionSnapshot struct {
	State       ConnectionState `json:"state"`
	Platform    string          `json:"platform,omitempty"`
	LastUpdated *time.Time      `json:"lastUpdated,omitempty"`
	Busy        bool            `json:"busy"`
}

// Connection is one user's connect/disconnect dialog. At most one platform
// is in focus at a time. The lock is never held across store or network
// calls; every such call captures the epoch first and drops its result when
// Cancel or a newer action moved the epoch on.
type Connection struct {
	connector *Connector
	userID    int64

	mu          sync.Mutex
	state       ConnectionState
	platform    string
	lastUpdated *time.Time
	epoch       uint64
	inFlight    bool
}

func NewConnection(connector *Connector, userID int64) *Connection {
	return &Connection{connector: connector, userID: userID, state: StateIdle}
}

func (c *Connection) Connector() *Connector {
	return c.connector
}

func (c *Connection) Snapshot() ConnectionSnapshot {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.snapshotLocked()
}

func (c *Connection) snapshotLocked() ConnectionSnapshot {
	return ConnectionSnapshot{
		State:       c.state,
		Platform:    c.platform,
		LastUpdated: c.lastUpdated,
		Busy:        c.inFlight,
	}
}

// begin marks a call in flight and returns the epoch it belongs to.
func (c *Connection) begin(allowed ...ConnectionState) (uint64, error) {
	if c.inFlight {
		return 0, conflict(ErrBusy)
	}
	if len(allowed) > 0 && !stateIn(c.state, allowed) {
		return 0, conflict(ErrInvalidTransition)
	}
	c.epoch++
	c.inFlight = true
	return c.epoch, nil
}

// settle reacquires the lock after a call and reports whether its result
// still applies.
func (c *Connection) settle(epoch uint64) bool {
	c.mu.Lock()
	if c.epoch != epoch {
		return false
	}
	c.inFlight = false
	return true
}

func stateIn(s ConnectionState, states []ConnectionState) bool {
	for _, candidate := range states {
		if s == candidate {
			return true
		}
	}
	return false
}

// SelectPlatform focuses the dialog on name: connected platforms land in
// StateConnected, the rest in StateNotConnected awaiting confirmation.
func (c *Connection) SelectPlatform(ctx context.Context, name string) (ConnectionSnapshot, error) {
	p, ok := c.connector.Registry().Get(name)
	if !ok {
		return c.Snapshot(), unknownPlatform(name)
	}

	c.mu.Lock()
	epoch, err := c.begin()
	c.mu.Unlock()
	if err != nil {
		return c.Snapshot(), err
	}

	set, connected, err := c.connector.Load(ctx, c.userID, p.Name)

	if !c.settle(epoch) {
		defer c.mu.Unlock()
		return c.snapshotLocked(), conflict(ErrStale)
	}
	defer c.mu.Unlock()
	if err != nil {
		return c.snapshotLocked(), err
	}

	c.platform = p.Name
	c.lastUpdated = set.LastUpdated
	if connected {
		c.state = StateConnected
	} else {
		c.state = StateNotConnected
	}
	return c.snapshotLocked(), nil
}

// ConfirmConnect opens the credentials form.
func (c *Connection) ConfirmConnect() (ConnectionSnapshot, error) {
	return c.transition(StateNotConnected, StateCollecting)
}

// RequestDisconnect asks for disconnect confirmation.
func (c *Connection) RequestDisconnect() (ConnectionSnapshot, error) {
	return c.transition(StateConnected, StateConfirmDisconnect)
}

func (c *Connection) transition(from, to ConnectionState) (ConnectionSnapshot, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.inFlight {
		return c.snapshotLocked(), conflict(ErrBusy)
	}
	if c.state != from {
		return c.snapshotLocked(), conflict(ErrInvalidTransition)
	}
	c.state = to
	return c.snapshotLocked(), nil
}

// Cancel closes the dialog from any state. A verification or store call
// still running will have its result discarded.
func (c *Connection) Cancel() ConnectionSnapshot {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.epoch++
	c.inFlight = false
	c.state = StateIdle
	c.platform = ""
	c.lastUpdated = nil
	return c.snapshotLocked()
}

// SubmitCredentials validates, verifies and stores fields for the platform
// in focus. Incomplete input fails before any network call or store write.
// A rejected verification or a failed write returns to the form.
func (c *Connection) SubmitCredentials(ctx context.Context, fields map[string]string) (ConnectionSnapshot, error) {
	c.mu.Lock()
	if c.inFlight {
		defer c.mu.Unlock()
		return c.snapshotLocked(), conflict(ErrBusy)
	}
	if c.state != StateCollecting {
		defer c.mu.Unlock()
		return c.snapshotLocked(), conflict(ErrInvalidTransition)
	}
	name := c.platform
	p, normalized, err := c.connector.Validate(name, fields)
	if err != nil {
		defer c.mu.Unlock()
		return c.snapshotLocked(), err
	}
	epoch, _ := c.begin()
	c.state = StateVerifying
	c.mu.Unlock()

	if err := c.connector.Verify(ctx, p.Name, normalized); err != nil {
		return c.fail(epoch, StateCollecting, err)
	}

	c.mu.Lock()
	if c.epoch != epoch {
		defer c.mu.Unlock()
		return c.snapshotLocked(), conflict(ErrStale)
	}
	c.state = StatePersisting
	c.mu.Unlock()

	set, err := c.connector.Persist(ctx, c.userID, p.Name, normalized)
	if err != nil {
		return c.fail(epoch, StateCollecting, err)
	}

	if !c.settle(epoch) {
		defer c.mu.Unlock()
		return c.snapshotLocked(), conflict(ErrStale)
	}
	defer c.mu.Unlock()
	c.state = StateConnected
	c.lastUpdated = set.LastUpdated
	return c.snapshotLocked(), nil
}

// ConfirmDisconnect clears the platform in focus. On a store failure the
// confirmation stays open.
func (c *Connection) ConfirmDisconnect(ctx context.Context) (ConnectionSnapshot, error) {
	c.mu.Lock()
	epoch, err := c.begin(StateConfirmDisconnect)
	if err != nil {
		defer c.mu.Unlock()
		return c.snapshotLocked(), err
	}
	name := c.platform
	c.mu.Unlock()

	if err := c.connector.Disconnect(ctx, c.userID, name); err != nil {
		return c.fail(epoch, StateConfirmDisconnect, err)
	}

	if !c.settle(epoch) {
		defer c.mu.Unlock()
		return c.snapshotLocked(), conflict(ErrStale)
	}
	defer c.mu.Unlock()
	c.state = StateNotConnected
	c.lastUpdated = nil
	return c.snapshotLocked(), nil
}

// fail moves back to state and returns err, unless the call was superseded.
func (c *Connection) fail(epoch uint64, state ConnectionState, err error) (ConnectionSnapshot, error) {
	if !c.settle(epoch) {
		defer c.mu.Unlock()
		return c.snapshotLocked(), conflict(ErrStale)
	}
	defer c.mu.Unlock()
	c.state = state
	return c.snapshotLocked(), err
}

// Refresh reloads the platform in focus after its credentials were changed
// through another path.
func (c *Connection) Refresh(set *models.CredentialSet, connected bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.inFlight || set == nil || set.Platform != c.platform {
		return
	}
	c.lastUpdated = set.LastUpdated
	switch {
	case connected && (c.state == StateNotConnected || c.state == StateCollecting):
		c.state = StateConnected
	case !connected && (c.state == StateConnected || c.state == StateConfirmDisconnect):
		c.state = StateNotConnected
	}
}
