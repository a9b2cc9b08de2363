package workflow

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	config "github.com/maheshrc27/postify/configs"
	"github.com/maheshrc27/postify/internal/apperr"
	"github.com/maheshrc27/postify/internal/gateway"
	"github.com/maheshrc27/postify/internal/platform"
)

const testUserID int64 = 7

func newTestConnection(store *fakeStore, verifier Verifier) *Connection {
	connector := NewConnector(platform.Default(), store, verifier, WithClock(fixedClock))
	return NewConnection(connector, testUserID)
}

func openForm(t *testing.T, conn *Connection, name string) {
	t.Helper()
	snap, err := conn.SelectPlatform(context.Background(), name)
	require.NoError(t, err)
	require.Equal(t, StateNotConnected, snap.State)
	snap, err = conn.ConfirmConnect()
	require.NoError(t, err)
	require.Equal(t, StateCollecting, snap.State)
}

func TestConnectInstagram(t *testing.T) {
	store := newFakeStore()
	verifier := &fakeVerifier{valid: true}
	conn := newTestConnection(store, verifier)
	ctx := context.Background()

	assert.Equal(t, StateIdle, conn.Snapshot().State)
	openForm(t, conn, "instagram")

	snap, err := conn.SubmitCredentials(ctx, map[string]string{"username": "alice", "password": "pw"})
	require.NoError(t, err)

	assert.Equal(t, StateConnected, snap.State)
	assert.Equal(t, "instagram", snap.Platform)
	require.NotNil(t, snap.LastUpdated)
	assert.Equal(t, fixedNow, *snap.LastUpdated)
	assert.Equal(t, map[string]string{"username": "alice", "password": "pw"}, store.fields("instagram"))
	assert.Equal(t, 1, verifier.callCount())

	snap, err = conn.SelectPlatform(ctx, "instagram")
	require.NoError(t, err)
	assert.Equal(t, StateConnected, snap.State)
}

func TestSubmitWithMissingFieldsTouchesNothing(t *testing.T) {
	store := newFakeStore()
	verifier := &fakeVerifier{valid: true}
	conn := newTestConnection(store, verifier)
	openForm(t, conn, "twitter")

	snap, err := conn.SubmitCredentials(context.Background(), map[string]string{
		"consumer_key":    "k",
		"consumer_secret": "s",
	})

	require.ErrorIs(t, err, apperr.ErrValidation)
	assert.Equal(t, []string{"access_token", "access_token_secret"}, apperr.FieldsOf(err))
	assert.Equal(t, StateCollecting, snap.State)
	assert.Zero(t, verifier.callCount())
	assert.Zero(t, store.setCalls)
}

func TestRejectedCredentialsLeaveStoreUntouched(t *testing.T) {
	store := newFakeStore()
	store.connect(testUserID, "linkedin", map[string]string{"access_token": "", "owner_urn": "urn:1"})
	verifier := &fakeVerifier{valid: false}
	conn := newTestConnection(store, verifier)
	ctx := context.Background()
	openForm(t, conn, "linkedin")

	snap, err := conn.SubmitCredentials(ctx, map[string]string{"access_token": "bad", "owner_urn": "urn:2"})

	require.ErrorIs(t, err, apperr.ErrInvalidCredentials)
	assert.Equal(t, StateCollecting, snap.State)
	assert.Zero(t, store.setCalls)
	assert.Equal(t, "urn:1", store.fields("linkedin")["owner_urn"])
}

func TestUnavailableVerifierStillConnects(t *testing.T) {
	store := newFakeStore()
	verifier := &fakeVerifier{err: gateway.ErrUnavailable}
	conn := newTestConnection(store, verifier)
	openForm(t, conn, "linkedin")

	snap, err := conn.SubmitCredentials(context.Background(), map[string]string{
		"access_token": "tok",
		"owner_urn":    "urn:li:organization:1",
		"lastUpdated":  "ignored",
	})

	require.NoError(t, err)
	assert.Equal(t, StateConnected, snap.State)
	assert.Equal(t, map[string]string{"access_token": "tok", "owner_urn": "urn:li:organization:1"}, store.fields("linkedin"))
}

func TestStoreFailureReturnsToForm(t *testing.T) {
	store := newFakeStore()
	store.setErr = errStoreDown
	conn := newTestConnection(store, nil)
	openForm(t, conn, "instagram")

	snap, err := conn.SubmitCredentials(context.Background(), map[string]string{"username": "a", "password": "b"})

	require.ErrorIs(t, err, apperr.ErrPersistence)
	assert.ErrorIs(t, err, errStoreDown)
	assert.Equal(t, StateCollecting, snap.State)
	assert.False(t, snap.Busy)
}

func TestDisconnectOnlyClearsOnePlatform(t *testing.T) {
	store := newFakeStore()
	store.connect(testUserID, "twitter", map[string]string{"consumer_key": "k", "consumer_secret": "s", "access_token": "t", "access_token_secret": "ts"})
	store.connect(testUserID, "linkedin", map[string]string{"access_token": "tok", "owner_urn": "urn:1"})
	conn := newTestConnection(store, nil)
	ctx := context.Background()

	snap, err := conn.SelectPlatform(ctx, "twitter")
	require.NoError(t, err)
	require.Equal(t, StateConnected, snap.State)

	snap, err = conn.RequestDisconnect()
	require.NoError(t, err)
	require.Equal(t, StateConfirmDisconnect, snap.State)

	snap, err = conn.ConfirmDisconnect(ctx)
	require.NoError(t, err)
	assert.Equal(t, StateNotConnected, snap.State)
	assert.Nil(t, snap.LastUpdated)

	assert.Empty(t, store.fields("twitter"))
	assert.Equal(t, "tok", store.fields("linkedin")["access_token"])

	connected, err := conn.Connector().Connected(ctx, testUserID)
	require.NoError(t, err)
	assert.Equal(t, []string{"linkedin"}, connected)
}

func TestDisconnectStoreFailureKeepsConfirmation(t *testing.T) {
	store := newFakeStore()
	store.connect(testUserID, "twitter", map[string]string{"consumer_key": "k"})
	conn := newTestConnection(store, nil)
	ctx := context.Background()

	_, err := conn.SelectPlatform(ctx, "twitter")
	require.NoError(t, err)
	_, err = conn.RequestDisconnect()
	require.NoError(t, err)

	store.clearErr = errStoreDown
	snap, err := conn.ConfirmDisconnect(ctx)

	require.ErrorIs(t, err, apperr.ErrPersistence)
	assert.Equal(t, StateConfirmDisconnect, snap.State)
	assert.Equal(t, "k", store.fields("twitter")["consumer_key"])
}

func TestOperationsOutOfOrderAreRejected(t *testing.T) {
	conn := newTestConnection(newFakeStore(), nil)

	_, err := conn.ConfirmConnect()
	assert.ErrorIs(t, err, ErrInvalidTransition)
	assert.Equal(t, 409, apperr.StatusCode(err))

	_, err = conn.SubmitCredentials(context.Background(), map[string]string{"username": "a"})
	assert.ErrorIs(t, err, ErrInvalidTransition)

	_, err = conn.SelectPlatform(context.Background(), "twitter")
	require.NoError(t, err)
	_, err = conn.RequestDisconnect()
	assert.ErrorIs(t, err, ErrInvalidTransition)

	_, err = conn.ConfirmDisconnect(context.Background())
	assert.ErrorIs(t, err, ErrInvalidTransition)
}

func TestSelectUnknownPlatform(t *testing.T) {
	conn := newTestConnection(newFakeStore(), nil)

	snap, err := conn.SelectPlatform(context.Background(), "myspace")

	assert.ErrorIs(t, err, apperr.ErrValidation)
	assert.ErrorIs(t, err, ErrUnknownPlatform)
	assert.Equal(t, StateIdle, snap.State)
}

func TestCancelDiscardsInFlightVerification(t *testing.T) {
	store := newFakeStore()
	verifier := &fakeVerifier{
		valid:   true,
		started: make(chan struct{}),
		release: make(chan struct{}),
	}
	conn := newTestConnection(store, verifier)
	openForm(t, conn, "instagram")

	type result struct {
		snap ConnectionSnapshot
		err  error
	}
	done := make(chan result)
	go func() {
		snap, err := conn.SubmitCredentials(context.Background(), map[string]string{"username": "a", "password": "b"})
		done <- result{snap, err}
	}()

	<-verifier.started
	assert.Equal(t, StateVerifying, conn.Snapshot().State)

	_, err := conn.SubmitCredentials(context.Background(), map[string]string{"username": "a", "password": "b"})
	assert.ErrorIs(t, err, ErrBusy)

	snap := conn.Cancel()
	assert.Equal(t, StateIdle, snap.State)

	close(verifier.release)
	res := <-done

	assert.ErrorIs(t, res.err, ErrStale)
	assert.Equal(t, StateIdle, res.snap.State)
	assert.Zero(t, store.setCalls)
}

func TestConnectorSubmitDirect(t *testing.T) {
	store := newFakeStore()
	connector := NewConnector(platform.Default(), store, &fakeVerifier{valid: true}, WithClock(fixedClock))

	set, err := connector.Submit(context.Background(), testUserID, "Twitter", map[string]string{
		"consumer_key":        " k ",
		"consumer_secret":     "s",
		"access_token":        "t",
		"access_token_secret": "ts",
	})
	require.NoError(t, err)

	assert.Equal(t, "twitter", set.Platform)
	assert.Equal(t, "k", set.Fields["consumer_key"])
	assert.Equal(t, "k", store.fields("twitter")["consumer_key"])

	_, err = connector.Submit(context.Background(), testUserID, "myspace", nil)
	assert.ErrorIs(t, err, apperr.ErrValidation)
}

func TestVerifierClientErrorBlocksPersistence(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
		w.Write([]byte(`{"valid": false}`))
	}))
	defer srv.Close()

	client := gateway.New(config.Services{VerifyURL: srv.URL, Timeout: 5 * time.Second})
	store := newFakeStore()
	connector := NewConnector(platform.Default(), store, client, WithClock(fixedClock))

	_, err := connector.Submit(context.Background(), testUserID, "instagram", map[string]string{
		"username": "a",
		"password": "wrong",
	})

	require.ErrorIs(t, err, apperr.ErrInvalidCredentials)
	assert.Zero(t, store.setCalls)
	assert.Empty(t, store.fields("instagram"))
}
