package proxy

import (
	"context"
	"io"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNew_RejectsBadScriptRoot(t *testing.T) {
	_, err := New(WithScriptRoot("/path/does/not/exist"))
	assert.ErrorIs(t, err, ErrBadScriptRoot)
}

func TestNew_RejectsBadAuthorizedIPPattern(t *testing.T) {
	_, err := New(WithScriptRoot(t.TempDir()), WithAuthorizedIPs([]string{"("}))
	assert.Error(t, err)
}

func TestNew_DefaultsToCurrentWorkingConfig(t *testing.T) {
	srv, err := New(WithScriptRoot(t.TempDir()))
	require.NoError(t, err)
	assert.NotNil(t, srv.log)
	assert.Equal(t, defaultShutdownGrace, srv.shutdownGrace)
}

func TestServer_ReserveSlaves_RespectsHardCap(t *testing.T) {
	srv, err := New(WithScriptRoot(t.TempDir()), WithMaxConcurrentSlaves(2), WithServerLogger(slog.New(slog.NewTextHandler(io.Discard, nil))))
	require.NoError(t, err)

	ctx := context.Background()
	assert.True(t, srv.reserveSlaves(ctx, 2))
	assert.False(t, srv.reserveSlaves(ctx, 1), "third slave must be rejected once the cap is reached")

	srv.releaseSlaves(1)
	assert.True(t, srv.reserveSlaves(ctx, 1), "releasing a slot must make room for a new reservation")
}

func TestServer_ReserveSlaves_Unlimited(t *testing.T) {
	srv := testServer(t)
	ctx := context.Background()
	assert.True(t, srv.reserveSlaves(ctx, 100))
}

func TestServer_StartStop(t *testing.T) {
	srv := testServer(t)
	ctx := context.Background()

	addr, err := srv.Start(ctx, "127.0.0.1:0")
	require.NoError(t, err)
	assert.NotEmpty(t, addr)

	_, err = srv.Start(ctx, "127.0.0.1:0")
	assert.ErrorIs(t, err, ErrServerAlreadyRunning)

	require.NoError(t, srv.Stop(ctx))

	err = srv.Stop(ctx)
	assert.ErrorIs(t, err, ErrNotRunning)
}

func TestServer_DropSession(t *testing.T) {
	srv := testServer(t)
	conn := newFakeSessionConn()
	sess := newTestSession(srv, conn)
	sess.id = 7

	srv.sessions[7] = sess
	srv.dropSession(7)

	srv.sessionsMu.Lock()
	_, ok := srv.sessions[7]
	srv.sessionsMu.Unlock()
	assert.False(t, ok)
}
