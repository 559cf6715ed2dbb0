package wire_test

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/dmitrymomot/distio/wire"
)

func TestRemoteKillCommandRoundtrip(t *testing.T) {
	cmd := wire.RemoteKillCommand("SIGTERM")
	assert.Equal(t, wire.Command("__remote_kill_sigterm__"), cmd)

	sig, ok := wire.SignalFromRemoteKill(cmd)
	assert.True(t, ok)
	assert.Equal(t, "SIGTERM", sig)
}

func TestSignalFromRemoteKillRejectsNonSentinel(t *testing.T) {
	_, ok := wire.SignalFromRemoteKill("render")
	assert.False(t, ok)

	_, ok = wire.SignalFromRemoteKill("__remote_kill_")
	assert.False(t, ok)
}

func TestIsSentinel(t *testing.T) {
	assert.True(t, wire.IsSentinel(wire.CommandAck))
	assert.True(t, wire.IsSentinel(wire.CommandNull))
	assert.True(t, wire.IsSentinel(wire.CommandExit))
	assert.True(t, wire.IsSentinel(wire.RemoteKillCommand("SIGINT")))
	assert.False(t, wire.IsSentinel("render"))
}
