package orchestrate

import (
	"context"
	"fmt"
	"regexp"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dmitrymomot/distio/controller"
	"github.com/dmitrymomot/distio/wire"
)

func TestBroadcast_Ack(t *testing.T) {
	d := controller.NewDispatcher()
	reg := controller.NewRegistry()

	ackHandler := func(req wire.Request) (any, *wire.ResponseError) {
		return map[string]any{
			"message": fmt.Sprintf("Slave acknowledgement from=%d, received=1, responded=1, started=%d, uptime=5",
				req.TargetWorkerID, time.Now().UnixMilli()),
		}, nil
	}

	h1 := newFakeHandle(1, "w-1", d, ackHandler)
	h2 := newFakeHandle(2, "w-2", d, ackHandler)
	require.NoError(t, reg.Add(h1, ""))
	require.NoError(t, reg.Add(h2, ""))

	b := NewBroadcast(reg, d, string(wire.CommandAck), nil, wire.Meta{})
	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()

	result, err := b.To(ctx, controller.ByGroup("global")).Await(ctx)
	require.NoError(t, err)
	require.Len(t, result, 2)

	re := regexp.MustCompile(`Slave acknowledgement from=\d+, received=\d+, responded=\d+, started=\d+, uptime=\d+`)
	for _, resp := range result {
		msg := resp.Value.(map[string]any)["message"].(string)
		assert.Regexp(t, re, msg)
	}
	assert.True(t, result[0].FromWorkerID < result[1].FromWorkerID)
}

func TestBroadcast_EmptyResolution(t *testing.T) {
	d := controller.NewDispatcher()
	reg := controller.NewRegistry()

	b := NewBroadcast(reg, d, "noop", nil, wire.Meta{})
	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()

	result, err := b.To(ctx, controller.ByGroup("nonexistent")).Await(ctx)
	require.NoError(t, err)
	assert.Empty(t, result)
}
