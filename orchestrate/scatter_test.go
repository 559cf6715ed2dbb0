package orchestrate

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dmitrymomot/distio/controller"
	"github.com/dmitrymomot/distio/wire"
)

func TestScatter_RoundRobin(t *testing.T) {
	d := controller.NewDispatcher()
	h1 := newFakeHandle(1, "w-1", d, echoHandler)
	h2 := newFakeHandle(2, "w-2", d, echoHandler)

	items := []any{"a", "b", "c", "d"}
	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()

	result, err := Scatter(ctx, d, "echo", items, []controller.Handle{h1, h2}, wire.Meta{}).Await(ctx)
	require.NoError(t, err)
	require.Len(t, result, 4)
	assert.Equal(t, []any{"a", "b", "c", "d"}, result.Values())
	assert.Equal(t, uint64(1), result[0].FromWorkerID)
	assert.Equal(t, uint64(2), result[1].FromWorkerID)
}

func TestScatter_Chunked(t *testing.T) {
	d := controller.NewDispatcher()
	sumHandler := func(req wire.Request) (any, *wire.ResponseError) {
		total := 0
		for _, v := range req.Data.([]any) {
			total += v.(int)
		}
		return total, nil
	}
	h1 := newFakeHandle(1, "w-1", d, sumHandler)
	h2 := newFakeHandle(2, "w-2", d, sumHandler)

	items := []any{1, 2, 3, 4, 5}
	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()

	result, err := Scatter(ctx, d, "sum", items, []controller.Handle{h1, h2}, wire.Meta{Chunk: true}).Await(ctx)
	require.NoError(t, err)
	require.Len(t, result, 2)
	assert.Equal(t, 6, result[0].Value)
	assert.Equal(t, 9, result[1].Value)
}

func TestScatter_EmptyItems(t *testing.T) {
	d := controller.NewDispatcher()
	h1 := newFakeHandle(1, "w-1", d, echoHandler)

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	result, err := Scatter(ctx, d, "echo", nil, []controller.Handle{h1}, wire.Meta{}).Await(ctx)
	require.NoError(t, err)
	assert.Empty(t, result)
}

func TestScatter_NoWorkers(t *testing.T) {
	d := controller.NewDispatcher()
	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	_, err := Scatter(ctx, d, "echo", []any{"a"}, nil, wire.Meta{}).Await(ctx)
	assert.ErrorIs(t, err, ErrNoTargets)
}
