package controller_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dmitrymomot/distio/controller"
	"github.com/dmitrymomot/distio/internal/noticebus"
	"github.com/dmitrymomot/distio/pkg/broadcast"
	"github.com/dmitrymomot/distio/wire"
)

func TestControllerPublishesWorkerTimeoutOnDispatchTimeout(t *testing.T) {
	c := controller.New()
	defer c.Events.Close()

	received := make(chan controller.WorkerTimeout, 1)
	handler := noticebus.NewHandlerFunc(func(ev controller.WorkerTimeout) error {
		received <- ev
		return nil
	})

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go func() { _ = c.Events.Subscribe(ctx, handler) }()
	time.Sleep(10 * time.Millisecond)

	h := newFakeHandle(1)
	h.onSend = func(wire.Request) {} // never replies, so the TTL fires
	c.Dispatcher.Dispatch(h, "render", nil, wire.Meta{Timeout: 10 * time.Millisecond}, nil)

	select {
	case ev := <-received:
		assert.Equal(t, uint64(1), ev.WorkerID)
		assert.Equal(t, wire.Command("render"), ev.Command)
	case <-time.After(time.Second):
		t.Fatal("WorkerTimeout was never published")
	}
}

func TestControllerPublishesWorkerDisconnectedOnCancel(t *testing.T) {
	c := controller.New()
	defer c.Events.Close()

	received := make(chan controller.WorkerDisconnected, 1)
	handler := noticebus.NewHandlerFunc(func(ev controller.WorkerDisconnected) error {
		received <- ev
		return nil
	})

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go func() { _ = c.Events.Subscribe(ctx, handler) }()
	time.Sleep(10 * time.Millisecond)

	h := newFakeHandle(2)
	h.onSend = func(wire.Request) {}
	c.Dispatcher.Dispatch(h, "render", nil, wire.Meta{}, nil)
	c.Dispatcher.CancelForHandle(h.ID())

	select {
	case ev := <-received:
		assert.Equal(t, uint64(2), ev.WorkerID)
	case <-time.After(time.Second):
		t.Fatal("WorkerDisconnected was never published")
	}
}

func TestEventsLifecycleBroadcast(t *testing.T) {
	events := controller.NewEvents(4)
	defer events.Close()

	sub := events.Lifecycle.Subscribe(context.Background())

	evt := controller.LifecycleEvent{WorkerID: 1, Alias: "worker-1", Kind: "stdout", Data: []byte("hi")}
	require.NoError(t, events.Lifecycle.Broadcast(context.Background(), broadcast.Message[controller.LifecycleEvent]{Data: evt}))

	select {
	case msg := <-sub.Receive(context.Background()):
		assert.Equal(t, evt, msg.Data)
	case <-time.After(time.Second):
		t.Fatal("lifecycle subscriber never received the broadcast")
	}
}
