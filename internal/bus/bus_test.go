package bus

import (
	"context"
	"encoding/json"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func startPair(t *testing.T) (*Endpoint, *Endpoint) {
	t.Helper()
	host, surface := NewPair("host", "surface")

	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)
	go func() { _ = host.Pump(ctx) }()
	go func() { _ = surface.Pump(ctx) }()

	return host, surface
}

func TestRequestRoundTrip(t *testing.T) {
	host, surface := startPair(t)

	host.Handle(MsgConfigLoad, func(_ context.Context, _ json.RawMessage) (json.RawMessage, error) {
		return json.Marshal(map[string]string{"hideNav": "true"})
	})

	var got map[string]string
	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	require.NoError(t, surface.Request(ctx, MsgConfigLoad, nil, &got))
	assert.Equal(t, "true", got["hideNav"])
}

func TestRequestHandlerErrorPropagates(t *testing.T) {
	host, surface := startPair(t)

	host.Handle(MsgConfigSavePartial, func(_ context.Context, _ json.RawMessage) (json.RawMessage, error) {
		return nil, errors.New("disk full")
	})

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	err := surface.Request(ctx, MsgConfigSavePartial, map[string]string{"hideNav": "false"}, nil)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "disk full")
}

func TestRequestWithoutHandlerFails(t *testing.T) {
	_, surface := startPair(t)

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	err := surface.Request(ctx, "no-such-message", nil, nil)
	require.Error(t, err)
	assert.Contains(t, err.Error(), ErrNoHandler.Error())
}

func TestPushIsUnacknowledgedAndOrdered(t *testing.T) {
	host, surface := startPair(t)

	var seen []int
	done := make(chan struct{})
	host.HandleNotify(PushCameraZoom, func(payload json.RawMessage) {
		var idx int
		_ = json.Unmarshal(payload, &idx)
		seen = append(seen, idx)
		if len(seen) == 3 {
			close(done)
		}
	})

	require.NoError(t, surface.Send(PushCameraZoom, 0))
	require.NoError(t, surface.Send(PushCameraZoom, 2))
	require.NoError(t, surface.Send(PushCameraZoom, -1))

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("pushes not delivered")
	}
	assert.Equal(t, []int{0, 2, -1}, seen)
}

func TestSendDropsWhenQueueFull(t *testing.T) {
	// No pump running: the queue fills up and further sends are dropped,
	// not blocked.
	_, surface := NewPair("host", "surface")

	var dropped bool
	for i := 0; i < defaultQueueDepth+1; i++ {
		if err := surface.Send(PushUIState, UIState{}); err != nil {
			require.ErrorIs(t, err, ErrDropped)
			dropped = true
			break
		}
	}
	assert.True(t, dropped)
}

func TestPushDeduplicatorCollapsesRepeats(t *testing.T) {
	d := NewPushDeduplicator()

	var calls atomic.Int32
	h := d.Wrap(PushFullscreenChange, func(json.RawMessage) { calls.Add(1) })

	h(json.RawMessage(`true`))
	h(json.RawMessage(`true`))
	h(json.RawMessage(`false`))
	h(json.RawMessage(`false`))
	h(json.RawMessage(`true`))

	assert.Equal(t, int32(3), calls.Load())
}

func TestPushDeduplicatorResetForcesRedelivery(t *testing.T) {
	d := NewPushDeduplicator()

	var calls atomic.Int32
	h := d.Wrap(PushFullscreenChange, func(json.RawMessage) { calls.Add(1) })

	h(json.RawMessage(`true`))
	d.Reset(PushFullscreenChange)
	h(json.RawMessage(`true`))

	assert.Equal(t, int32(2), calls.Load())
}
