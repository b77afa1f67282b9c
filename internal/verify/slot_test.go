package verify

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ppiankov/athena/internal/client"
	"github.com/ppiankov/athena/internal/model"
)

func TestSlot_FirstVerdictFillsSlot(t *testing.T) {
	release := map[string]chan struct{}{
		"old claim": make(chan struct{}),
		"new claim": make(chan struct{}),
	}
	b := &textBackend{release: release}
	c := newCoordinator(b)
	var slot Slot

	old, err := c.Submit("old claim")
	require.NoError(t, err)
	slot.Claim(old)

	recent, err := c.Submit("new claim")
	require.NoError(t, err)
	slot.Claim(recent)
	assert.Equal(t, recent.ID(), slot.Current())

	// Unresolved handles are never offered
	assert.False(t, slot.Offer(recent))

	close(release["old claim"])
	_, err = wait(t, old)
	require.NoError(t, err)
	assert.True(t, slot.Offer(old))

	close(release["new claim"])
	_, err = wait(t, recent)
	require.NoError(t, err)
	assert.False(t, slot.Offer(recent), "slot already shows a verdict")

	c.Shutdown()
}

func TestSlot_FailuresAlwaysReported(t *testing.T) {
	b := &fakeBackend{pollFn: func(ctx context.Context, n int) (*client.PollResult, error) {
		return &client.PollResult{Status: client.PollFailed, Message: "boom"}, nil
	}}
	c := newCoordinator(b)
	var slot Slot

	h, err := c.Submit("failing")
	require.NoError(t, err)
	slot.Claim(h)
	_, err = wait(t, h)
	require.Error(t, err)

	assert.True(t, slot.Offer(h))
	assert.True(t, slot.Offer(h))
	c.Shutdown()
}

func TestSlot_CancelledNeverReported(t *testing.T) {
	b := &fakeBackend{pollFn: func(ctx context.Context, n int) (*client.PollResult, error) {
		<-ctx.Done()
		return nil, ctx.Err()
	}}
	c := newCoordinator(b)
	var slot Slot

	h, err := c.Submit("withdrawn")
	require.NoError(t, err)
	slot.Claim(h)
	h.Cancel()

	assert.False(t, slot.Offer(h))
	c.Shutdown()
}

// textBackend completes each input once its release channel is closed
type textBackend struct {
	release map[string]chan struct{}
}

func (b *textBackend) Start(ctx context.Context, text string) (*client.StartResponse, error) {
	return &client.StartResponse{TaskID: text}, nil
}

func (b *textBackend) Poll(ctx context.Context, taskID string) (*client.PollResult, error) {
	select {
	case <-b.release[taskID]:
	case <-ctx.Done():
		return nil, ctx.Err()
	}
	return terminal(model.LabelSupported, 90), nil
}
