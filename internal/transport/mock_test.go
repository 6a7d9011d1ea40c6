package transport

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMockEmitsConnectedAndFrames(t *testing.T) {
	m := NewMock(10*time.Millisecond, [][]byte{[]byte("frame-a"), []byte("frame-b")})
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	done := make(chan error, 1)
	go func() { done <- m.Run(ctx) }()

	ev := <-m.Events()
	require.Equal(t, Connected, ev.State)

	ev = <-m.Events()
	assert.Equal(t, []byte("frame-a"), ev.Frame)

	ev = <-m.Events()
	assert.Equal(t, []byte("frame-b"), ev.Frame)

	cancel()
	require.NoError(t, <-done)
}

func TestMockRecordsSent(t *testing.T) {
	m := NewMock(0, nil)
	ctx, cancel := context.WithCancel(context.Background())
	go func() { _ = m.Run(ctx) }()
	<-m.Events() // Connected

	require.NoError(t, m.Send([]byte("hello")))
	assert.Equal(t, [][]byte{[]byte("hello")}, m.Sent())
	cancel()
}
