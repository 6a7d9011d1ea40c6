package events

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPublishFansOutToSubscribers(t *testing.T) {
	b := New()
	chA, unsubA := b.Subscribe(1)
	defer unsubA()
	chB, unsubB := b.Subscribe(1)
	defer unsubB()

	b.Publish(FrameDigipeated, map[string]string{"channel": "ch0"})

	evA := <-chA
	evB := <-chB
	assert.Equal(t, FrameDigipeated, evA.Kind)
	assert.Equal(t, FrameDigipeated, evB.Kind)
	assert.Equal(t, "ch0", evA.Attrs["channel"])
}

func TestPublishDropsOnFullSubscriberBuffer(t *testing.T) {
	b := New()
	ch, unsub := b.Subscribe(1)
	defer unsub()

	b.Publish(LinkUp, nil)
	b.Publish(LinkDown, nil) // dropped: buffer of 1 already holds LinkUp

	ev := <-ch
	assert.Equal(t, LinkUp, ev.Kind)
	select {
	case <-ch:
		t.Fatal("expected the second publish to have been dropped")
	default:
	}
}

func TestUnsubscribeClosesChannel(t *testing.T) {
	b := New()
	ch, unsub := b.Subscribe(1)
	unsub()
	_, ok := <-ch
	require.False(t, ok)
}
