package kiss

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"pgregory.net/rapid"
)

func TestEncodeDecodeRoundTrip(t *testing.T) {
	payload := []byte{0xC0, 0x01, 0xDB, 0x02, 0xFF}
	wire := Encode(0, CmdData, payload)

	var d Decoder
	frames := d.Feed(wire)
	require.Len(t, frames, 1)
	assert.Equal(t, uint8(0), frames[0].Port)
	assert.Equal(t, CmdData, frames[0].Command)
	assert.Equal(t, payload, frames[0].Payload)
}

func TestDecodeHandlesChunkedStream(t *testing.T) {
	payload := []byte("hello")
	wire := Encode(3, CmdData, payload)

	var d Decoder
	var frames []Frame
	for _, b := range wire {
		frames = append(frames, d.Feed([]byte{b})...)
	}
	require.Len(t, frames, 1)
	assert.Equal(t, uint8(3), frames[0].Port)
	assert.Equal(t, payload, frames[0].Payload)
}

func TestDecodeMultipleFramesBackToBack(t *testing.T) {
	wire := append(Encode(0, CmdData, []byte("one")), Encode(0, CmdData, []byte("two"))...)
	var d Decoder
	frames := d.Feed(wire)
	require.Len(t, frames, 2)
	assert.Equal(t, []byte("one"), frames[0].Payload)
	assert.Equal(t, []byte("two"), frames[1].Payload)
}

func TestEncodeDecodeProperty(t *testing.T) {
	rapid.Check(t, func(rt *rapid.T) {
		port := uint8(rapid.IntRange(0, 15).Draw(rt, "port"))
		payload := rapid.SliceOfN(rapid.Byte(), 0, 128).Draw(rt, "payload")
		wire := Encode(port, CmdData, payload)

		var d Decoder
		frames := d.Feed(wire)
		if len(frames) != 1 {
			rt.Fatalf("expected 1 frame, got %d", len(frames))
		}
		if string(frames[0].Payload) != string(payload) {
			rt.Fatalf("payload mismatch: %x != %x", frames[0].Payload, payload)
		}
		if frames[0].Port != port {
			rt.Fatalf("port mismatch: %d != %d", frames[0].Port, port)
		}
	})
}
