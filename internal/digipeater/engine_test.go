package digipeater

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/na4wx/nexdigi/internal/ax25"
)

type recordingSender struct {
	sent [][]byte
}

func (r *recordingSender) Send(payload []byte) error {
	r.sent = append(r.sent, payload)
	return nil
}

func buildRaw(t *testing.T, dest, src string, digis []string, payload []byte) []byte {
	t.Helper()
	f := &ax25.Frame{Payload: payload}
	mk := func(s string) ax25.Address {
		c, err := ax25.ParseCallsign(s)
		require.NoError(t, err)
		return ax25.Address{Callsign: c}
	}
	f.Addresses = append(f.Addresses, mk(dest), mk(src))
	for _, d := range digis {
		f.Addresses = append(f.Addresses, mk(d))
	}
	raw, err := f.Emit()
	require.NoError(t, err)
	return raw
}

// TestFillInServicesWIDE1 exercises scenario 1 from spec.md section 8.
func TestFillInServicesWIDE1(t *testing.T) {
	own, err := ax25.ParseCallsign("DIGI")
	require.NoError(t, err)

	e := NewEngine(5*time.Second, 1000, nil)
	tx := &recordingSender{}
	e.AddChannel(Config{
		ID:             "ch0",
		Mode:           ModeDigipeat,
		Role:           RoleFillIn,
		Callsign:       own,
		AppendCallsign: true,
	}, tx)

	raw := buildRaw(t, "APRS", "N0CALL", []string{"WIDE1-1", "WIDE2-2"}, []byte("hi"))
	outcome, err := e.Process("ch0", raw)
	require.NoError(t, err)
	assert.Equal(t, OutcomeDigipeated, outcome)
	require.Len(t, tx.sent, 1)

	out, err := ax25.Parse(tx.sent[0])
	require.NoError(t, err)
	require.Len(t, out.Addresses, 5)
	assert.Equal(t, "DIGI", out.Addresses[2].Callsign.Base)
	assert.True(t, out.Addresses[2].HBit)
	assert.Equal(t, "WIDE1", out.Addresses[3].Callsign.Base)
	assert.True(t, out.Addresses[3].HBit)
	assert.Equal(t, "WIDE2", out.Addresses[4].Callsign.Base)
	assert.Equal(t, uint8(2), out.Addresses[4].Callsign.SSID)
}

func TestWideRoleBlockedOnWIDE1(t *testing.T) {
	own, _ := ax25.ParseCallsign("DIGI")
	e := NewEngine(5*time.Second, 1000, nil)
	tx := &recordingSender{}
	e.AddChannel(Config{ID: "ch0", Mode: ModeDigipeat, Role: RoleWide, Callsign: own}, tx)

	raw := buildRaw(t, "APRS", "N0CALL", []string{"WIDE1-1", "WIDE2-2"}, []byte("hi"))
	outcome, err := e.Process("ch0", raw)
	require.NoError(t, err)
	assert.Equal(t, OutcomeDropped, outcome)
	assert.Empty(t, tx.sent)
	assert.EqualValues(t, 1, e.Metrics().ServicedWideBlocked)
}

// TestDuplicateSuppression exercises scenario 2 from spec.md section 8.
func TestDuplicateSuppression(t *testing.T) {
	own, _ := ax25.ParseCallsign("DIGI")
	fakeNow := time.Now()
	e := NewEngine(5*time.Second, 1000, nil)
	e.seen.SetClockForTest(func() time.Time { return fakeNow })
	tx := &recordingSender{}
	e.AddChannel(Config{ID: "ch0", Mode: ModeDigipeat, Role: RoleWide, Callsign: own}, tx)

	raw := buildRaw(t, "APRS", "N0CALL", []string{"WIDE2-2"}, []byte("hi"))

	o1, err := e.Process("ch0", raw)
	require.NoError(t, err)
	assert.Equal(t, OutcomeDigipeated, o1)

	o2, err := e.Process("ch0", raw)
	require.NoError(t, err)
	assert.Equal(t, OutcomeDuplicate, o2)

	snap := e.Metrics()
	assert.EqualValues(t, 1, snap.Digipeats)
	assert.EqualValues(t, 1, snap.DuplicatesSuppressed)

	fakeNow = fakeNow.Add(6 * time.Second)
	o3, err := e.Process("ch0", raw)
	require.NoError(t, err)
	assert.Equal(t, OutcomeDigipeated, o3)
	assert.EqualValues(t, 2, e.Metrics().Digipeats)
}

func TestMaxWideNExceeded(t *testing.T) {
	own, _ := ax25.ParseCallsign("DIGI")
	e := NewEngine(5*time.Second, 1000, nil)
	tx := &recordingSender{}
	e.AddChannel(Config{ID: "ch0", Mode: ModeDigipeat, Role: RoleWide, Callsign: own, MaxWideN: 2}, tx)

	raw := buildRaw(t, "APRS", "N0CALL", []string{"WIDE4-4"}, []byte("hi"))
	outcome, err := e.Process("ch0", raw)
	require.NoError(t, err)
	assert.Equal(t, OutcomeDropped, outcome)
	assert.EqualValues(t, 1, e.Metrics().MaxWideBlocked)
}

func TestPersonalAliasIsServiced(t *testing.T) {
	own, _ := ax25.ParseCallsign("DIGI")
	alias, _ := ax25.ParseCallsign("MYALIAS")
	e := NewEngine(5*time.Second, 1000, nil)
	tx := &recordingSender{}
	e.AddChannel(Config{
		ID: "ch0", Mode: ModeDigipeat, Role: RoleFillIn, Callsign: own,
		PersonalAliases: []ax25.Callsign{alias},
	}, tx)

	raw := buildRaw(t, "APRS", "N0CALL", []string{"MYALIAS-1"}, []byte("hi"))
	outcome, err := e.Process("ch0", raw)
	require.NoError(t, err)
	assert.Equal(t, OutcomeDigipeated, outcome)
}
