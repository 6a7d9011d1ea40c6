package backbone

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/na4wx/nexdigi/internal/loadbalance"
	"github.com/na4wx/nexdigi/internal/mesh"
	"github.com/na4wx/nexdigi/internal/qos"
)

type recordingTransport struct {
	sent   [][]byte
	failN  int
	failed int
}

func (r *recordingTransport) Send(payload []byte) error {
	if r.failed < r.failN {
		r.failed++
		return errors.New("write failed")
	}
	r.sent = append(r.sent, payload)
	return nil
}

type alwaysAuthenticated struct{}

func (alwaysAuthenticated) IsAuthenticated(string) bool        { return true }
func (alwaysAuthenticated) InitiateAuth(string, string) error  { return nil }

type neverAuthenticated struct{ initiated []string }

func (n *neverAuthenticated) IsAuthenticated(string) bool { return false }
func (n *neverAuthenticated) InitiateAuth(peer string, nonce string) error {
	n.initiated = append(n.initiated, peer)
	return nil
}

func TestSendDataDirectNeighbor(t *testing.T) {
	topo := mesh.New()
	bal := loadbalance.New(loadbalance.Weighted)
	sched := qos.NewScheduler(nil, 0)
	m := NewManager("SELF", topo, bal, sched, alwaysAuthenticated{})

	tx := &recordingTransport{}
	m.AddNeighbor(Neighbor{Callsign: "PEER", Transport: tx})

	outcome := m.SendData("PEER", []byte("hello"), qos.Tags{})
	assert.Equal(t, Ok, outcome)

	p, ok := sched.Next()
	require.True(t, ok)
	assert.Equal(t, "PEER", p.Dest)

	require.NoError(t, m.DeliverToTransport(p))
	assert.Equal(t, [][]byte{[]byte("hello")}, tx.sent)
}

func TestSendDataNoRouteToUnknownDestination(t *testing.T) {
	topo := mesh.New()
	bal := loadbalance.New(loadbalance.Weighted)
	sched := qos.NewScheduler(nil, 0)
	m := NewManager("SELF", topo, bal, sched, alwaysAuthenticated{})

	outcome := m.SendData("NOWHERE", []byte("x"), qos.Tags{})
	assert.Equal(t, NoRoute, outcome)
}

func TestSendDataBuffersUntilAuthenticated(t *testing.T) {
	topo := mesh.New()
	bal := loadbalance.New(loadbalance.Weighted)
	sched := qos.NewScheduler(nil, 0)
	auther := &neverAuthenticated{}
	m := NewManager("SELF", topo, bal, sched, auther)

	tx := &recordingTransport{}
	m.AddNeighbor(Neighbor{Callsign: "PEER", Transport: tx, RequireAuth: true})

	outcome := m.SendData("PEER", []byte("secret"), qos.Tags{})
	assert.Equal(t, NotAuthenticated, outcome)
	assert.Len(t, auther.initiated, 1)

	m.OnAuthSuccess("PEER")
	p, ok := sched.Next()
	require.True(t, ok)
	assert.Equal(t, "secret", string(p.Payload))
}

func TestDeliverToTransportRetriesOnceThenReportsFailure(t *testing.T) {
	topo := mesh.New()
	bal := loadbalance.New(loadbalance.Weighted)
	sched := qos.NewScheduler(nil, 0)
	m := NewManager("SELF", topo, bal, sched, alwaysAuthenticated{})

	tx := &recordingTransport{failN: 2}
	m.AddNeighbor(Neighbor{Callsign: "PEER", Transport: tx})

	err := m.DeliverToTransport(qos.Packet{Dest: "PEER", Payload: []byte("x")})
	assert.Error(t, err)

	select {
	case peer := <-m.SendFailedEvents():
		assert.Equal(t, "PEER", peer)
	default:
		t.Fatal("expected a SendFailed notification")
	}
}
