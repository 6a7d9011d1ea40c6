// Package auth implements the Ed25519 challenge-response trust plane
// (spec.md section 4.8). Identity and session bookkeeping follow the same
// "generate once, gate every subsequent handshake" shape the retrieved
// samoyed igate client uses to validate its upstream login line, adapted
// from a one-shot text login to a four-message signed exchange.
package auth

import (
	"crypto/ed25519"
	"crypto/rand"
	"encoding/hex"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/na4wx/nexdigi/internal/seencache"
)

// Defaults per spec.md section 4.8.
const (
	DefaultSessionTimeout    = 300 * time.Second
	DefaultMaxAttemptsPerMin = 5
	challengeTimeout         = 60 * time.Second
	clockSkewPast            = 60 * time.Second
	clockSkewFuture          = 300 * time.Second
	nonceCacheWindow         = 10 * time.Minute
	nonceCacheMaxEntries     = 10000
)

// Policy selects how an unknown sender's public key is handled.
type Policy int

const (
	// PolicyStrict admits only callsigns present in the trusted-node table.
	PolicyStrict Policy = iota
	// PolicyTrustOnFirstUse admits an unknown sender's AUTH_REQUEST key,
	// binding it for future handshakes.
	PolicyTrustOnFirstUse
)

// Identity is the local node's Ed25519 keypair.
type Identity struct {
	Public  ed25519.PublicKey
	private ed25519.PrivateKey
}

// NewIdentity generates a fresh keypair.
func NewIdentity() (Identity, error) {
	pub, priv, err := ed25519.GenerateKey(rand.Reader)
	if err != nil {
		return Identity{}, fmt.Errorf("auth: generate identity: %w", err)
	}
	return Identity{Public: pub, private: priv}, nil
}

// PublicKeyHex renders the public key as the exportable text form used in
// the trusted-node table.
func (id Identity) PublicKeyHex() string { return hex.EncodeToString(id.Public) }

func (id Identity) sign(challenge []byte) []byte { return ed25519.Sign(id.private, challenge) }

// Message types exchanged over the backbone control channel.
type AuthRequest struct {
	From, To  string
	PublicKey string
	Algorithm string
	Nonce     string
	Timestamp time.Time
}

type AuthChallenge struct {
	From, To  string
	Challenge []byte
	Nonce     string
	Timestamp time.Time
}

type AuthResponse struct {
	From, To  string
	Challenge []byte
	Signature []byte
	Nonce     string
	Timestamp time.Time
}

type AuthSuccess struct{ From, To string }

type AuthFailure struct {
	From, To string
	Reason   string
}

// Sender is the minimal outbound capability Manager needs; see the note
// on mesh.Sender about why this stays a small local interface.
type Sender interface {
	Send(peer string, msg interface{}) error
}

// Clock lets tests fake the passage of time without changing production
// call sites.
type Clock interface {
	Now() time.Time
}

type realClock struct{}

func (realClock) Now() time.Time { return time.Now() }

type session struct {
	state    string // "authenticated"
	issuedAt time.Time
}

type outstandingRequest struct {
	sentAt time.Time
}

type outstandingChallenge struct {
	peerPublicKey ed25519.PublicKey
	challenge     []byte
	issuedAt      time.Time
}

type attemptWindow struct {
	windowStart time.Time
	count       int
}

// Manager runs the four-message handshake, session table, nonce-replay
// cache, and per-peer rate limiting.
type Manager struct {
	self     string
	identity Identity
	send     Sender
	clock    Clock
	policy   Policy

	sessionTimeout    time.Duration
	maxAttemptsPerMin int

	mu                 sync.Mutex
	trusted            map[string]ed25519.PublicKey
	sessions           map[string]session
	outstandingReq     map[string]outstandingRequest
	outstandingChal    map[string]outstandingChallenge
	attempts           map[string]*attemptWindow
	nonces             *seencache.Cache

	events chan Event
}

// Event reports an auth outcome for the typed event bus.
type Event struct {
	Kind string // "auth-success", "auth-failure", "rate-limited"
	Peer string
	Info string
}

// NewManager constructs a Manager for the local node.
func NewManager(self string, identity Identity, send Sender, policy Policy) *Manager {
	return &Manager{
		self:              self,
		identity:          identity,
		send:              send,
		clock:             realClock{},
		policy:            policy,
		sessionTimeout:    DefaultSessionTimeout,
		maxAttemptsPerMin: DefaultMaxAttemptsPerMin,
		trusted:           make(map[string]ed25519.PublicKey),
		sessions:          make(map[string]session),
		outstandingReq:    make(map[string]outstandingRequest),
		outstandingChal:   make(map[string]outstandingChallenge),
		attempts:          make(map[string]*attemptWindow),
		nonces:            seencache.New(nonceCacheWindow, nonceCacheMaxEntries),
		events:            make(chan Event, 32),
	}
}

// Events returns the auth outcome notification channel.
func (m *Manager) Events() <-chan Event { return m.events }

// Trust binds peer's public key for strict-policy verification.
func (m *Manager) Trust(peer string, pub ed25519.PublicKey) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.trusted[peer] = pub
}

// IsAuthenticated reports whether peer currently holds a live session.
func (m *Manager) IsAuthenticated(peer string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.sessions[peer]
	if !ok {
		return false
	}
	return m.clock.Now().Sub(s.issuedAt) <= m.sessionTimeout
}

func (m *Manager) rateLimited(peer string) bool {
	now := m.clock.Now()
	w, ok := m.attempts[peer]
	if !ok || now.Sub(w.windowStart) > time.Minute {
		m.attempts[peer] = &attemptWindow{windowStart: now, count: 1}
		return false
	}
	w.count++
	return w.count > m.maxAttemptsPerMin
}

func (m *Manager) withinClockSkew(ts time.Time) bool {
	now := m.clock.Now()
	return !ts.Before(now.Add(-clockSkewPast)) && !ts.After(now.Add(clockSkewFuture))
}

// InitiateAuth starts a handshake with peer by sending AUTH_REQUEST.
func (m *Manager) InitiateAuth(peer string, nonce string) error {
	m.mu.Lock()
	now := m.clock.Now()
	m.outstandingReq[peer] = outstandingRequest{sentAt: now}
	m.mu.Unlock()

	return m.send.Send(peer, AuthRequest{
		From:      m.self,
		To:        peer,
		PublicKey: m.identity.PublicKeyHex(),
		Algorithm: "ed25519",
		Nonce:     nonce,
		Timestamp: now,
	})
}

// HandleAuthRequest processes an inbound AUTH_REQUEST, issuing a challenge.
func (m *Manager) HandleAuthRequest(req AuthRequest) error {
	m.mu.Lock()
	if m.rateLimited(req.From) {
		m.mu.Unlock()
		m.emit(Event{Kind: "rate-limited", Peer: req.From})
		return nil // silent per spec.md section 7
	}
	if !m.withinClockSkew(req.Timestamp) {
		m.mu.Unlock()
		return m.fail(req.From, "timestamp-out-of-range")
	}
	if m.nonces.TestAndSet(seencache.Fingerprint(req.From, 0, []byte(req.Nonce), req.To)) {
		m.mu.Unlock()
		return m.fail(req.From, "nonce-replayed")
	}

	pub, err := m.resolvePublicKeyLocked(req.From, req.PublicKey)
	if err != nil {
		m.mu.Unlock()
		return m.fail(req.From, err.Error())
	}

	challenge := make([]byte, 32)
	if _, err := rand.Read(challenge); err != nil {
		m.mu.Unlock()
		return fmt.Errorf("auth: generate challenge: %w", err)
	}
	now := m.clock.Now()
	m.outstandingChal[req.From] = outstandingChallenge{peerPublicKey: pub, challenge: challenge, issuedAt: now}
	m.mu.Unlock()

	return m.send.Send(req.From, AuthChallenge{
		From:      m.self,
		To:        req.From,
		Challenge: challenge,
		Nonce:     req.Nonce,
		Timestamp: now,
	})
}

func (m *Manager) resolvePublicKeyLocked(peer, suppliedHex string) (ed25519.PublicKey, error) {
	if pub, ok := m.trusted[peer]; ok {
		return pub, nil // trusted table takes precedence over any supplied key
	}
	if m.policy != PolicyTrustOnFirstUse {
		return nil, errors.New("unknown-peer")
	}
	raw, err := hex.DecodeString(suppliedHex)
	if err != nil || len(raw) != ed25519.PublicKeySize {
		return nil, errors.New("malformed-public-key")
	}
	m.trusted[peer] = ed25519.PublicKey(raw)
	return m.trusted[peer], nil
}

// HandleAuthChallenge processes an inbound AUTH_CHALLENGE: the initiator
// must have an outstanding request to this peer, then signs and replies.
func (m *Manager) HandleAuthChallenge(chal AuthChallenge) error {
	m.mu.Lock()
	_, hasRequest := m.outstandingReq[chal.From]
	m.mu.Unlock()
	if !hasRequest {
		return m.fail(chal.From, "no-outstanding-request")
	}
	if !m.withinClockSkew(chal.Timestamp) {
		return m.fail(chal.From, "timestamp-out-of-range")
	}

	sig := m.identity.sign(chal.Challenge)
	return m.send.Send(chal.From, AuthResponse{
		From:      m.self,
		To:        chal.From,
		Challenge: chal.Challenge,
		Signature: sig,
		Nonce:     chal.Nonce,
		Timestamp: m.clock.Now(),
	})
}

// HandleAuthResponse verifies the signature against the outstanding
// challenge and the peer's bound public key, then installs a session.
func (m *Manager) HandleAuthResponse(resp AuthResponse) error {
	m.mu.Lock()
	oc, ok := m.outstandingChal[resp.From]
	if ok {
		delete(m.outstandingChal, resp.From)
	}
	m.mu.Unlock()

	if !ok {
		return m.fail(resp.From, "nonce-reused")
	}
	if m.clock.Now().Sub(oc.issuedAt) > challengeTimeout {
		return m.fail(resp.From, "challenge-expired")
	}
	if !withinBytes(oc.challenge, resp.Challenge) {
		return m.fail(resp.From, "challenge-mismatch")
	}
	if !ed25519.Verify(oc.peerPublicKey, resp.Challenge, resp.Signature) {
		return m.fail(resp.From, "signature-invalid")
	}

	m.mu.Lock()
	m.sessions[resp.From] = session{state: "authenticated", issuedAt: m.clock.Now()}
	m.mu.Unlock()

	m.emit(Event{Kind: "auth-success", Peer: resp.From})
	return m.send.Send(resp.From, AuthSuccess{From: m.self, To: resp.From})
}

func withinBytes(a, b []byte) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}

func (m *Manager) fail(peer, reason string) error {
	m.emit(Event{Kind: "auth-failure", Peer: peer, Info: reason})
	return m.send.Send(peer, AuthFailure{From: m.self, To: peer, Reason: reason})
}

func (m *Manager) emit(ev Event) {
	select {
	case m.events <- ev:
	default:
	}
}
