package monetization

import (
	"context"
	"sort"
	"sync"

	goerrors "github.com/goliatone/go-errors"

	"github.com/interledger/web-monetization-go/core"
)

// PaymentManager orchestrates the payment sessions of one browser tab,
// grouped into per-frame streams. Frame 0 (the top frame) is always the first
// stream created.
type PaymentManager struct {
	tabID int
	deps  Deps

	mu          sync.Mutex
	streams     map[int]*PaymentStream
	frameOrder  []int
	ratePerHour uint64
}

func newPaymentManager(tabID int, deps Deps) *PaymentManager {
	return &PaymentManager{
		tabID:   tabID,
		deps:    deps,
		streams: make(map[int]*PaymentStream),
	}
}

func (m *PaymentManager) TabID() int { return m.tabID }

// SetRate records the hourly spending rate used to size per-tick payments.
func (m *PaymentManager) SetRate(ratePerHour uint64) {
	m.mu.Lock()
	m.ratePerHour = ratePerHour
	m.mu.Unlock()
}

func (m *PaymentManager) Rate() uint64 {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.ratePerHour
}

// ensureStream registers the frame's stream, creating the top frame's stream
// first when a subframe shows up before it.
func (m *PaymentManager) ensureStream(frameID int) *PaymentStream {
	if frameID != 0 {
		if _, ok := m.streams[0]; !ok {
			m.streams[0] = newPaymentStream(0)
			m.frameOrder = append(m.frameOrder, 0)
		}
	}
	stream, ok := m.streams[frameID]
	if !ok {
		stream = newPaymentStream(frameID)
		m.streams[frameID] = stream
		m.frameOrder = append(m.frameOrder, frameID)
	}
	return stream
}

// AddSession registers a monetized link's session. The call is idempotent: an
// existing session is re-enabled when isActive is set and returned as is
// otherwise. New sessions probe the receiver's minimum send amount; a failed
// probe is logged and leaves the session pending, it never fails the call.
func (m *PaymentManager) AddSession(ctx context.Context, frameID int, sessionID string, receiver core.WalletAddress, isActive bool) (*PaymentSession, error) {
	if sessionID == "" {
		return nil, goerrors.New("monetization: session id is required", goerrors.CategoryValidation)
	}
	if err := receiver.Validate(); err != nil {
		return nil, goerrors.Wrap(err, goerrors.CategoryValidation, "monetization: receiver wallet is invalid")
	}

	m.mu.Lock()
	stream := m.ensureStream(frameID)
	if existing, ok := stream.session(sessionID); ok {
		m.mu.Unlock()
		if isActive {
			existing.Enable()
		}
		return existing, nil
	}
	session := newPaymentSession(m, frameID, sessionID, receiver)
	stream.add(session)
	m.mu.Unlock()

	if min, err := m.deps.Wallet.ProbeMinSendAmount(ctx, m.deps.Sender, receiver); err != nil {
		m.deps.Logger.Info("min send amount probe failed, session stays pending",
			"tab_id", m.tabID,
			"frame_id", frameID,
			"session_id", sessionID,
			"error", err.Error(),
		)
	} else {
		session.setMinSendAmount(min)
	}
	return session, nil
}

// RetryMinSendAmount re-probes a pending session's minimum. No-op for
// sessions that already know theirs.
func (m *PaymentManager) RetryMinSendAmount(ctx context.Context, frameID int, sessionID string) error {
	session, ok := m.lookup(frameID, sessionID)
	if !ok || session.MinSendAmountKnown() {
		return nil
	}
	min, err := m.deps.Wallet.ProbeMinSendAmount(ctx, m.deps.Sender, session.Receiver())
	if err != nil {
		return goerrors.Wrap(err, goerrors.CategoryExternal, "monetization: min send amount probe failed")
	}
	session.setMinSendAmount(min)
	return nil
}

// MarkSessionInvalid sinks a pending session whose discovery permanently
// failed. Terminal.
func (m *PaymentManager) MarkSessionInvalid(frameID int, sessionID string) {
	if session, ok := m.lookup(frameID, sessionID); ok {
		session.markInvalid()
	}
}

// RemoveSession stops a session and drops it from its stream. No-op if
// absent; a later AddSession with the same id starts from scratch.
func (m *PaymentManager) RemoveSession(frameID int, sessionID string) {
	m.mu.Lock()
	stream, ok := m.streams[frameID]
	var session *PaymentSession
	if ok {
		session, _ = stream.session(sessionID)
		stream.remove(sessionID)
	}
	m.mu.Unlock()
	if session != nil {
		session.remove()
	}
}

// StopSession halts a session's continuous loop without unregistering it.
func (m *PaymentManager) StopSession(frameID int, sessionID string) {
	if session, ok := m.lookup(frameID, sessionID); ok {
		session.Stop()
	}
}

// DisableSession excludes a session from payment until re-enabled.
func (m *PaymentManager) DisableSession(frameID int, sessionID string) {
	if session, ok := m.lookup(frameID, sessionID); ok {
		session.Disable()
	}
}

func (m *PaymentManager) lookup(frameID int, sessionID string) (*PaymentSession, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	stream, ok := m.streams[frameID]
	if !ok {
		return nil, false
	}
	return stream.session(sessionID)
}

// PayableSessions lists the sessions currently eligible for payment: enabled,
// not invalid, minimum known. Frame 0 first, then frames in creation order,
// sessions in registration order within each frame.
func (m *PaymentManager) PayableSessions() []*PaymentSession {
	m.mu.Lock()
	defer m.mu.Unlock()

	out := make([]*PaymentSession, 0)
	for _, frameID := range m.frameOrder {
		for _, session := range m.streams[frameID].ordered() {
			if session.Payable() {
				out = append(out, session)
			}
		}
	}
	return out
}

// Sessions lists every registered session, payable or not.
func (m *PaymentManager) Sessions() []*PaymentSession {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]*PaymentSession, 0)
	for _, frameID := range m.frameOrder {
		out = append(out, m.streams[frameID].ordered()...)
	}
	return out
}

// stopAll halts every session; used when the owning tab closes.
func (m *PaymentManager) stopAll() {
	for _, session := range m.Sessions() {
		session.Stop()
	}
}

// Frames reports the frame ids with a stream, sorted ascending.
func (m *PaymentManager) Frames() []int {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := append([]int(nil), m.frameOrder...)
	sort.Ints(out)
	return out
}
