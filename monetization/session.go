package monetization

import (
	"context"
	"sync"
	"time"

	goerrors "github.com/goliatone/go-errors"

	"github.com/interledger/web-monetization-go/core"
)

// PaymentSession pays one monetized link. It starts pending until the
// receiver's minimum send amount is discovered, then moves between usable and
// disabled; removal and a permanently failed discovery are terminal.
type PaymentSession struct {
	manager  *PaymentManager
	frameID  int
	id       string
	receiver core.WalletAddress

	mu            sync.Mutex
	disabled      bool
	invalid       bool
	removed       bool
	stopRequested bool
	running       bool
	minSendAmount uint64
	minKnown      bool
	incoming      *core.IncomingPayment
}

func newPaymentSession(manager *PaymentManager, frameID int, sessionID string, receiver core.WalletAddress) *PaymentSession {
	return &PaymentSession{
		manager:  manager,
		frameID:  frameID,
		id:       sessionID,
		receiver: receiver,
	}
}

func (s *PaymentSession) ID() string { return s.id }

func (s *PaymentSession) FrameID() int { return s.frameID }

func (s *PaymentSession) Receiver() core.WalletAddress { return s.receiver }

// MinSendAmount returns the discovered minimum and whether discovery has
// happened yet.
func (s *PaymentSession) MinSendAmount() (uint64, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.minSendAmount, s.minKnown
}

func (s *PaymentSession) MinSendAmountKnown() bool {
	_, known := s.MinSendAmount()
	return known
}

func (s *PaymentSession) setMinSendAmount(min uint64) {
	s.mu.Lock()
	s.minSendAmount = min
	s.minKnown = true
	s.mu.Unlock()
}

func (s *PaymentSession) markInvalid() {
	s.mu.Lock()
	s.invalid = true
	s.mu.Unlock()
}

func (s *PaymentSession) remove() {
	s.mu.Lock()
	s.removed = true
	s.stopRequested = true
	s.mu.Unlock()
}

// Enable clears the disabled flag and lets a stopped loop be restarted.
func (s *PaymentSession) Enable() {
	s.mu.Lock()
	s.disabled = false
	s.stopRequested = false
	s.mu.Unlock()
}

// Disable excludes the session from payment until Enable. The continuous
// loop, if running, idles rather than exits.
func (s *PaymentSession) Disable() {
	s.mu.Lock()
	s.disabled = true
	s.mu.Unlock()
}

// Stop requests cooperative termination of the continuous loop; the request
// is honored at the next loop boundary, so an in-flight payment completes.
func (s *PaymentSession) Stop() {
	s.mu.Lock()
	s.stopRequested = true
	s.mu.Unlock()
}

// Payable reports whether the session contributes to distribution and
// payment: enabled, not invalid, minimum known.
func (s *PaymentSession) Payable() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return !s.disabled && !s.invalid && !s.removed && s.minKnown
}

func (s *PaymentSession) halted() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.stopRequested || s.removed || s.invalid
}

// Run drives the continuous payment loop: each tick creates (or reuses) an
// incoming payment at the receiver, sends a rate-sized outgoing payment and
// publishes a monetization event. A token rejected as expired mid-tick is
// refreshed through the grant service and the tick retried once.
// Unrecoverable errors stop the loop and are returned; Stop and ctx
// cancellation end it quietly.
func (s *PaymentSession) Run(ctx context.Context) error {
	s.mu.Lock()
	if s.running {
		s.mu.Unlock()
		return goerrors.New("monetization: session loop is already running", goerrors.CategoryConflict)
	}
	s.running = true
	s.mu.Unlock()
	defer func() {
		s.mu.Lock()
		s.running = false
		s.mu.Unlock()
	}()

	tick := s.manager.deps.Config.PaymentTickInterval
	for {
		if ctx.Err() != nil || s.halted() {
			return nil
		}
		if s.Payable() {
			if err := s.payTick(ctx); err != nil {
				s.manager.deps.Logger.Error("payment loop stopped",
					"tab_id", s.manager.tabID,
					"frame_id", s.frameID,
					"session_id", s.id,
					"error", err.Error(),
				)
				return err
			}
		}
		if err := waitTick(ctx, tick); err != nil {
			return nil
		}
	}
}

func (s *PaymentSession) payTick(ctx context.Context) error {
	amount := s.tickAmount()
	if amount == 0 {
		return nil
	}

	retried := false
	for {
		token, ok := s.manager.deps.Grants.ActiveToken()
		if !ok {
			return goerrors.New("monetization: no active grant for payment", goerrors.CategoryConflict).
				WithTextCode(core.ErrorNoActiveGrant)
		}
		outgoing, err := s.sendPayment(ctx, token.Value, amount)
		if err == nil {
			s.publishEvent(ctx, outgoing, amount)
			return nil
		}
		if core.IsTokenExpired(err) && !retried {
			retried = true
			if _, refreshErr := s.manager.deps.Grants.RefreshActiveToken(ctx, token.Value); refreshErr != nil {
				return refreshErr
			}
			continue
		}
		return err
	}
}

// sendPayment runs one incoming payment > quote > outgoing payment round
// against the wallet.
func (s *PaymentSession) sendPayment(ctx context.Context, tokenValue string, amount uint64) (core.OutgoingPayment, error) {
	incoming, err := s.ensureIncomingPayment(ctx, tokenValue)
	if err != nil {
		return core.OutgoingPayment{}, err
	}

	debit := s.walletAmount(amount)
	quote, err := s.manager.deps.Wallet.CreateQuote(ctx, core.CreateQuoteRequest{
		Sender:      s.manager.deps.Sender,
		Receiver:    incoming.ID,
		AccessToken: tokenValue,
		DebitAmount: debit,
	})
	if err != nil {
		return core.OutgoingPayment{}, err
	}

	return s.manager.deps.Wallet.CreateOutgoingPayment(ctx, core.CreateOutgoingPaymentRequest{
		Sender:          s.manager.deps.Sender,
		AccessToken:     tokenValue,
		IncomingPayment: incoming.ID,
		QuoteID:         quote.ID,
		DebitAmount:     quote.DebitAmount,
	})
}

// ensureIncomingPayment reuses the session's incoming payment while it is
// still open, creating a fresh one once it completed or expired.
func (s *PaymentSession) ensureIncomingPayment(ctx context.Context, tokenValue string) (core.IncomingPayment, error) {
	now := s.manager.deps.Now()

	s.mu.Lock()
	cached := s.incoming
	s.mu.Unlock()
	if cached != nil && !cached.Completed &&
		(cached.ExpiresAt == nil || cached.ExpiresAt.After(now)) {
		return *cached, nil
	}

	created, err := s.manager.deps.Wallet.CreateIncomingPayment(ctx, core.CreateIncomingPaymentRequest{
		Receiver:    s.receiver,
		AccessToken: tokenValue,
	})
	if err != nil {
		return core.IncomingPayment{}, err
	}

	s.mu.Lock()
	s.incoming = &created
	s.mu.Unlock()
	return created, nil
}

func (s *PaymentSession) publishEvent(ctx context.Context, outgoing core.OutgoingPayment, requested uint64) {
	amount := outgoing.DebitAmount
	if amount.Value == "" {
		amount = s.walletAmount(requested)
	}
	event := MonetizationEvent{
		TabID:     s.manager.tabID,
		FrameID:   s.frameID,
		SessionID: s.id,
		Receiver:  s.receiver.ID,
		Amount:    amount,
	}
	s.mu.Lock()
	if s.incoming != nil {
		event.IncomingPayment = s.incoming.ID
	}
	s.mu.Unlock()

	if err := s.manager.deps.Events.PublishMonetizationEvent(ctx, event); err != nil {
		s.manager.deps.Logger.Error("monetization event publish failed",
			"session_id", s.id,
			"error", err.Error(),
		)
	}
}

// tickAmount sizes one tick's payment from the tab's hourly rate, clamped up
// to the session minimum. Zero while no rate is set.
func (s *PaymentSession) tickAmount() uint64 {
	rate := s.manager.Rate()
	if rate == 0 {
		return 0
	}
	tick := s.manager.deps.Config.PaymentTickInterval
	amount := rate * uint64(tick) / uint64(time.Hour)
	if min, known := s.MinSendAmount(); known && amount < min {
		amount = min
	}
	return amount
}

func (s *PaymentSession) walletAmount(value uint64) core.WalletAmount {
	return core.WalletAmount{
		Value:      core.FormatAmountValue(value),
		AssetCode:  s.manager.deps.Sender.AssetCode,
		AssetScale: s.manager.deps.Sender.AssetScale,
	}
}

func waitTick(ctx context.Context, delay time.Duration) error {
	if delay <= 0 {
		return nil
	}
	timer := time.NewTimer(delay)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
