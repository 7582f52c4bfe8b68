package monetization

import (
	"context"
	"sync"

	goerrors "github.com/goliatone/go-errors"

	"github.com/interledger/web-monetization-go/core"
)

// PayResult aggregates what actually moved across all sessions of a one-time
// payment.
type PayResult struct {
	SentAmount  uint64
	DebitAmount uint64
}

// Pay distributes amount evenly across the tab's currently payable sessions
// and executes one outgoing payment per session concurrently, polling each
// until it settles. The split is a plain division by session count, not the
// minimum-aware distribution in package split: sessions here are already
// filtered to payable, with known minimums.
//
// When nothing was sent at all the failure is classified: a token allowed to
// pay but not to read outgoing payments is a soft success with zero totals,
// an out-of-balance wallet is fatal and typed, an unsettled poll is fatal and
// typed, anything else is a generic payment failure.
func (m *PaymentManager) Pay(ctx context.Context, amount uint64) (PayResult, error) {
	startedAt := m.deps.Now()
	result, err := m.pay(ctx, amount)

	status := "success"
	if err != nil {
		status = "failure"
	}
	m.deps.Metrics.IncCounter(ctx, "monetization.one_time_pay.total", 1, map[string]string{
		"status": status,
	})
	m.deps.Metrics.ObserveHistogram(ctx, "monetization.one_time_pay.duration_ms",
		float64(m.deps.Now().Sub(startedAt).Milliseconds()), map[string]string{
			"status": status,
		})
	return result, err
}

func (m *PaymentManager) pay(ctx context.Context, amount uint64) (PayResult, error) {
	if amount == 0 {
		return PayResult{}, goerrors.New("monetization: payment amount must be positive", goerrors.CategoryValidation)
	}
	sessions := m.PayableSessions()
	if len(sessions) == 0 {
		return PayResult{}, goerrors.New("monetization: no payable sessions", goerrors.CategoryConflict).
			WithTextCode(core.ErrorPaymentFailed)
	}

	token, ok := m.deps.Grants.ActiveToken()
	if !ok {
		return PayResult{}, goerrors.New("monetization: no active grant for payment", goerrors.CategoryConflict).
			WithTextCode(core.ErrorNoActiveGrant)
	}

	perSession := amount / uint64(len(sessions))
	if perSession == 0 {
		return PayResult{}, goerrors.New("monetization: amount too small to split", goerrors.CategoryValidation)
	}

	var (
		wg       sync.WaitGroup
		mu       sync.Mutex
		total    PayResult
		failures []error
	)
	for _, session := range sessions {
		wg.Add(1)
		go func(session *PaymentSession) {
			defer wg.Done()
			sent, debit, err := m.paySession(ctx, session, token.Value, perSession)
			mu.Lock()
			defer mu.Unlock()
			if err != nil {
				failures = append(failures, err)
				return
			}
			total.SentAmount += sent
			total.DebitAmount += debit
		}(session)
	}
	wg.Wait()

	if total.SentAmount > 0 {
		return total, nil
	}
	return total, classifyZeroTotal(failures)
}

// paySession sends one slice of a one-time payment and polls the outgoing
// payment until it reports sent funds or fails.
func (m *PaymentManager) paySession(ctx context.Context, session *PaymentSession, tokenValue string, amount uint64) (uint64, uint64, error) {
	outgoing, err := session.sendPayment(ctx, tokenValue, amount)
	if err != nil {
		return 0, 0, err
	}

	settled, err := m.pollOutgoingPayment(ctx, outgoing.ID, tokenValue)
	if err != nil {
		return 0, 0, err
	}
	sent, err := settled.SentAmount.Uint64()
	if err != nil {
		return 0, 0, err
	}
	debit, err := settled.DebitAmount.Uint64()
	if err != nil {
		return 0, 0, err
	}
	return sent, debit, nil
}

// pollOutgoingPayment re-reads an outgoing payment on the configured cadence
// until it settles, up to the attempt bound.
func (m *PaymentManager) pollOutgoingPayment(ctx context.Context, paymentID, tokenValue string) (core.OutgoingPayment, error) {
	cfg := m.deps.Config.Polling
	if err := waitTick(ctx, cfg.InitialDelay); err != nil {
		return core.OutgoingPayment{}, err
	}

	for attempt := 0; attempt < cfg.MaxAttempts; attempt++ {
		if attempt > 0 {
			if err := waitTick(ctx, cfg.Interval); err != nil {
				return core.OutgoingPayment{}, err
			}
		}
		payment, err := m.deps.Wallet.GetOutgoingPayment(ctx, paymentID, tokenValue)
		if err != nil {
			return core.OutgoingPayment{}, err
		}
		if payment.Failed {
			return core.OutgoingPayment{}, goerrors.New("monetization: outgoing payment failed", goerrors.CategoryExternal).
				WithTextCode(core.ErrorPaymentFailed).
				WithMetadata(map[string]any{"payment_id": paymentID})
		}
		if sent, err := payment.SentAmount.Uint64(); err == nil && sent > 0 {
			return payment, nil
		}
	}

	return core.OutgoingPayment{}, goerrors.New("monetization: outgoing payment did not settle within the polling budget", goerrors.CategoryOperation).
		WithTextCode(core.ErrorPollingIncomplete).
		WithMetadata(map[string]any{"payment_id": paymentID, "attempts": cfg.MaxAttempts})
}

// classifyZeroTotal turns a fully failed one-time payment into its typed
// outcome.
func classifyZeroTotal(failures []error) error {
	if len(failures) == 0 {
		return goerrors.New("monetization: nothing was sent", goerrors.CategoryExternal).
			WithTextCode(core.ErrorPaymentFailed)
	}
	for _, err := range failures {
		// The grant paid but is not allowed to read the outgoing payment
		// back: treat as success with unknown totals.
		if core.IsTokenInsufficient(err) {
			return nil
		}
	}
	for _, err := range failures {
		if core.IsOutOfBalance(err) {
			return goerrors.Wrap(err, goerrors.CategoryConflict, "monetization: wallet is out of balance").
				WithTextCode(core.ErrorOutOfBalance)
		}
	}
	for _, err := range failures {
		if hasPollingTextCode(err) {
			return err
		}
	}
	return goerrors.Wrap(failures[0], goerrors.CategoryExternal, "monetization: one-time payment failed").
		WithTextCode(core.ErrorPaymentFailed)
}

func hasPollingTextCode(err error) bool {
	var richErr *goerrors.Error
	if !goerrors.As(err, &richErr) {
		return false
	}
	return richErr.TextCode == core.ErrorPollingIncomplete
}
