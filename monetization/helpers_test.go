package monetization

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/interledger/web-monetization-go/core"
)

type fakeWallet struct {
	mu sync.Mutex

	probeFn    func(receiver core.WalletAddress) (uint64, error)
	incomingFn func(req core.CreateIncomingPaymentRequest) (core.IncomingPayment, error)
	quoteFn    func(req core.CreateQuoteRequest) (core.Quote, error)
	outgoingFn func(req core.CreateOutgoingPaymentRequest) (core.OutgoingPayment, error)
	getFn      func(id string) (core.OutgoingPayment, error)

	probeCalls    int
	incomingCalls int
	quoteRequests []core.CreateQuoteRequest
	outgoingCalls int
	getCalls      int
}

func (f *fakeWallet) RequestGrant(context.Context, core.GrantRequest) (core.PendingGrant, error) {
	return core.PendingGrant{}, fmt.Errorf("fake wallet: grants not supported here")
}

func (f *fakeWallet) ContinueGrant(context.Context, core.Continuation, string) (core.GrantDetails, error) {
	return core.GrantDetails{}, fmt.Errorf("fake wallet: grants not supported here")
}

func (f *fakeWallet) CancelGrant(context.Context, core.Continuation) error {
	return fmt.Errorf("fake wallet: grants not supported here")
}

func (f *fakeWallet) RotateToken(context.Context, core.AccessToken) (core.AccessToken, error) {
	return core.AccessToken{}, fmt.Errorf("fake wallet: grants not supported here")
}

func (f *fakeWallet) CreateIncomingPayment(_ context.Context, req core.CreateIncomingPaymentRequest) (core.IncomingPayment, error) {
	f.mu.Lock()
	f.incomingCalls++
	fn := f.incomingFn
	calls := f.incomingCalls
	f.mu.Unlock()
	if fn != nil {
		return fn(req)
	}
	return core.IncomingPayment{ID: fmt.Sprintf("incoming-%d", calls)}, nil
}

func (f *fakeWallet) CreateQuote(_ context.Context, req core.CreateQuoteRequest) (core.Quote, error) {
	f.mu.Lock()
	f.quoteRequests = append(f.quoteRequests, req)
	fn := f.quoteFn
	count := len(f.quoteRequests)
	f.mu.Unlock()
	if fn != nil {
		return fn(req)
	}
	return core.Quote{ID: fmt.Sprintf("quote-%d", count), DebitAmount: req.DebitAmount}, nil
}

func (f *fakeWallet) CreateOutgoingPayment(_ context.Context, req core.CreateOutgoingPaymentRequest) (core.OutgoingPayment, error) {
	f.mu.Lock()
	f.outgoingCalls++
	fn := f.outgoingFn
	calls := f.outgoingCalls
	f.mu.Unlock()
	if fn != nil {
		return fn(req)
	}
	return core.OutgoingPayment{
		ID:          fmt.Sprintf("outgoing-%d", calls),
		DebitAmount: req.DebitAmount,
	}, nil
}

func (f *fakeWallet) GetOutgoingPayment(_ context.Context, id string, _ string) (core.OutgoingPayment, error) {
	f.mu.Lock()
	f.getCalls++
	fn := f.getFn
	f.mu.Unlock()
	if fn != nil {
		return fn(id)
	}
	return core.OutgoingPayment{
		ID:          id,
		SentAmount:  core.WalletAmount{Value: "1"},
		DebitAmount: core.WalletAmount{Value: "1"},
	}, nil
}

func (f *fakeWallet) ProbeMinSendAmount(_ context.Context, _, receiver core.WalletAddress) (uint64, error) {
	f.mu.Lock()
	f.probeCalls++
	fn := f.probeFn
	f.mu.Unlock()
	if fn != nil {
		return fn(receiver)
	}
	return 1, nil
}

func (f *fakeWallet) quotes() []core.CreateQuoteRequest {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]core.CreateQuoteRequest(nil), f.quoteRequests...)
}

type fakeGrants struct {
	mu           sync.Mutex
	token        core.AccessToken
	active       bool
	refreshed    core.AccessToken
	refreshErr   error
	refreshCalls int
}

func (g *fakeGrants) ActiveToken() (core.AccessToken, bool) {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.token, g.active
}

func (g *fakeGrants) RefreshActiveToken(_ context.Context, _ string) (core.AccessToken, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.refreshCalls++
	if g.refreshErr != nil {
		return core.AccessToken{}, g.refreshErr
	}
	g.token = g.refreshed
	return g.refreshed, nil
}

func (g *fakeGrants) refreshes() int {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.refreshCalls
}

type capturedEvents struct {
	mu     sync.Mutex
	events []MonetizationEvent
}

func (c *capturedEvents) PublishMonetizationEvent(_ context.Context, event MonetizationEvent) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.events = append(c.events, event)
	return nil
}

func (c *capturedEvents) all() []MonetizationEvent {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]MonetizationEvent(nil), c.events...)
}

func senderWallet() core.WalletAddress {
	return core.WalletAddress{
		ID:         "https://ilp.example.com/sender",
		AuthServer: "https://auth.example.com",
		AssetCode:  "USD",
		AssetScale: 2,
	}
}

func receiverWallet(name string) core.WalletAddress {
	return core.WalletAddress{
		ID:         "https://ilp.example.com/" + name,
		AuthServer: "https://auth.example.com",
		AssetCode:  "USD",
		AssetScale: 2,
	}
}

func testConfig() core.Config {
	cfg := core.DefaultConfig()
	cfg.PaymentTickInterval = 5 * time.Millisecond
	cfg.Polling = core.PollingConfig{
		MaxAttempts:  3,
		Interval:     time.Millisecond,
		InitialDelay: 0,
	}
	return cfg
}

func testDeps(wallet *fakeWallet, grants *fakeGrants, events EventPublisher) Deps {
	return Deps{
		Wallet: wallet,
		Grants: grants,
		Sender: senderWallet(),
		Events: events,
		Config: testConfig(),
	}
}

func newTestRegistry(t *testing.T, wallet *fakeWallet, grants *fakeGrants, events EventPublisher) *Registry {
	t.Helper()
	registry, err := NewRegistry(testDeps(wallet, grants, events))
	if err != nil {
		t.Fatalf("new registry: %v", err)
	}
	return registry
}

func activeGrants() *fakeGrants {
	return &fakeGrants{
		token:     core.AccessToken{Value: "active-token"},
		active:    true,
		refreshed: core.AccessToken{Value: "refreshed-token"},
	}
}
