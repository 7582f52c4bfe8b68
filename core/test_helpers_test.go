package core

import (
	"context"
	"crypto/sha256"
	"encoding/base64"
	"fmt"
	"net/url"
	"strings"
	"sync"
	"testing"
)

type fakeWalletClient struct {
	mu sync.Mutex

	requestGrantFn func(ctx context.Context, req GrantRequest) (PendingGrant, error)
	continueFn     func(ctx context.Context, continuation Continuation, interactRef string) (GrantDetails, error)
	cancelFn       func(ctx context.Context, continuation Continuation) error
	rotateFn       func(ctx context.Context, token AccessToken) (AccessToken, error)

	grantRequests []GrantRequest
	rotateCalls   int
	cancelCalls   int
}

func (f *fakeWalletClient) RequestGrant(ctx context.Context, req GrantRequest) (PendingGrant, error) {
	f.mu.Lock()
	f.grantRequests = append(f.grantRequests, req)
	f.mu.Unlock()
	if f.requestGrantFn == nil {
		return PendingGrant{}, fmt.Errorf("fake wallet: request grant not configured")
	}
	return f.requestGrantFn(ctx, req)
}

func (f *fakeWalletClient) ContinueGrant(ctx context.Context, continuation Continuation, interactRef string) (GrantDetails, error) {
	if f.continueFn == nil {
		return GrantDetails{}, fmt.Errorf("fake wallet: continue grant not configured")
	}
	return f.continueFn(ctx, continuation, interactRef)
}

func (f *fakeWalletClient) CancelGrant(ctx context.Context, continuation Continuation) error {
	f.mu.Lock()
	f.cancelCalls++
	f.mu.Unlock()
	if f.cancelFn == nil {
		return nil
	}
	return f.cancelFn(ctx, continuation)
}

func (f *fakeWalletClient) RotateToken(ctx context.Context, token AccessToken) (AccessToken, error) {
	f.mu.Lock()
	f.rotateCalls++
	f.mu.Unlock()
	if f.rotateFn == nil {
		return AccessToken{}, fmt.Errorf("fake wallet: rotate token not configured")
	}
	return f.rotateFn(ctx, token)
}

func (f *fakeWalletClient) CreateIncomingPayment(context.Context, CreateIncomingPaymentRequest) (IncomingPayment, error) {
	return IncomingPayment{}, fmt.Errorf("fake wallet: incoming payments not configured")
}

func (f *fakeWalletClient) CreateQuote(context.Context, CreateQuoteRequest) (Quote, error) {
	return Quote{}, fmt.Errorf("fake wallet: quotes not configured")
}

func (f *fakeWalletClient) CreateOutgoingPayment(context.Context, CreateOutgoingPaymentRequest) (OutgoingPayment, error) {
	return OutgoingPayment{}, fmt.Errorf("fake wallet: outgoing payments not configured")
}

func (f *fakeWalletClient) GetOutgoingPayment(context.Context, string, string) (OutgoingPayment, error) {
	return OutgoingPayment{}, fmt.Errorf("fake wallet: outgoing payments not configured")
}

func (f *fakeWalletClient) ProbeMinSendAmount(context.Context, WalletAddress, WalletAddress) (uint64, error) {
	return 0, fmt.Errorf("fake wallet: min send amount probing not configured")
}

func (f *fakeWalletClient) rotations() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.rotateCalls
}

type tabUpdate struct {
	TabID int
	URL   string
}

type fakeTabController struct {
	mu sync.Mutex

	nextTabID int
	events    chan TabEvent
	onCreate  func(tabID int)

	created []string
	updates []tabUpdate
	removed []int
}

func newFakeTabController() *fakeTabController {
	return &fakeTabController{events: make(chan TabEvent, 16)}
}

func (f *fakeTabController) Create(_ context.Context, url string) (int, error) {
	f.mu.Lock()
	f.nextTabID++
	tabID := f.nextTabID
	f.created = append(f.created, url)
	onCreate := f.onCreate
	f.mu.Unlock()
	if onCreate != nil {
		onCreate(tabID)
	}
	return tabID, nil
}

func (f *fakeTabController) Update(_ context.Context, tabID int, url string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.updates = append(f.updates, tabUpdate{TabID: tabID, URL: url})
	return nil
}

func (f *fakeTabController) Remove(_ context.Context, tabID int) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.removed = append(f.removed, tabID)
	return nil
}

func (f *fakeTabController) Watch(context.Context, int) (<-chan TabEvent, func(), error) {
	return f.events, func() {}, nil
}

func (f *fakeTabController) emitNavigation(tabID int, rawURL string) {
	f.events <- TabEvent{TabID: tabID, Kind: TabEventNavigated, URL: rawURL}
}

func (f *fakeTabController) emitRemoved(tabID int) {
	f.events <- TabEvent{TabID: tabID, Kind: TabEventRemoved}
}

func (f *fakeTabController) lastUpdate(t *testing.T) tabUpdate {
	t.Helper()
	f.mu.Lock()
	defer f.mu.Unlock()
	if len(f.updates) == 0 {
		t.Fatalf("expected at least one tab update")
	}
	return f.updates[len(f.updates)-1]
}

func (f *fakeTabController) updateCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.updates)
}

type fakeKeyRegistrar struct {
	addErr   error
	retryErr error

	addCalls   int
	retryCalls int
}

func (f *fakeKeyRegistrar) AddKey(context.Context, AddKeyRequest) error {
	f.addCalls++
	return f.addErr
}

func (f *fakeKeyRegistrar) RetryAddKey(context.Context, AddKeyRequest) error {
	f.retryCalls++
	return f.retryErr
}

func testWalletAddress() WalletAddress {
	return WalletAddress{
		ID:             "https://ilp.example.com/alice",
		AuthServer:     "https://auth.example.com",
		ResourceServer: "https://ilp.example.com",
		AssetCode:      "USD",
		AssetScale:     2,
	}
}

func newTestService(t *testing.T, wallet *fakeWalletClient, tabs *fakeTabController, options ...Option) *Service {
	t.Helper()
	base := []Option{
		WithWalletClient(wallet),
		WithTabController(tabs),
	}
	svc, err := NewService(Config{}, append(base, options...)...)
	if err != nil {
		t.Fatalf("new service: %v", err)
	}
	return svc
}

// computeInteractionHash mirrors the GNAP interaction hash the authorization
// server produces, so fakes can hand back valid values.
func computeInteractionHash(t *testing.T, clientNonce, interactNonce, interactRef, authServer string) string {
	t.Helper()
	parsed, err := url.Parse(authServer)
	if err != nil {
		t.Fatalf("parse auth server: %v", err)
	}
	payload := strings.Join([]string{
		clientNonce,
		interactNonce,
		interactRef,
		parsed.Scheme + "://" + parsed.Host + "/",
	}, "\n")
	digest := sha256.Sum256([]byte(payload))
	return base64.StdEncoding.EncodeToString(digest[:])
}

func queryParam(t *testing.T, rawURL, key string) string {
	t.Helper()
	parsed, err := url.Parse(rawURL)
	if err != nil {
		t.Fatalf("parse url %q: %v", rawURL, err)
	}
	return parsed.Query().Get(key)
}
