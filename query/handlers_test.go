package query

import (
	"context"
	"testing"

	goerrors "github.com/goliatone/go-errors"

	"github.com/interledger/web-monetization-go/core"
	"github.com/interledger/web-monetization-go/monetization"
)

type stubGrantReader struct {
	snapshots []core.GrantSnapshot
}

func (s *stubGrantReader) SnapshotGrants() []core.GrantSnapshot {
	return s.snapshots
}

func TestGetGrantsQuery_ReturnsSnapshots(t *testing.T) {
	reader := &stubGrantReader{
		snapshots: []core.GrantSnapshot{
			{Type: core.GrantTypeRecurring, Present: true, Usable: true, Active: true},
			{Type: core.GrantTypeOneTime},
		},
	}

	got, err := NewGetGrantsQuery(reader).Query(context.Background(), GetGrantsMessage{})
	if err != nil {
		t.Fatalf("query grants: %v", err)
	}
	if len(got) != 2 {
		t.Fatalf("expected both slots, got %d", len(got))
	}
	if got[0].Type != core.GrantTypeRecurring || !got[0].Active {
		t.Fatalf("expected active recurring slot first, got %+v", got[0])
	}
}

func TestGetGrantsQuery_RequiresReader(t *testing.T) {
	_, err := NewGetGrantsQuery(nil).Query(context.Background(), GetGrantsMessage{})
	if err == nil {
		t.Fatalf("expected dependency error")
	}
	var typed *goerrors.Error
	if !goerrors.As(err, &typed) || typed.TextCode != core.ErrorInternal {
		t.Fatalf("expected internal error envelope, got %v", err)
	}
}

func TestListSessionsQuery_UnknownTabReturnsEmptyView(t *testing.T) {
	registry := newQueryTestRegistry(t)

	view, err := NewListSessionsQuery(registry).Query(context.Background(), ListSessionsMessage{TabID: 404})
	if err != nil {
		t.Fatalf("query sessions: %v", err)
	}
	if view.TabID != 404 || len(view.Sessions) != 0 || view.RatePerHour != 0 {
		t.Fatalf("expected empty view for unknown tab, got %+v", view)
	}
}

func TestListSessionsQuery_ProjectsSessions(t *testing.T) {
	ctx := context.Background()
	registry := newQueryTestRegistry(t)

	manager := registry.Manager(3)
	manager.SetRate(3600)
	if _, err := manager.AddSession(ctx, 0, "session-a", receiverWallet("a"), true); err != nil {
		t.Fatalf("add session a: %v", err)
	}
	if _, err := manager.AddSession(ctx, 0, "session-b", receiverWallet("b"), false); err != nil {
		t.Fatalf("add session b: %v", err)
	}

	view, err := NewListSessionsQuery(registry).Query(ctx, ListSessionsMessage{TabID: 3})
	if err != nil {
		t.Fatalf("query sessions: %v", err)
	}
	if view.RatePerHour != 3600 {
		t.Fatalf("expected rate 3600, got %d", view.RatePerHour)
	}
	if len(view.Sessions) != 2 {
		t.Fatalf("expected two sessions, got %d", len(view.Sessions))
	}
	if view.Sessions[0].ID != "session-a" || !view.Sessions[0].Payable {
		t.Fatalf("expected payable session-a first, got %+v", view.Sessions[0])
	}
	if view.Sessions[1].ID != "session-b" || view.Sessions[1].Payable {
		t.Fatalf("expected disabled session-b, got %+v", view.Sessions[1])
	}
}

func TestListSessionsQuery_ValidatesMessage(t *testing.T) {
	if err := (ListSessionsMessage{TabID: -1}).Validate(); err == nil {
		t.Fatalf("expected negative tab id to fail validation")
	}
	if err := (ListSessionsMessage{TabID: 0}).Validate(); err != nil {
		t.Fatalf("expected tab id 0 to validate, got %v", err)
	}
}

func newQueryTestRegistry(t *testing.T) *monetization.Registry {
	t.Helper()
	registry, err := monetization.NewRegistry(monetization.Deps{
		Wallet: queryStubWallet{},
		Grants: queryStubGrants{},
		Sender: core.WalletAddress{
			ID:         "https://wallet.example.com/sender",
			AuthServer: "https://auth.example.com",
		},
	})
	if err != nil {
		t.Fatalf("new registry: %v", err)
	}
	return registry
}

func receiverWallet(name string) core.WalletAddress {
	return core.WalletAddress{
		ID:         "https://wallet.example.com/" + name,
		AuthServer: "https://auth.example.com",
	}
}

type queryStubWallet struct{}

func (queryStubWallet) RequestGrant(context.Context, core.GrantRequest) (core.PendingGrant, error) {
	return core.PendingGrant{}, nil
}

func (queryStubWallet) ContinueGrant(context.Context, core.Continuation, string) (core.GrantDetails, error) {
	return core.GrantDetails{}, nil
}

func (queryStubWallet) CancelGrant(context.Context, core.Continuation) error {
	return nil
}

func (queryStubWallet) RotateToken(_ context.Context, token core.AccessToken) (core.AccessToken, error) {
	return token, nil
}

func (queryStubWallet) CreateIncomingPayment(context.Context, core.CreateIncomingPaymentRequest) (core.IncomingPayment, error) {
	return core.IncomingPayment{}, nil
}

func (queryStubWallet) CreateQuote(context.Context, core.CreateQuoteRequest) (core.Quote, error) {
	return core.Quote{}, nil
}

func (queryStubWallet) CreateOutgoingPayment(context.Context, core.CreateOutgoingPaymentRequest) (core.OutgoingPayment, error) {
	return core.OutgoingPayment{}, nil
}

func (queryStubWallet) GetOutgoingPayment(context.Context, string, string) (core.OutgoingPayment, error) {
	return core.OutgoingPayment{}, nil
}

func (queryStubWallet) ProbeMinSendAmount(context.Context, core.WalletAddress, core.WalletAddress) (uint64, error) {
	return 1, nil
}

type queryStubGrants struct{}

func (queryStubGrants) ActiveToken() (core.AccessToken, bool) {
	return core.AccessToken{Value: "active-token"}, true
}

func (queryStubGrants) RefreshActiveToken(_ context.Context, _ string) (core.AccessToken, error) {
	return core.AccessToken{Value: "active-token"}, nil
}
