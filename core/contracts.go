package core

import (
	"context"
	"encoding/json"
	"time"

	glog "github.com/goliatone/go-logger/glog"
)

// Storage persists grant slots, the hourly rate and connection flags. The
// hosting environment supplies the implementation; this module ships an
// in-memory one and a SQL-backed one under store/sql.
type Storage interface {
	Get(ctx context.Context, keys []string) (map[string]json.RawMessage, error)
	Set(ctx context.Context, values map[string]any) error
	Delete(ctx context.Context, keys []string) error
}

// GrantRequest asks a wallet's authorization server for an interactive
// spending grant.
type GrantRequest struct {
	Wallet      WalletAddress
	Amount      GrantAmount
	Recurring   bool
	ClientNonce string
}

// GrantDetails is a finalized grant as returned by the continuation exchange.
type GrantDetails struct {
	AccessToken  AccessToken
	Continuation Continuation
}

// IncomingPayment is money arriving at a receiver's wallet address.
type IncomingPayment struct {
	ID             string
	WalletAddress  string
	ReceivedAmount WalletAmount
	ExpiresAt      *time.Time
	Completed      bool
}

// Quote prices an outgoing payment before execution.
type Quote struct {
	ID            string
	DebitAmount   WalletAmount
	ReceiveAmount WalletAmount
}

// OutgoingPayment is money leaving the sender's wallet address.
type OutgoingPayment struct {
	ID          string
	Failed      bool
	SentAmount  WalletAmount
	DebitAmount WalletAmount
}

type CreateIncomingPaymentRequest struct {
	Receiver    WalletAddress
	AccessToken string
	ExpiresAt   *time.Time
}

type CreateQuoteRequest struct {
	Sender      WalletAddress
	Receiver    string
	AccessToken string
	DebitAmount WalletAmount
}

type CreateOutgoingPaymentRequest struct {
	Sender          WalletAddress
	AccessToken     string
	IncomingPayment string
	QuoteID         string
	DebitAmount     WalletAmount
}

// WalletClient is the authenticated, request-signed channel to the wallet's
// authorization and resource servers. Signing is the implementation's concern.
type WalletClient interface {
	RequestGrant(ctx context.Context, req GrantRequest) (PendingGrant, error)
	ContinueGrant(ctx context.Context, continuation Continuation, interactRef string) (GrantDetails, error)
	CancelGrant(ctx context.Context, continuation Continuation) error
	RotateToken(ctx context.Context, token AccessToken) (AccessToken, error)

	CreateIncomingPayment(ctx context.Context, req CreateIncomingPaymentRequest) (IncomingPayment, error)
	CreateQuote(ctx context.Context, req CreateQuoteRequest) (Quote, error)
	CreateOutgoingPayment(ctx context.Context, req CreateOutgoingPaymentRequest) (OutgoingPayment, error)
	GetOutgoingPayment(ctx context.Context, id string, accessToken string) (OutgoingPayment, error)

	// ProbeMinSendAmount discovers the smallest payable increment between a
	// sender and a receiver wallet address.
	ProbeMinSendAmount(ctx context.Context, sender, receiver WalletAddress) (uint64, error)
}

// TabEventKind classifies tab lifecycle notifications.
type TabEventKind string

const (
	TabEventNavigated TabEventKind = "navigated"
	TabEventRemoved   TabEventKind = "removed"
)

// TabEvent is delivered by the Tab Controller whenever a watched tab changes
// URL or is closed.
type TabEvent struct {
	TabID int
	Kind  TabEventKind
	URL   string
}

// TabController drives the browser tabs used for interactive flows. Watch
// must deliver every URL change and the removal of the tab after the
// subscription is established; the returned func cancels the subscription.
type TabController interface {
	Create(ctx context.Context, url string) (int, error)
	Update(ctx context.Context, tabID int, url string) error
	Remove(ctx context.Context, tabID int) error
	Watch(ctx context.Context, tabID int) (<-chan TabEvent, func(), error)
}

// AddKeyRequest registers this client's signing key with a wallet provider,
// driven through a controlled browser tab.
type AddKeyRequest struct {
	Wallet WalletAddress
	TabID  int
}

// WalletKeyRegistrar automates wallet-specific key registration. The
// implementation is provider-specific and external to this module.
type WalletKeyRegistrar interface {
	AddKey(ctx context.Context, req AddKeyRequest) error
	RetryAddKey(ctx context.Context, req AddKeyRequest) error
}

// MetricsRecorder receives operation counters and latency histograms.
type MetricsRecorder interface {
	IncCounter(ctx context.Context, name string, value int64, tags map[string]string)
	ObserveHistogram(ctx context.Context, name string, value float64, tags map[string]string)
}

// NopMetricsRecorder discards all measurements.
type NopMetricsRecorder struct{}

func (NopMetricsRecorder) IncCounter(context.Context, string, int64, map[string]string)         {}
func (NopMetricsRecorder) ObserveHistogram(context.Context, string, float64, map[string]string) {}

type Logger = glog.Logger

type LoggerProvider = glog.LoggerProvider

type FieldsLogger = glog.FieldsLogger
