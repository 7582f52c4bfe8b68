package monetization

import (
	"context"

	"github.com/interledger/web-monetization-go/core"
)

// MonetizationEvent tells the page-facing layer that money moved for one of
// its monetized links.
type MonetizationEvent struct {
	TabID           int
	FrameID         int
	SessionID       string
	Receiver        string
	IncomingPayment string
	Amount          core.WalletAmount
}

// EventPublisher delivers monetization events toward the content layer. The
// transport (extension messaging, websocket, test capture) is the host's
// concern.
type EventPublisher interface {
	PublishMonetizationEvent(ctx context.Context, event MonetizationEvent) error
}

// NopEventPublisher drops every event.
type NopEventPublisher struct{}

func (NopEventPublisher) PublishMonetizationEvent(context.Context, MonetizationEvent) error {
	return nil
}
