package command

import (
	"context"

	gocmd "github.com/goliatone/go-command"

	"github.com/interledger/web-monetization-go/core"
	"github.com/interledger/web-monetization-go/monetization"
)

// GrantService is the slice of the grant lifecycle service the mutating
// commands drive. *core.Service satisfies it.
type GrantService interface {
	NegotiateGrant(ctx context.Context, req core.NegotiateGrantRequest) (*core.AccessGrant, error)
	RemoveGrant(ctx context.Context, grantType core.GrantType) error
}

// PaymentArena looks up per-tab payment managers. *monetization.Registry
// satisfies it.
type PaymentArena interface {
	Lookup(tabID int) (*monetization.PaymentManager, bool)
}

type ConnectCommand struct {
	service GrantService
}

func NewConnectCommand(service GrantService) *ConnectCommand {
	return &ConnectCommand{service: service}
}

func (c *ConnectCommand) Execute(ctx context.Context, msg ConnectMessage) error {
	if c == nil || c.service == nil {
		return commandDependencyError("command: grant service is required")
	}
	grant, err := c.service.NegotiateGrant(ctx, core.NegotiateGrantRequest{
		Wallet:        msg.Wallet,
		Amount:        msg.Amount,
		Recurring:     msg.Recurring,
		Intent:        core.IntentConnect,
		ExistingTabID: msg.ExistingTabID,
	})
	if err != nil {
		return err
	}
	storeResult(ctx, grant)
	return nil
}

type ReconnectCommand struct {
	service GrantService
}

func NewReconnectCommand(service GrantService) *ReconnectCommand {
	return &ReconnectCommand{service: service}
}

func (c *ReconnectCommand) Execute(ctx context.Context, msg ReconnectMessage) error {
	if c == nil || c.service == nil {
		return commandDependencyError("command: grant service is required")
	}
	grant, err := c.service.NegotiateGrant(ctx, core.NegotiateGrantRequest{
		Wallet:        msg.Wallet,
		Amount:        msg.Amount,
		Recurring:     msg.Recurring,
		Intent:        core.IntentReconnect,
		ExistingTabID: msg.ExistingTabID,
	})
	if err != nil {
		return err
	}
	storeResult(ctx, grant)
	return nil
}

type AddFundsCommand struct {
	service GrantService
}

func NewAddFundsCommand(service GrantService) *AddFundsCommand {
	return &AddFundsCommand{service: service}
}

// Execute negotiates a one-time top-up grant.
func (c *AddFundsCommand) Execute(ctx context.Context, msg AddFundsMessage) error {
	if c == nil || c.service == nil {
		return commandDependencyError("command: grant service is required")
	}
	grant, err := c.service.NegotiateGrant(ctx, core.NegotiateGrantRequest{
		Wallet:        msg.Wallet,
		Amount:        msg.Amount,
		Recurring:     false,
		Intent:        core.IntentFunds,
		ExistingTabID: msg.ExistingTabID,
	})
	if err != nil {
		return err
	}
	storeResult(ctx, grant)
	return nil
}

type UpdateBudgetCommand struct {
	service GrantService
}

func NewUpdateBudgetCommand(service GrantService) *UpdateBudgetCommand {
	return &UpdateBudgetCommand{service: service}
}

// Execute revokes the slot's current grant before negotiating its
// replacement, so a rejected re-budget leaves the slot empty rather than on
// the old limits.
func (c *UpdateBudgetCommand) Execute(ctx context.Context, msg UpdateBudgetMessage) error {
	if c == nil || c.service == nil {
		return commandDependencyError("command: grant service is required")
	}
	grantType := core.GrantTypeOneTime
	if msg.Recurring {
		grantType = core.GrantTypeRecurring
	}
	if err := c.service.RemoveGrant(ctx, grantType); err != nil {
		return err
	}
	grant, err := c.service.NegotiateGrant(ctx, core.NegotiateGrantRequest{
		Wallet:        msg.Wallet,
		Amount:        msg.Amount,
		Recurring:     msg.Recurring,
		Intent:        core.IntentUpdateBudget,
		ExistingTabID: msg.ExistingTabID,
	})
	if err != nil {
		return err
	}
	storeResult(ctx, grant)
	return nil
}

type DisconnectCommand struct {
	service GrantService
}

func NewDisconnectCommand(service GrantService) *DisconnectCommand {
	return &DisconnectCommand{service: service}
}

// Execute revokes and clears both grant slots.
func (c *DisconnectCommand) Execute(ctx context.Context, _ DisconnectMessage) error {
	if c == nil || c.service == nil {
		return commandDependencyError("command: grant service is required")
	}
	if err := c.service.RemoveGrant(ctx, core.GrantTypeRecurring); err != nil {
		return err
	}
	return c.service.RemoveGrant(ctx, core.GrantTypeOneTime)
}

type OneTimePayCommand struct {
	arena PaymentArena
}

func NewOneTimePayCommand(arena PaymentArena) *OneTimePayCommand {
	return &OneTimePayCommand{arena: arena}
}

func (c *OneTimePayCommand) Execute(ctx context.Context, msg OneTimePayMessage) error {
	if c == nil || c.arena == nil {
		return commandDependencyError("command: payment arena is required")
	}
	manager, ok := c.arena.Lookup(msg.TabID)
	if !ok {
		return commandInvalidInputError("command: no payment manager for tab")
	}
	result, err := manager.Pay(ctx, msg.Amount)
	if err != nil {
		return err
	}
	storeResult(ctx, result)
	return nil
}

func storeResult[T any](ctx context.Context, value T) {
	collector := gocmd.ResultFromContext[T](ctx)
	if collector == nil {
		return
	}
	collector.Store(value)
}
