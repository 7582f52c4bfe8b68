package webmonetization

import (
	"fmt"

	monetizationcommand "github.com/interledger/web-monetization-go/command"
	monetizationquery "github.com/interledger/web-monetization-go/query"
)

// CommandQueryService is the service surface the facade wires handlers
// around. *core.Service satisfies it.
type CommandQueryService interface {
	monetizationcommand.GrantService
	monetizationquery.GrantReader
}

// PaymentArena is satisfied by *monetization.Registry.
type PaymentArena interface {
	monetizationcommand.PaymentArena
}

type Commands struct {
	Connect      *monetizationcommand.ConnectCommand
	Reconnect    *monetizationcommand.ReconnectCommand
	AddFunds     *monetizationcommand.AddFundsCommand
	UpdateBudget *monetizationcommand.UpdateBudgetCommand
	Disconnect   *monetizationcommand.DisconnectCommand
	OneTimePay   *monetizationcommand.OneTimePayCommand
}

type Queries struct {
	GetGrants    *monetizationquery.GetGrantsQuery
	ListSessions *monetizationquery.ListSessionsQuery
}

// Facade bundles the command and query handlers over one service and one
// payment arena, ready to register on a go-command registry.
type Facade struct {
	service  CommandQueryService
	arena    PaymentArena
	commands Commands
	queries  Queries
}

func NewFacade(service CommandQueryService, arena PaymentArena) (*Facade, error) {
	if service == nil {
		return nil, fmt.Errorf("webmonetization: command/query service is required")
	}
	if arena == nil {
		return nil, fmt.Errorf("webmonetization: payment arena is required")
	}

	facade := &Facade{service: service, arena: arena}
	facade.commands = Commands{
		Connect:      monetizationcommand.NewConnectCommand(service),
		Reconnect:    monetizationcommand.NewReconnectCommand(service),
		AddFunds:     monetizationcommand.NewAddFundsCommand(service),
		UpdateBudget: monetizationcommand.NewUpdateBudgetCommand(service),
		Disconnect:   monetizationcommand.NewDisconnectCommand(service),
		OneTimePay:   monetizationcommand.NewOneTimePayCommand(arena),
	}
	facade.queries = Queries{
		GetGrants:    monetizationquery.NewGetGrantsQuery(service),
		ListSessions: monetizationquery.NewListSessionsQuery(arena),
	}

	return facade, nil
}

func (f *Facade) Commands() Commands {
	if f == nil {
		return Commands{}
	}
	return f.commands
}

func (f *Facade) Queries() Queries {
	if f == nil {
		return Queries{}
	}
	return f.queries
}

func (f *Facade) Service() CommandQueryService {
	if f == nil {
		return nil
	}
	return f.service
}
