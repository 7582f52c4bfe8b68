package command

import (
	"fmt"
	"strings"

	"github.com/interledger/web-monetization-go/core"
)

const (
	TypeConnect      = "monetization.command.connect"
	TypeReconnect    = "monetization.command.reconnect"
	TypeAddFunds     = "monetization.command.funds.add"
	TypeUpdateBudget = "monetization.command.budget.update"
	TypeDisconnect   = "monetization.command.disconnect"
	TypeOneTimePay   = "monetization.command.pay.one_time"
)

type ConnectMessage struct {
	Wallet        core.WalletAddress
	Amount        core.GrantAmount
	Recurring     bool
	ExistingTabID *int
}

func (ConnectMessage) Type() string { return TypeConnect }

func (m ConnectMessage) Validate() error {
	if err := validateWallet(m.Wallet); err != nil {
		return err
	}
	return validateAmount(m.Amount)
}

type ReconnectMessage struct {
	Wallet        core.WalletAddress
	Amount        core.GrantAmount
	Recurring     bool
	ExistingTabID *int
}

func (ReconnectMessage) Type() string { return TypeReconnect }

func (m ReconnectMessage) Validate() error {
	if err := validateWallet(m.Wallet); err != nil {
		return err
	}
	return validateAmount(m.Amount)
}

// AddFundsMessage tops up spending through a fresh one-time grant.
type AddFundsMessage struct {
	Wallet        core.WalletAddress
	Amount        core.GrantAmount
	ExistingTabID *int
}

func (AddFundsMessage) Type() string { return TypeAddFunds }

func (m AddFundsMessage) Validate() error {
	if err := validateWallet(m.Wallet); err != nil {
		return err
	}
	return validateAmount(m.Amount)
}

// UpdateBudgetMessage replaces a slot's grant with one carrying new limits.
type UpdateBudgetMessage struct {
	Wallet        core.WalletAddress
	Amount        core.GrantAmount
	Recurring     bool
	ExistingTabID *int
}

func (UpdateBudgetMessage) Type() string { return TypeUpdateBudget }

func (m UpdateBudgetMessage) Validate() error {
	if err := validateWallet(m.Wallet); err != nil {
		return err
	}
	return validateAmount(m.Amount)
}

type DisconnectMessage struct{}

func (DisconnectMessage) Type() string { return TypeDisconnect }

func (DisconnectMessage) Validate() error { return nil }

type OneTimePayMessage struct {
	TabID  int
	Amount uint64
}

func (OneTimePayMessage) Type() string { return TypeOneTimePay }

func (m OneTimePayMessage) Validate() error {
	if m.Amount == 0 {
		return fmt.Errorf("command: payment amount must be positive")
	}
	return nil
}

func validateWallet(wallet core.WalletAddress) error {
	if err := wallet.Validate(); err != nil {
		return fmt.Errorf("command: %w", err)
	}
	return nil
}

func validateAmount(amount core.GrantAmount) error {
	if strings.TrimSpace(amount.Value) == "" {
		return fmt.Errorf("command: grant amount is required")
	}
	return nil
}
