package command

import gocmd "github.com/goliatone/go-command"

var (
	_ gocmd.Commander[ConnectMessage]      = (*ConnectCommand)(nil)
	_ gocmd.Commander[ReconnectMessage]    = (*ReconnectCommand)(nil)
	_ gocmd.Commander[AddFundsMessage]     = (*AddFundsCommand)(nil)
	_ gocmd.Commander[UpdateBudgetMessage] = (*UpdateBudgetCommand)(nil)
	_ gocmd.Commander[DisconnectMessage]   = (*DisconnectCommand)(nil)
	_ gocmd.Commander[OneTimePayMessage]   = (*OneTimePayCommand)(nil)
)
