package query

import (
	gocmd "github.com/goliatone/go-command"

	"github.com/interledger/web-monetization-go/core"
)

var (
	_ gocmd.Querier[GetGrantsMessage, []core.GrantSnapshot] = (*GetGrantsQuery)(nil)
	_ gocmd.Querier[ListSessionsMessage, SessionsView]      = (*ListSessionsQuery)(nil)
)
