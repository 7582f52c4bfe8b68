// Package query exposes the read side of the monetization surface as
// go-command Querier handlers, mirroring the mutating handlers in the
// command package.
package query

import (
	"context"

	"github.com/interledger/web-monetization-go/core"
	"github.com/interledger/web-monetization-go/monetization"
)

// GrantReader is satisfied by *core.Service.
type GrantReader interface {
	SnapshotGrants() []core.GrantSnapshot
}

// SessionArena is satisfied by *monetization.Registry.
type SessionArena interface {
	Lookup(tabID int) (*monetization.PaymentManager, bool)
}

// SessionView is the read model for one payment session.
type SessionView struct {
	ID       string
	FrameID  int
	Receiver core.WalletAddress
	Payable  bool
}

// SessionsView describes a tab's monetization state: its hourly rate and the
// sessions registered across its frames, in frame order.
type SessionsView struct {
	TabID       int
	RatePerHour uint64
	Sessions    []SessionView
}

type GetGrantsQuery struct {
	reader GrantReader
}

func NewGetGrantsQuery(reader GrantReader) *GetGrantsQuery {
	return &GetGrantsQuery{reader: reader}
}

func (q *GetGrantsQuery) Query(_ context.Context, _ GetGrantsMessage) ([]core.GrantSnapshot, error) {
	if q == nil || q.reader == nil {
		return nil, queryDependencyError("query: grant reader is required")
	}
	return q.reader.SnapshotGrants(), nil
}

type ListSessionsQuery struct {
	arena SessionArena
}

func NewListSessionsQuery(arena SessionArena) *ListSessionsQuery {
	return &ListSessionsQuery{arena: arena}
}

func (q *ListSessionsQuery) Query(_ context.Context, msg ListSessionsMessage) (SessionsView, error) {
	if q == nil || q.arena == nil {
		return SessionsView{}, queryDependencyError("query: session arena is required")
	}
	manager, ok := q.arena.Lookup(msg.TabID)
	if !ok {
		return SessionsView{TabID: msg.TabID}, nil
	}

	sessions := manager.Sessions()
	out := SessionsView{
		TabID:       msg.TabID,
		RatePerHour: manager.Rate(),
		Sessions:    make([]SessionView, 0, len(sessions)),
	}
	for _, session := range sessions {
		out.Sessions = append(out.Sessions, SessionView{
			ID:       session.ID(),
			FrameID:  session.FrameID(),
			Receiver: session.Receiver(),
			Payable:  session.Payable(),
		})
	}
	return out, nil
}
