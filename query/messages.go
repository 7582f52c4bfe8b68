package query

import "fmt"

const (
	TypeGetGrants    = "monetization.query.grants.get"
	TypeListSessions = "monetization.query.sessions.list"
)

// GetGrantsMessage asks for the current state of both grant slots.
type GetGrantsMessage struct{}

func (GetGrantsMessage) Type() string { return TypeGetGrants }

func (GetGrantsMessage) Validate() error { return nil }

// ListSessionsMessage asks for the payment sessions registered under a tab.
type ListSessionsMessage struct {
	TabID int
}

func (ListSessionsMessage) Type() string { return TypeListSessions }

func (m ListSessionsMessage) Validate() error {
	if m.TabID < 0 {
		return fmt.Errorf("query: tab id must be >= 0")
	}
	return nil
}
