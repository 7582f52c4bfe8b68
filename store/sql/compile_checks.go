package sqlstore

import "github.com/interledger/web-monetization-go/core"

var (
	_ core.Storage = (*StateStore)(nil)
	_ core.Storage = (*CachedStorage)(nil)
)
