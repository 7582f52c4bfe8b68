package sqlstore

import (
	"encoding/json"
	"time"

	"github.com/uptrace/bun"
)

type stateRecord struct {
	bun.BaseModel `bun:"table:monetization_state,alias:ms"`

	ID        string          `bun:"id,pk"`
	Key       string          `bun:"key,notnull,unique"`
	Value     json.RawMessage `bun:"value,type:jsonb,notnull"`
	CreatedAt time.Time       `bun:"created_at,nullzero,notnull,default:current_timestamp"`
	UpdatedAt time.Time       `bun:"updated_at,nullzero,notnull,default:current_timestamp"`
}
