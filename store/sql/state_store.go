package sqlstore

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	repository "github.com/goliatone/go-repository-bun"
	"github.com/google/uuid"
	"github.com/uptrace/bun"
)

// StateStore persists monetization state (grant slots, hourly rate,
// connection flags) as JSON values keyed by name in the
// monetization_state table.
type StateStore struct {
	db   *bun.DB
	repo repository.Repository[*stateRecord]
}

func (s *StateStore) Get(ctx context.Context, keys []string) (map[string]json.RawMessage, error) {
	if s == nil || s.repo == nil {
		return nil, fmt.Errorf("sqlstore: state store is not configured")
	}
	cleaned := cleanKeys(keys)
	out := make(map[string]json.RawMessage, len(cleaned))
	if len(cleaned) == 0 {
		return out, nil
	}

	records, _, err := s.repo.List(ctx,
		repository.SelectRawProcessor(func(q *bun.SelectQuery) *bun.SelectQuery {
			return q.Where("?TableAlias.key IN (?)", bun.In(cleaned))
		}),
	)
	if err != nil {
		return nil, err
	}

	for _, record := range records {
		out[record.Key] = append(json.RawMessage(nil), record.Value...)
	}
	return out, nil
}

func (s *StateStore) Set(ctx context.Context, values map[string]any) error {
	if s == nil || s.db == nil {
		return fmt.Errorf("sqlstore: state store is not configured")
	}
	if len(values) == 0 {
		return nil
	}

	encoded := make(map[string]json.RawMessage, len(values))
	for key, value := range values {
		trimmed := strings.TrimSpace(key)
		if trimmed == "" {
			return fmt.Errorf("sqlstore: state key is required")
		}
		raw, err := json.Marshal(value)
		if err != nil {
			return fmt.Errorf("sqlstore: state value for %q is not serializable: %w", trimmed, err)
		}
		encoded[trimmed] = raw
	}

	now := time.Now().UTC()
	return s.db.RunInTx(ctx, nil, func(ctx context.Context, tx bun.Tx) error {
		for key, raw := range encoded {
			record, err := findStateTx(ctx, tx, key)
			if err != nil {
				return err
			}
			if record == nil {
				record = &stateRecord{
					ID:        uuid.NewString(),
					Key:       key,
					Value:     raw,
					CreatedAt: now,
					UpdatedAt: now,
				}
				if _, insertErr := tx.NewInsert().Model(record).Exec(ctx); insertErr != nil {
					return insertErr
				}
				continue
			}
			record.Value = raw
			record.UpdatedAt = now
			if _, updateErr := tx.NewUpdate().
				Model(record).
				Where("id = ?", record.ID).
				Exec(ctx); updateErr != nil {
				return updateErr
			}
		}
		return nil
	})
}

func (s *StateStore) Delete(ctx context.Context, keys []string) error {
	if s == nil || s.db == nil {
		return fmt.Errorf("sqlstore: state store is not configured")
	}
	cleaned := cleanKeys(keys)
	if len(cleaned) == 0 {
		return nil
	}
	_, err := s.db.NewDelete().
		Model((*stateRecord)(nil)).
		Where("key IN (?)", bun.In(cleaned)).
		Exec(ctx)
	return err
}

func findStateTx(ctx context.Context, tx bun.Tx, key string) (*stateRecord, error) {
	record := new(stateRecord)
	err := tx.NewSelect().
		Model(record).
		Where("?TableAlias.key = ?", key).
		Limit(1).
		Scan(ctx)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	return record, nil
}

func cleanKeys(keys []string) []string {
	out := make([]string, 0, len(keys))
	for _, key := range keys {
		trimmed := strings.TrimSpace(key)
		if trimmed == "" {
			continue
		}
		out = append(out, trimmed)
	}
	return out
}
