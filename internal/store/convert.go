package store

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgtype"
)

func timestamptz(t time.Time) pgtype.Timestamptz {
	return pgtype.Timestamptz{Time: t, Valid: true}
}

func nullTimestamptz(t *time.Time) pgtype.Timestamptz {
	if t == nil {
		return pgtype.Timestamptz{}
	}
	return pgtype.Timestamptz{Time: *t, Valid: true}
}

func timePtr(ts pgtype.Timestamptz) *time.Time {
	if !ts.Valid {
		return nil
	}
	t := ts.Time
	return &t
}

// jsonb marshals v for a JSONB column. Nil slices are stored as empty arrays.
func jsonb[V any](v []V) ([]byte, error) {
	if v == nil {
		v = []V{}
	}
	b, err := json.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("marshaling jsonb: %w", err)
	}
	return b, nil
}

func fromJSONB[V any](b []byte) ([]V, error) {
	if len(b) == 0 {
		return nil, nil
	}
	var v []V
	if err := json.Unmarshal(b, &v); err != nil {
		return nil, fmt.Errorf("unmarshaling jsonb: %w", err)
	}
	return v, nil
}
