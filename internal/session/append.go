package session

import (
	"context"
	"errors"
	"fmt"
	"time"
)

const maxAppendAttempts = 5

// AppendEntry reloads the record, appends e and writes it back, retrying on version
// conflicts with concurrent writers.
func AppendEntry(ctx context.Context, store Store, id string, e Entry) (*Record, error) {
	if e.Timestamp.IsZero() {
		e.Timestamp = time.Now()
	}
	var lastErr error
	for attempt := 0; attempt < maxAppendAttempts; attempt++ {
		rec, err := store.Get(ctx, id)
		if err != nil {
			return nil, err
		}
		if rec == nil {
			return nil, ErrNotFound
		}
		rec.History = append(rec.History, e)
		err = store.Update(ctx, rec)
		if err == nil {
			return rec, nil
		}
		if !errors.Is(err, ErrVersionConflict) {
			return nil, err
		}
		lastErr = err
	}
	return nil, fmt.Errorf("append entry after %d attempts: %w", maxAppendAttempts, lastErr)
}
