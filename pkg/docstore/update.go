package docstore

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"

	pkgerrors "github.com/angelmondragon/qrcatalog-backend/pkg/errors"
)

// DefaultUpdateRetries bounds compare-and-swap attempts when the caller passes zero.
const DefaultUpdateRetries = 8

// MutateFunc receives the current raw value (nil when absent) and returns the value to store.
type MutateFunc func(current json.RawMessage) (any, error)

// Update applies mutate at path using ETag compare-and-swap, re-reading and retrying
// on concurrent modification. It returns the stored value.
func Update(ctx context.Context, store Store, path string, retries int, mutate MutateFunc) (json.RawMessage, error) {
	if store == nil {
		return nil, pkgerrors.New(pkgerrors.CodeInternal, "docstore required")
	}
	if retries <= 0 {
		retries = DefaultUpdateRetries
	}

	current, etag, err := store.GetWithETag(ctx, path)
	if err != nil {
		return nil, err
	}

	for attempt := 0; attempt < retries; attempt++ {
		next, err := mutate(current)
		if err != nil {
			return nil, err
		}

		stored, newTag, err := store.PutIfMatch(ctx, path, next, etag)
		if err == nil {
			return stored, nil
		}
		if !errors.Is(err, ErrETagMismatch) {
			return nil, err
		}
		if err := ctx.Err(); err != nil {
			return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "docstore update canceled")
		}
		current, etag = stored, newTag
	}

	return nil, pkgerrors.New(pkgerrors.CodeConflict, "concurrent updates exhausted retries").
		WithDetails(map[string]any{"path": path, "retries": retries})
}

// IncrementCounter adds one to the integer leaf at path, treating an absent value as zero.
func IncrementCounter(ctx context.Context, store Store, path string, retries int) (int64, error) {
	var result int64
	_, err := Update(ctx, store, path, retries, func(current json.RawMessage) (any, error) {
		n, err := DecodeInt(current)
		if err != nil {
			return nil, err
		}
		result = n + 1
		return result, nil
	})
	if err != nil {
		return 0, err
	}
	return result, nil
}

// DecodeInt reads a JSON number leaf. Absent values decode as zero.
func DecodeInt(raw json.RawMessage) (int64, error) {
	if len(raw) == 0 {
		return 0, nil
	}
	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.UseNumber()
	var num json.Number
	if err := dec.Decode(&num); err != nil {
		return 0, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "counter is not a number")
	}
	if n, err := num.Int64(); err == nil {
		return n, nil
	}
	f, err := num.Float64()
	if err != nil {
		return 0, pkgerrors.Wrap(pkgerrors.CodeInternal, fmt.Errorf("parse %q: %w", num, err), "counter is not a number")
	}
	return int64(f), nil
}

// Decode unmarshals raw into dst. It reports false when raw is empty.
func Decode(raw json.RawMessage, dst any) (bool, error) {
	if len(raw) == 0 {
		return false, nil
	}
	if err := json.Unmarshal(raw, dst); err != nil {
		return false, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "decode document")
	}
	return true, nil
}
