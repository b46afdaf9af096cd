package convo

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
)

// Store owns all conversation records. It composes over a KV backend and
// applies the marker invariant as a pre-save normalization step, so what is
// persisted always satisfies it.
type Store struct {
	kv KV
}

// NewStore creates a Store over the given backend.
func NewStore(kv KV) *Store {
	return &Store{kv: kv}
}

// Load returns the record for a page URL, or an empty record when unknown.
func (s *Store) Load(ctx context.Context, pageURL string) (*Record, error) {
	key := StorageKey(pageURL)
	raw, ok, err := s.kv.Get(ctx, key)
	if err != nil {
		return nil, fmt.Errorf("load %s: %w", key, err)
	}
	if !ok {
		return &Record{Key: key}, nil
	}
	var rec Record
	if err := json.Unmarshal(raw, &rec); err != nil {
		return nil, fmt.Errorf("load %s: decode: %w", key, err)
	}
	rec.Key = key
	return &rec, nil
}

// Save normalizes the marker invariant and persists the full record,
// overwriting any previous value.
func (s *Store) Save(ctx context.Context, rec *Record) error {
	if rec.Key == "" {
		return fmt.Errorf("save: record has no key")
	}
	rec.Normalize()
	raw, err := json.Marshal(rec)
	if err != nil {
		return fmt.Errorf("save %s: encode: %w", rec.Key, err)
	}
	if err := s.kv.Set(ctx, rec.Key, raw); err != nil {
		return fmt.Errorf("save %s: %w", rec.Key, err)
	}
	return nil
}

// LoadAll returns every record under the page namespace that has a
// non-empty snapshot, sorted by key for stable iteration. Records without a
// snapshot (never successfully indexed) are excluded.
func (s *Store) LoadAll(ctx context.Context) ([]*Record, error) {
	keys, err := s.kv.Keys(ctx, KeyPrefix)
	if err != nil {
		return nil, fmt.Errorf("load all: %w", err)
	}
	sort.Strings(keys)

	var out []*Record
	for _, key := range keys {
		raw, ok, err := s.kv.Get(ctx, key)
		if err != nil {
			return nil, fmt.Errorf("load all: %s: %w", key, err)
		}
		if !ok {
			continue
		}
		var rec Record
		if err := json.Unmarshal(raw, &rec); err != nil {
			// A corrupt entry must not hide every other page's history.
			continue
		}
		if rec.Snapshot == nil || rec.Snapshot.Markdown == "" {
			continue
		}
		rec.Key = key
		out = append(out, &rec)
	}
	return out, nil
}

// ClearOne empties the message log for a page but keeps its snapshot, so
// the page can still be asked about afterwards.
func (s *Store) ClearOne(ctx context.Context, pageURL string) error {
	rec, err := s.Load(ctx, pageURL)
	if err != nil {
		return err
	}
	rec.Messages = nil
	return s.Save(ctx, rec)
}

// ClearAll deletes every record unconditionally.
func (s *Store) ClearAll(ctx context.Context) error {
	if err := s.kv.Clear(ctx); err != nil {
		return fmt.Errorf("clear all: %w", err)
	}
	return nil
}
