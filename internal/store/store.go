// Package store keeps the catalog, users and purchase records in memory and
// persists the whole document through a Persister after every mutation.
package store

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"strconv"
	"sync"
	"time"

	"github.com/m3rciful/videoshop/core/logger"
)

// Persister loads and atomically replaces the store document.
type Persister interface {
	Load(ctx context.Context) (*Snapshot, error)
	Save(ctx context.Context, snap *Snapshot) error
}

type state struct {
	items map[string]*Item
	users map[int64]*User
	// highWater is the largest key suffix ever observed; it never decreases.
	highWater int
}

func (s *state) clone() *state {
	c := &state{
		items:     make(map[string]*Item, len(s.items)),
		users:     make(map[int64]*User, len(s.users)),
		highWater: s.highWater,
	}
	for k, it := range s.items {
		cp := *it
		cp.Tags = append([]string(nil), it.Tags...)
		c.items[k] = &cp
	}
	for id, u := range s.users {
		c.users[id] = u.clone()
	}
	return c
}

// Store is safe for concurrent use. Reads share a lock; every mutation runs in
// an exclusive Update critical section.
type Store struct {
	mu        sync.RWMutex
	st        *state
	persister Persister
	now       func() time.Time
}

// Option customizes a Store.
type Option func(*Store)

// WithClock overrides the purchase timestamp source.
func WithClock(now func() time.Time) Option {
	return func(s *Store) { s.now = now }
}

// Open loads the persisted document and returns a ready Store.
func Open(ctx context.Context, p Persister, opts ...Option) (*Store, error) {
	if p == nil {
		return nil, errors.New("store: nil persister")
	}
	snap, err := p.Load(ctx)
	if err != nil {
		return nil, fmt.Errorf("load store: %w", err)
	}
	st, err := fromSnapshot(snap)
	if err != nil {
		return nil, err
	}
	s := &Store{st: st, persister: p, now: time.Now}
	for _, opt := range opts {
		opt(s)
	}
	logger.Info(ctx, "store", "store.open",
		slog.Int("items", len(st.items)),
		slog.Int("users", len(st.users)),
		slog.Int("count", st.highWater),
	)
	return s, nil
}

func fromSnapshot(snap *Snapshot) (*state, error) {
	st := &state{items: map[string]*Item{}, users: map[int64]*User{}}
	if snap == nil {
		return st, nil
	}
	for key, it := range snap.Items {
		if it == nil {
			continue
		}
		cp := *it
		cp.Key = key
		st.items[key] = &cp
		st.observe(key)
	}
	for raw, u := range snap.Users {
		if u == nil {
			continue
		}
		id, err := strconv.ParseInt(raw, 10, 64)
		if err != nil {
			return nil, fmt.Errorf("store: bad user id %q: %w", raw, err)
		}
		cp := u.clone()
		cp.ID = id
		st.users[id] = cp
		for _, p := range cp.Purchases {
			st.observe(p.ItemKey)
		}
	}
	return st, nil
}

func (s *state) observe(key string) {
	if n, ok := keySuffix(key); ok && n > s.highWater {
		s.highWater = n
	}
}

func (s *state) snapshot() *Snapshot {
	snap := NewSnapshot()
	for k, it := range s.items {
		cp := *it
		snap.Items[k] = &cp
	}
	for id, u := range s.users {
		snap.Users[strconv.FormatInt(id, 10)] = u.clone()
	}
	return snap
}

// Update runs fn with exclusive access. fn works on a private copy which is
// persisted and published only when fn succeeds; on any error the store is unchanged.
func (s *Store) Update(ctx context.Context, fn func(*Tx) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	tx := &Tx{st: s.st.clone(), now: s.now}
	if err := fn(tx); err != nil {
		return err
	}
	if !tx.dirty {
		return nil
	}
	start := time.Now()
	if err := s.persister.Save(ctx, tx.st.snapshot()); err != nil {
		logger.Error(ctx, "store", "store.save",
			slog.String("status", "fail"),
			slog.Duration("duration", logger.Took(start)),
			logger.Err(err),
		)
		return fmt.Errorf("persist store: %w", err)
	}
	s.st = tx.st
	logger.Debug(ctx, "store", "store.save",
		slog.String("status", "ok"),
		slog.Duration("duration", logger.Took(start)),
	)
	return nil
}

func (s *Store) view(fn func(*state)) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	fn(s.st)
}

// UpsertUser creates the user when absent and reports whether it did. An
// existing user keeps its handle; isAdmin only ever promotes.
func (s *Store) UpsertUser(ctx context.Context, id int64, handle string, isAdmin bool) (bool, error) {
	if u, ok := s.GetUser(id); ok && (u.IsAdmin || !isAdmin) {
		return false, nil
	}
	var created bool
	err := s.Update(ctx, func(tx *Tx) error {
		created = tx.UpsertUser(id, handle, isAdmin)
		return nil
	})
	return created, err
}

// GetUser returns a copy of the user.
func (s *Store) GetUser(id int64) (User, bool) {
	var (
		out User
		ok  bool
	)
	s.view(func(st *state) {
		if u, found := st.users[id]; found {
			out, ok = *u.clone(), true
		}
	})
	return out, ok
}

// GetItem returns a copy of the item.
func (s *Store) GetItem(key string) (Item, bool) {
	var (
		out Item
		ok  bool
	)
	s.view(func(st *state) {
		if it, found := st.items[key]; found {
			out, ok = *it, true
			out.Tags = append([]string(nil), it.Tags...)
		}
	})
	return out, ok
}

// ListItems returns a copy of the catalog mapping.
func (s *Store) ListItems() map[string]Item {
	out := map[string]Item{}
	s.view(func(st *state) {
		for k, it := range st.items {
			cp := *it
			cp.Tags = append([]string(nil), it.Tags...)
			out[k] = cp
		}
	})
	return out
}

// ItemKeys returns catalog keys ordered by numeric suffix.
func (s *Store) ItemKeys() []string {
	var keys []string
	s.view(func(st *state) {
		for k := range st.items {
			keys = append(keys, k)
		}
	})
	sortKeys(keys)
	return keys
}

func sortKeys(keys []string) {
	sort.Slice(keys, func(i, j int) bool {
		a, aok := keySuffix(keys[i])
		b, bok := keySuffix(keys[j])
		switch {
		case aok && bok:
			return a < b
		case aok != bok:
			return aok
		default:
			return keys[i] < keys[j]
		}
	})
}

// AddItem validates fields and stores them under a freshly allocated key.
func (s *Store) AddItem(ctx context.Context, fields ItemFields) (string, error) {
	var key string
	err := s.Update(ctx, func(tx *Tx) error {
		var err error
		key, err = tx.AddItem(fields)
		return err
	})
	if err != nil {
		return "", err
	}
	logger.Info(ctx, "store", "item.added",
		slog.String("item_key", key),
		slog.Int64("price", fields.Price),
	)
	return key, nil
}

// UpdateItem replaces the attributes of key. It reports false when key is absent.
func (s *Store) UpdateItem(ctx context.Context, key string, fields ItemFields) (bool, error) {
	var ok bool
	err := s.Update(ctx, func(tx *Tx) error {
		var err error
		ok, err = tx.UpdateItem(key, fields)
		return err
	})
	return ok, err
}

// RemoveItem deletes key from the catalog. Purchase records are untouched.
func (s *Store) RemoveItem(ctx context.Context, key string) (bool, error) {
	var ok bool
	err := s.Update(ctx, func(tx *Tx) error {
		ok = tx.RemoveItem(key)
		return nil
	})
	if err == nil && ok {
		logger.Info(ctx, "store", "item.removed", slog.String("item_key", key))
	}
	return ok, err
}

// IsAdmin reports the stored administrator flag.
func (s *Store) IsAdmin(id int64) bool {
	u, ok := s.GetUser(id)
	return ok && u.IsAdmin
}

// RecordPurchase appends a purchase record. It returns false for an unknown
// user and does not check for duplicates; callers check ownership first,
// inside the same Update when the check must be atomic.
func (s *Store) RecordPurchase(ctx context.Context, userID int64, key string, pricePaid int64) (bool, error) {
	var ok bool
	err := s.Update(ctx, func(tx *Tx) error {
		ok = tx.RecordPurchase(userID, key, pricePaid)
		return nil
	})
	return ok, err
}

// HasPurchased reports whether userID owns key.
func (s *Store) HasPurchased(userID int64, key string) bool {
	var owned bool
	s.view(func(st *state) {
		if u, ok := st.users[userID]; ok {
			owned = u.Owns(key)
		}
	})
	return owned
}

// ListPurchases returns the user's records in purchase order.
func (s *Store) ListPurchases(userID int64) []Purchase {
	var out []Purchase
	s.view(func(st *state) {
		if u, ok := st.users[userID]; ok {
			out = append([]Purchase(nil), u.Purchases...)
		}
	})
	return out
}

// UserIDs returns every known user id in ascending order.
func (s *Store) UserIDs() []int64 {
	var ids []int64
	s.view(func(st *state) {
		for id := range st.users {
			ids = append(ids, id)
		}
	})
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	return ids
}

// Sales aggregates purchase records per item key, including removed items.
func (s *Store) Sales() []SaleStat {
	byKey := map[string]*SaleStat{}
	s.view(func(st *state) {
		for _, u := range st.users {
			for _, p := range u.Purchases {
				stat, ok := byKey[p.ItemKey]
				if !ok {
					stat = &SaleStat{ItemKey: p.ItemKey}
					if it, found := st.items[p.ItemKey]; found {
						stat.Title = it.Title
					}
					byKey[p.ItemKey] = stat
				}
				stat.Count++
				stat.Revenue += p.PricePaid
			}
		}
	})
	keys := make([]string, 0, len(byKey))
	for k := range byKey {
		keys = append(keys, k)
	}
	sortKeys(keys)
	out := make([]SaleStat, 0, len(keys))
	for _, k := range keys {
		out = append(out, *byKey[k])
	}
	return out
}
