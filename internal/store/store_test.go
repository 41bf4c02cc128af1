package store

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// memPersister records saved snapshots and can be told to fail.
type memPersister struct {
	mu    sync.Mutex
	snap  *Snapshot
	saves int
	fail  error
}

func (m *memPersister) Load(context.Context) (*Snapshot, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.snap == nil {
		return NewSnapshot(), nil
	}
	return m.snap, nil
}

func (m *memPersister) Save(_ context.Context, snap *Snapshot) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.fail != nil {
		return m.fail
	}
	m.saves++
	m.snap = snap
	return nil
}

func sampleFields(title string) ItemFields {
	return ItemFields{Title: title, Description: "a long enough description", Price: 50, Duration: "10 min"}
}

func openStore(t *testing.T, p *memPersister) *Store {
	t.Helper()
	s, err := Open(context.Background(), p, WithClock(func() time.Time { return time.Unix(1700000000, 0) }))
	require.NoError(t, err)
	return s
}

func TestAddItemKeysNeverReused(t *testing.T) {
	ctx := context.Background()
	s := openStore(t, &memPersister{})

	k1, err := s.AddItem(ctx, sampleFields("first"))
	require.NoError(t, err)
	assert.Equal(t, "video_1", k1)

	ok, err := s.RemoveItem(ctx, k1)
	require.NoError(t, err)
	require.True(t, ok)

	k2, err := s.AddItem(ctx, sampleFields("second"))
	require.NoError(t, err)
	assert.Equal(t, "video_2", k2)

	k3, err := s.AddItem(ctx, sampleFields("third"))
	require.NoError(t, err)
	ok, err = s.RemoveItem(ctx, k3)
	require.NoError(t, err)
	require.True(t, ok)

	k4, err := s.AddItem(ctx, sampleFields("fourth"))
	require.NoError(t, err)
	assert.Equal(t, "video_4", k4)
	assert.Equal(t, []string{"video_2", "video_4"}, s.ItemKeys())
}

func TestHighWaterIncludesPurchasedKeysAfterReload(t *testing.T) {
	p := &memPersister{snap: &Snapshot{
		Items: map[string]*Item{"video_2": {Title: "t", Description: "d", Price: 5}},
		Users: map[string]*User{"7": {Handle: "ann", Purchases: []Purchase{{ItemKey: "video_9", PricePaid: 5}}}},
	}}
	s := openStore(t, p)

	key, err := s.AddItem(context.Background(), sampleFields("next"))
	require.NoError(t, err)
	assert.Equal(t, "video_10", key)

	u, ok := s.GetUser(7)
	require.True(t, ok)
	assert.Equal(t, int64(7), u.ID)
}

func TestAddItemValidation(t *testing.T) {
	p := &memPersister{}
	s := openStore(t, p)
	cases := map[string]ItemFields{
		"title":       {Description: "desc", Price: 1},
		"description": {Title: "title", Price: 1},
		"price":       {Title: "title", Description: "desc", Price: 0},
	}
	for field, fields := range cases {
		t.Run(field, func(t *testing.T) {
			_, err := s.AddItem(context.Background(), fields)
			var verr *ValidationError
			require.ErrorAs(t, err, &verr)
			assert.Equal(t, field, verr.Field)
		})
	}
	assert.Empty(t, s.ItemKeys())
	assert.Zero(t, p.saves)
}

func TestRecordPurchaseThenHasPurchased(t *testing.T) {
	ctx := context.Background()
	s := openStore(t, &memPersister{})

	ok, err := s.RecordPurchase(ctx, 42, "video_1", 50)
	require.NoError(t, err)
	assert.False(t, ok, "unknown user")

	created, err := s.UpsertUser(ctx, 42, "bob", false)
	require.NoError(t, err)
	require.True(t, created)

	before := len(s.ListPurchases(42))
	ok, err = s.RecordPurchase(ctx, 42, "video_1", 50)
	require.NoError(t, err)
	require.True(t, ok)

	assert.True(t, s.HasPurchased(42, "video_1"))
	purchases := s.ListPurchases(42)
	require.Len(t, purchases, before+1)
	assert.Equal(t, Purchase{ItemKey: "video_1", PurchasedAt: 1700000000, PricePaid: 50}, purchases[0])
}

func TestUpsertUserNeverOverwritesOrDemotes(t *testing.T) {
	ctx := context.Background()
	p := &memPersister{}
	s := openStore(t, p)

	created, err := s.UpsertUser(ctx, 1, "first", false)
	require.NoError(t, err)
	assert.True(t, created)

	created, err = s.UpsertUser(ctx, 1, "renamed", false)
	require.NoError(t, err)
	assert.False(t, created)
	u, _ := s.GetUser(1)
	assert.Equal(t, "first", u.Handle)
	assert.Equal(t, 1, p.saves, "no-op upsert must not persist")

	_, err = s.UpsertUser(ctx, 1, "", true)
	require.NoError(t, err)
	assert.True(t, s.IsAdmin(1))

	_, err = s.UpsertUser(ctx, 1, "", false)
	require.NoError(t, err)
	assert.True(t, s.IsAdmin(1))
}

func TestUpdateItemAndRemoveMissing(t *testing.T) {
	ctx := context.Background()
	s := openStore(t, &memPersister{})
	key, err := s.AddItem(ctx, sampleFields("orig"))
	require.NoError(t, err)

	ok, err := s.UpdateItem(ctx, key, sampleFields("changed"))
	require.NoError(t, err)
	require.True(t, ok)
	it, _ := s.GetItem(key)
	assert.Equal(t, "changed", it.Title)
	assert.Equal(t, key, it.Key)

	ok, err = s.UpdateItem(ctx, "video_99", sampleFields("x"))
	require.NoError(t, err)
	assert.False(t, ok)

	ok, err = s.RemoveItem(ctx, "video_99")
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestRemoveItemKeepsPurchases(t *testing.T) {
	ctx := context.Background()
	s := openStore(t, &memPersister{})
	key, err := s.AddItem(ctx, sampleFields("gone soon"))
	require.NoError(t, err)
	_, err = s.UpsertUser(ctx, 5, "eve", false)
	require.NoError(t, err)
	_, err = s.RecordPurchase(ctx, 5, key, 50)
	require.NoError(t, err)

	_, err = s.RemoveItem(ctx, key)
	require.NoError(t, err)

	assert.True(t, s.HasPurchased(5, key))
	sales := s.Sales()
	require.Len(t, sales, 1)
	assert.Equal(t, SaleStat{ItemKey: key, Count: 1, Revenue: 50}, sales[0])
}

func TestSaveFailureRollsBack(t *testing.T) {
	ctx := context.Background()
	p := &memPersister{}
	s := openStore(t, p)
	_, err := s.UpsertUser(ctx, 1, "a", false)
	require.NoError(t, err)

	p.fail = errors.New("disk full")
	_, err = s.AddItem(ctx, sampleFields("lost"))
	require.Error(t, err)
	assert.Empty(t, s.ItemKeys())

	_, err = s.RecordPurchase(ctx, 1, "video_1", 10)
	require.Error(t, err)
	assert.False(t, s.HasPurchased(1, "video_1"))

	p.fail = nil
	key, err := s.AddItem(ctx, sampleFields("kept"))
	require.NoError(t, err)
	assert.Equal(t, "video_1", key)
}

func TestUpdateCallbackErrorDiscardsChanges(t *testing.T) {
	ctx := context.Background()
	p := &memPersister{}
	s := openStore(t, p)
	boom := errors.New("boom")

	err := s.Update(ctx, func(tx *Tx) error {
		tx.UpsertUser(9, "x", false)
		return boom
	})
	require.ErrorIs(t, err, boom)
	_, ok := s.GetUser(9)
	assert.False(t, ok)
	assert.Zero(t, p.saves)
}

func TestConcurrentCheckThenRecordIsAtomic(t *testing.T) {
	ctx := context.Background()
	s := openStore(t, &memPersister{})
	_, err := s.UpsertUser(ctx, 3, "c", false)
	require.NoError(t, err)

	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_ = s.Update(ctx, func(tx *Tx) error {
				if tx.HasPurchased(3, "video_1") {
					return nil
				}
				tx.RecordPurchase(3, "video_1", 50)
				return nil
			})
		}()
	}
	wg.Wait()
	assert.Len(t, s.ListPurchases(3), 1)
}

func TestReadsReturnCopies(t *testing.T) {
	ctx := context.Background()
	s := openStore(t, &memPersister{})
	f := sampleFields("tagged")
	f.Tags = []string{"a"}
	key, err := s.AddItem(ctx, f)
	require.NoError(t, err)

	it, _ := s.GetItem(key)
	it.Tags[0] = "mutated"
	items := s.ListItems()
	items[key] = Item{}

	again, _ := s.GetItem(key)
	assert.Equal(t, []string{"a"}, again.Tags)
	assert.Equal(t, "tagged", again.Title)
}
