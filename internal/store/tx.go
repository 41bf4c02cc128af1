package store

import "time"

// Tx is the view of the store handed to an Update callback. It must not be
// retained after the callback returns.
type Tx struct {
	st    *state
	now   func() time.Time
	dirty bool
}

// Item returns a copy of the item.
func (tx *Tx) Item(key string) (Item, bool) {
	it, ok := tx.st.items[key]
	if !ok {
		return Item{}, false
	}
	return *it, true
}

// User returns a copy of the user.
func (tx *Tx) User(id int64) (User, bool) {
	u, ok := tx.st.users[id]
	if !ok {
		return User{}, false
	}
	return *u.clone(), true
}

// HasPurchased reports whether userID owns key.
func (tx *Tx) HasPurchased(userID int64, key string) bool {
	u, ok := tx.st.users[userID]
	return ok && u.Owns(key)
}

// UpsertUser creates or promotes the user and reports whether it was created.
func (tx *Tx) UpsertUser(id int64, handle string, isAdmin bool) bool {
	if u, ok := tx.st.users[id]; ok {
		if isAdmin && !u.IsAdmin {
			u.IsAdmin = true
			tx.dirty = true
		}
		return false
	}
	tx.st.users[id] = &User{ID: id, Handle: handle, IsAdmin: isAdmin, Purchases: []Purchase{}}
	tx.dirty = true
	return true
}

// AddItem validates fields and allocates the next key above the high-water mark.
func (tx *Tx) AddItem(fields ItemFields) (string, error) {
	if err := fields.validate(); err != nil {
		return "", err
	}
	tx.st.highWater++
	key := formatKey(tx.st.highWater)
	tx.st.items[key] = fields.toItem(key)
	tx.dirty = true
	return key, nil
}

// UpdateItem replaces the attributes of an existing item.
func (tx *Tx) UpdateItem(key string, fields ItemFields) (bool, error) {
	if _, ok := tx.st.items[key]; !ok {
		return false, nil
	}
	if err := fields.validate(); err != nil {
		return false, err
	}
	tx.st.items[key] = fields.toItem(key)
	tx.dirty = true
	return true, nil
}

// RemoveItem deletes an item and reports whether it existed.
func (tx *Tx) RemoveItem(key string) bool {
	if _, ok := tx.st.items[key]; !ok {
		return false
	}
	delete(tx.st.items, key)
	tx.dirty = true
	return true
}

// RecordPurchase appends a record for a known user.
func (tx *Tx) RecordPurchase(userID int64, key string, pricePaid int64) bool {
	u, ok := tx.st.users[userID]
	if !ok {
		return false
	}
	u.Purchases = append(u.Purchases, Purchase{
		ItemKey:     key,
		PurchasedAt: tx.now().Unix(),
		PricePaid:   pricePaid,
	})
	tx.st.observe(key)
	tx.dirty = true
	return true
}
