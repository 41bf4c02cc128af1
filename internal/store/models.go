package store

import (
	"fmt"
	"strconv"
	"strings"
)

// KeyPrefix prefixes every allocated catalog key.
const KeyPrefix = "video_"

// Item is a catalog entry. ContentRef is the Telegram file id of the attached video.
type Item struct {
	Key         string   `json:"id"`
	Title       string   `json:"title"`
	Description string   `json:"description"`
	Price       int64    `json:"price"`
	Duration    string   `json:"duration"`
	Category    string   `json:"category,omitempty"`
	Tags        []string `json:"tags,omitempty"`
	ContentRef  string   `json:"file_id,omitempty"`
}

// Deliverable reports whether the item has an attached asset.
func (i Item) Deliverable() bool { return i.ContentRef != "" }

// ItemFields carries the mutable attributes of an Item.
type ItemFields struct {
	Title       string
	Description string
	Price       int64
	Duration    string
	Category    string
	Tags        []string
	ContentRef  string
}

func (f ItemFields) validate() error {
	switch {
	case strings.TrimSpace(f.Title) == "":
		return &ValidationError{Field: "title", Reason: "must not be empty"}
	case strings.TrimSpace(f.Description) == "":
		return &ValidationError{Field: "description", Reason: "must not be empty"}
	case f.Price <= 0:
		return &ValidationError{Field: "price", Reason: "must be a positive integer"}
	}
	return nil
}

func (f ItemFields) toItem(key string) *Item {
	return &Item{
		Key:         key,
		Title:       strings.TrimSpace(f.Title),
		Description: strings.TrimSpace(f.Description),
		Price:       f.Price,
		Duration:    strings.TrimSpace(f.Duration),
		Category:    strings.TrimSpace(f.Category),
		Tags:        append([]string(nil), f.Tags...),
		ContentRef:  f.ContentRef,
	}
}

// Purchase is an append-only ownership record.
type Purchase struct {
	ItemKey     string `json:"video_id"`
	PurchasedAt int64  `json:"purchase_date"`
	PricePaid   int64  `json:"price_paid"`
}

// User is a Telegram user known to the shop.
type User struct {
	ID        int64      `json:"user_id"`
	Handle    string     `json:"username"`
	IsAdmin   bool       `json:"is_admin"`
	Purchases []Purchase `json:"purchases"`
}

// Owns reports whether the user holds a purchase record for key.
func (u *User) Owns(key string) bool {
	for _, p := range u.Purchases {
		if p.ItemKey == key {
			return true
		}
	}
	return false
}

func (u *User) clone() *User {
	c := *u
	c.Purchases = append([]Purchase(nil), u.Purchases...)
	return &c
}

// SaleStat aggregates purchase records of one item key.
type SaleStat struct {
	ItemKey string
	Title   string
	Count   int
	Revenue int64
}

// Snapshot is the persisted document: item key to item and stringified user id to user.
type Snapshot struct {
	Items map[string]*Item `json:"videos"`
	Users map[string]*User `json:"users"`
}

// NewSnapshot returns an empty document.
func NewSnapshot() *Snapshot {
	return &Snapshot{Items: map[string]*Item{}, Users: map[string]*User{}}
}

// ValidationError reports a malformed catalog field.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid %s: %s", e.Field, e.Reason)
}

// Code identifies the error class in logs.
func (e *ValidationError) Code() string { return "VALIDATION" }

// keySuffix extracts n from "video_<n>".
func keySuffix(key string) (int, bool) {
	rest, ok := strings.CutPrefix(key, KeyPrefix)
	if !ok {
		return 0, false
	}
	n, err := strconv.Atoi(rest)
	if err != nil || n < 0 {
		return 0, false
	}
	return n, true
}

func formatKey(n int) string {
	return KeyPrefix + strconv.Itoa(n)
}
