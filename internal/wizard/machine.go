// Package wizard runs the admin conversations that add catalog items and
// broadcast announcements. Sessions live in memory, one per (admin, chat).
package wizard

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"github.com/m3rciful/videoshop/core/logger"
	"github.com/m3rciful/videoshop/internal/metrics"
	"github.com/m3rciful/videoshop/internal/store"
)

const component = "shop.wizard"

// Kind names a wizard.
type Kind string

const (
	KindAddItem   Kind = "add_item"
	KindBroadcast Kind = "broadcast"
)

// Key scopes a session to one administrator in one chat.
type Key struct {
	AdminID int64
	ChatID  int64
}

// AttachmentKind classifies media sent during a session.
type AttachmentKind string

const (
	AttachmentVideo    AttachmentKind = "video"
	AttachmentDocument AttachmentKind = "document"
	AttachmentPhoto    AttachmentKind = "photo"
)

// Attachment is a media message; Ref is its Telegram file id.
type Attachment struct {
	Kind AttachmentKind
	Ref  string
}

// Input is one inbound message.
type Input struct {
	Text       string
	Attachment *Attachment
}

// Reply is what the admin should be told. Done is set when the session ended.
type Reply struct {
	Text string
	Done bool
}

// ErrNoSession is returned by Handle when the key has no active session.
var ErrNoSession = errors.New("wizard: no active session")

// Catalog stores finished items.
type Catalog interface {
	AddItem(ctx context.Context, fields store.ItemFields) (string, error)
}

// Broadcaster fans a message out to every known user and returns the audience size.
type Broadcaster interface {
	Broadcast(ctx context.Context, text string) (int, error)
}

// Machine owns every active session.
type Machine struct {
	mu       sync.Mutex
	sessions map[Key]State

	catalog     Catalog
	broadcaster Broadcaster
	metrics     *metrics.Metrics
}

// NewMachine returns an empty Machine.
func NewMachine(catalog Catalog, broadcaster Broadcaster, m *metrics.Metrics) *Machine {
	return &Machine{
		sessions:    map[Key]State{},
		catalog:     catalog,
		broadcaster: broadcaster,
		metrics:     m,
	}
}

// StartAddItem opens the add-item wizard, replacing any session for key.
func (m *Machine) StartAddItem(ctx context.Context, key Key) string {
	return m.start(ctx, key, awaitingTitle{})
}

// StartBroadcast opens the broadcast wizard, replacing any session for key.
func (m *Machine) StartBroadcast(ctx context.Context, key Key) string {
	return m.start(ctx, key, awaitingBroadcast{})
}

func (m *Machine) start(ctx context.Context, key Key, s State) string {
	m.mu.Lock()
	prev, replaced := m.sessions[key]
	m.sessions[key] = s
	m.mu.Unlock()

	attrs := []slog.Attr{slog.String("wizard", string(s.Kind()))}
	if replaced {
		attrs = append(attrs, slog.String("reason", "replaced_"+string(prev.Kind())))
	}
	logger.Info(ctx, component, "wizard.start", attrs...)
	return s.Prompt()
}

// Cancel drops the session for key and reports whether one existed.
func (m *Machine) Cancel(key Key) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	_, ok := m.sessions[key]
	delete(m.sessions, key)
	return ok
}

// Active reports whether key has a session.
func (m *Machine) Active(key Key) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	_, ok := m.sessions[key]
	return ok
}

// Handle feeds one input to the session for key. A finished session is
// removed before its outcome is committed, whether the commit succeeds or not.
func (m *Machine) Handle(ctx context.Context, key Key, in Input) (Reply, error) {
	m.mu.Lock()
	cur, ok := m.sessions[key]
	if !ok {
		m.mu.Unlock()
		return Reply{}, ErrNoSession
	}
	tr := cur.Step(in)
	if tr.Outcome == nil {
		m.sessions[key] = tr.Next
		m.mu.Unlock()
		if tr.Next == cur {
			logger.Debug(ctx, component, "wizard.reprompt", slog.String("wizard", string(cur.Kind())))
		}
		return Reply{Text: tr.Reply}, nil
	}
	delete(m.sessions, key)
	m.mu.Unlock()

	return m.commit(ctx, cur.Kind(), tr.Outcome), nil
}

func (m *Machine) commit(ctx context.Context, kind Kind, out Outcome) Reply {
	switch o := out.(type) {
	case NewItem:
		key, err := m.catalog.AddItem(ctx, o.Fields)
		m.metrics.WizardCommitted(string(kind), err)
		var ve *store.ValidationError
		switch {
		case errors.As(err, &ve):
			logger.Warn(ctx, component, "wizard.commit", slog.String("wizard", string(kind)), slog.String("status", "rejected"), logger.Err(err))
			return Reply{Text: "Could not add the video: " + ve.Error(), Done: true}
		case err != nil:
			logger.Error(ctx, component, "wizard.commit", slog.String("wizard", string(kind)), slog.String("status", "fail"), logger.Err(err))
			return Reply{Text: "Could not save the video. Please try again with /addvideo.", Done: true}
		}
		logger.Info(ctx, component, "wizard.commit", slog.String("wizard", string(kind)), slog.String("item_key", key))
		return Reply{Text: fmt.Sprintf("Video added successfully with ID: %s", key), Done: true}

	case BroadcastText:
		n, err := m.broadcaster.Broadcast(ctx, o.Text)
		m.metrics.WizardCommitted(string(kind), err)
		if err != nil {
			logger.Error(ctx, component, "wizard.commit", slog.String("wizard", string(kind)), slog.String("status", "fail"), logger.Err(err))
			return Reply{Text: "The broadcast could not be started. Please try again with /broadcast.", Done: true}
		}
		logger.Info(ctx, component, "wizard.commit", slog.String("wizard", string(kind)), slog.Int("count", n))
		return Reply{Text: fmt.Sprintf("Broadcast message queued for %d users: %s", n, o.Text), Done: true}
	}
	return Reply{Done: true}
}
