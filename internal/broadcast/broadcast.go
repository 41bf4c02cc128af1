// Package broadcast fans an admin announcement out to every known user
// through the outbound sender queue.
package broadcast

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"github.com/m3rciful/videoshop/core/logger"
	"github.com/m3rciful/videoshop/core/telegram/keyboard"
	"github.com/m3rciful/videoshop/core/telegram/sender"
	"github.com/m3rciful/videoshop/internal/metrics"
)

const component = "broadcast"

// Audience lists the recipients.
type Audience interface {
	UserIDs() []int64
}

// TextSender delivers one plain text message.
type TextSender interface {
	SendText(ctx context.Context, chatID int64, text string, rows ...[]keyboard.InlineBtn) error
}

// Queue accepts outbound jobs; *sender.Dispatcher implements it.
type Queue interface {
	Submit(ctx context.Context, j sender.Job) error
}

// Result summarizes a finished broadcast.
type Result struct {
	JobID  string
	Total  int
	Sent   int
	Failed int
}

// Options configures a Broadcaster.
type Options struct {
	Audience Audience
	Sender   TextSender
	Queue    Queue
	Metrics  *metrics.Metrics
	// OnDone, when set, receives the summary once every message settled.
	OnDone func(Result)
}

// Broadcaster implements the wizard's fan-out collaborator.
type Broadcaster struct {
	opts Options
}

// New returns a Broadcaster.
func New(opts Options) *Broadcaster {
	return &Broadcaster{opts: opts}
}

// ErrNoQueue is returned when the broadcaster has nowhere to send.
var ErrNoQueue = errors.New("broadcast: no queue configured")

// Broadcast schedules text for every user and returns the audience size
// without waiting for delivery.
func (b *Broadcaster) Broadcast(ctx context.Context, text string) (int, error) {
	if b.opts.Queue == nil || b.opts.Sender == nil {
		return 0, ErrNoQueue
	}
	var ids []int64
	if b.opts.Audience != nil {
		ids = b.opts.Audience.UserIDs()
	}
	jobID := uuid.NewString()
	jobCtx := logger.WithLogger(context.WithoutCancel(ctx), logger.Component(component).With("job_id", jobID))
	logger.Info(ctx, component, "broadcast.start", slog.String("job_id", jobID), slog.Int("count", len(ids)))

	go b.fanOut(jobCtx, jobID, ids, text)
	return len(ids), nil
}

func (b *Broadcaster) fanOut(ctx context.Context, jobID string, ids []int64, text string) {
	start := time.Now()
	var (
		wg           sync.WaitGroup
		sent, failed atomic.Int64
	)
	settle := func(err error) {
		b.opts.Metrics.BroadcastSent(err)
		if err != nil {
			failed.Add(1)
		} else {
			sent.Add(1)
		}
		wg.Done()
	}

	for _, id := range ids {
		chatID := id
		wg.Add(1)
		err := b.opts.Queue.Submit(ctx, sender.Job{
			Action:   "broadcast.send",
			Endpoint: "sendMessage",
			Run:      func() error { return b.opts.Sender.SendText(ctx, chatID, text) },
			Done:     settle,
		})
		if err != nil {
			logger.Warn(ctx, component, "broadcast.enqueue", slog.Int64("user_id", chatID), logger.Err(err))
			settle(err)
		}
	}
	wg.Wait()

	res := Result{JobID: jobID, Total: len(ids), Sent: int(sent.Load()), Failed: int(failed.Load())}
	logger.Info(ctx, component, "broadcast.done",
		slog.String("job_id", jobID),
		slog.Int("count", res.Total),
		slog.Int("sent", res.Sent),
		slog.Int("failed", res.Failed),
		slog.Duration("duration", logger.Took(start)),
	)
	if b.opts.OnDone != nil {
		b.opts.OnDone(res)
	}
}
