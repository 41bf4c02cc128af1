// Package purchase implements the Telegram Stars purchase protocol:
// invoice, pre-checkout validation, payment commit and delivery.
package purchase

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/m3rciful/videoshop/core/logger"
	"github.com/m3rciful/videoshop/core/telegram/format"
	"github.com/m3rciful/videoshop/core/telegram/keyboard"
	"github.com/m3rciful/videoshop/internal/dedupe"
	"github.com/m3rciful/videoshop/internal/menu"
	"github.com/m3rciful/videoshop/internal/metrics"
	"github.com/m3rciful/videoshop/internal/store"
)

// CurrencyStars is Telegram's in-app currency; amounts are whole stars.
const CurrencyStars = "XTR"

const (
	maxTitleRunes       = 32
	maxDescriptionRunes = 255
	component           = "shop.purchase"
)

// Catalog is the part of the store the workflow depends on.
type Catalog interface {
	GetItem(key string) (store.Item, bool)
	HasPurchased(userID int64, key string) bool
	Update(ctx context.Context, fn func(*store.Tx) error) error
}

// Invoice is what the buyer is asked to pay.
type Invoice struct {
	ItemKey     string
	Title       string
	Description string
	Payload     string
	Currency    string
	Label       string
	Amount      int64
}

// Messenger is the outbound transport used by the workflow.
type Messenger interface {
	SendText(ctx context.Context, chatID int64, text string, rows ...[]keyboard.InlineBtn) error
	SendInvoice(ctx context.Context, chatID int64, inv Invoice) error
	SendVideo(ctx context.Context, chatID int64, ref, caption string) error
}

// Source tells how a purchase was requested.
type Source int

const (
	// SourceCommand is /buy <key>.
	SourceCommand Source = iota
	// SourceButton is the inline "Buy" button.
	SourceButton
)

func (s Source) String() string {
	if s == SourceButton {
		return "button"
	}
	return "command"
}

// Request is the normalized buy action, whatever triggered it.
type Request struct {
	UserID  int64
	ChatID  int64
	Handle  string
	ItemKey string
	Source  Source
}

// PreCheckout carries a pre-checkout query.
type PreCheckout struct {
	UserID   int64
	Payload  string
	Currency string
	Amount   int64
}

// Decision answers a pre-checkout query. Reason is shown to the payer on decline.
type Decision struct {
	OK     bool
	Code   string
	Reason string
}

// Confirmation carries a successful payment notice.
type Confirmation struct {
	UserID   int64
	ChatID   int64
	Handle   string
	Payload  string
	Currency string
	Amount   int64
	ChargeID string
}

// Options configures a Workflow.
type Options struct {
	Catalog   Catalog
	Messenger Messenger
	// Guard is optional; without it repeated notices are caught by the ownership check alone.
	Guard   dedupe.Guard
	Metrics *metrics.Metrics
}

// Workflow runs purchase steps. It holds no per-purchase state: every step
// re-validates against the store.
type Workflow struct {
	catalog Catalog
	msg     Messenger
	guard   dedupe.Guard
	metrics *metrics.Metrics
}

// New returns a Workflow.
func New(opts Options) *Workflow {
	return &Workflow{
		catalog: opts.Catalog,
		msg:     opts.Messenger,
		guard:   opts.Guard,
		metrics: opts.Metrics,
	}
}

// Request validates a buy action and presents the invoice. It never mutates the store.
func (w *Workflow) Request(ctx context.Context, req Request) error {
	attrs := []slog.Attr{slog.String("item_key", req.ItemKey), slog.String("source", req.Source.String())}
	item, ok := w.catalog.GetItem(req.ItemKey)
	if !ok {
		w.reject(ctx, "purchase.request", ReasonNotFound, attrs...)
		w.notify(ctx, req.ChatID, fmt.Sprintf("Video with ID %s not found.", req.ItemKey), menu.BackToMenu())
		return &PolicyRejection{Reason: ReasonNotFound, ItemKey: req.ItemKey}
	}
	if w.catalog.HasPurchased(req.UserID, req.ItemKey) {
		w.reject(ctx, "purchase.request", ReasonAlreadyOwned, attrs...)
		w.notify(ctx, req.ChatID, "You've already purchased this video. Check your purchases to view it.", menu.MyPurchases())
		return &PolicyRejection{Reason: ReasonAlreadyOwned, ItemKey: req.ItemKey}
	}

	inv := Invoice{
		ItemKey:     item.Key,
		Title:       format.Truncate(item.Title, maxTitleRunes),
		Description: format.Truncate(item.Description, maxDescriptionRunes),
		Payload:     EncodePayload(item.Key),
		Currency:    CurrencyStars,
		Label:       "Video",
		Amount:      item.Price,
	}
	if err := w.msg.SendInvoice(ctx, req.ChatID, inv); err != nil {
		logger.Error(ctx, component, "invoice.send", append(attrs, slog.String("status", "fail"), logger.Err(err))...)
		w.notify(ctx, req.ChatID, "Sorry, there was an error processing your payment request. Please try again later.")
		return fmt.Errorf("send invoice: %w", err)
	}
	w.metrics.InvoiceSent()
	logger.Info(ctx, component, "invoice.sent", append(attrs, slog.Int64("price", item.Price))...)
	return nil
}

// PreCheckout re-validates a payment right before funds are captured.
func (w *Workflow) PreCheckout(ctx context.Context, q PreCheckout) Decision {
	d := w.decide(q)
	attrs := []slog.Attr{slog.String("payload", logger.SanitizeLimit(q.Payload, 64)), slog.Int64("amount", q.Amount)}
	if d.OK {
		w.metrics.PreCheckoutResult("ok")
		logger.Info(ctx, component, "checkout.approved", attrs...)
		return d
	}
	w.metrics.PreCheckoutResult(d.Code)
	w.reject(ctx, "checkout", d.Code, attrs...)
	return d
}

func (w *Workflow) decide(q PreCheckout) Decision {
	key, err := DecodePayload(q.Payload)
	if err != nil {
		return Decision{Code: ReasonInvalidPayload, Reason: "Invalid payment payload"}
	}
	if _, ok := w.catalog.GetItem(key); !ok {
		return Decision{Code: ReasonNotFound, Reason: "Video not found"}
	}
	if w.catalog.HasPurchased(q.UserID, key) {
		return Decision{Code: ReasonAlreadyOwned, Reason: "You already own this video"}
	}
	return Decision{OK: true}
}

// Confirm records a captured payment and delivers the item. The ownership
// check and the write run in one store critical section, so concurrent
// notices for the same pair record once.
func (w *Workflow) Confirm(ctx context.Context, c Confirmation) error {
	key, err := DecodePayload(c.Payload)
	if err != nil {
		logger.Error(ctx, component, "purchase.confirm",
			slog.String("reason", ReasonInvalidPayload),
			slog.String("payload", logger.SanitizeLimit(c.Payload, 64)),
			slog.String("charge_id", c.ChargeID),
		)
		w.notify(ctx, c.ChatID, "There was an error processing your payment. Please contact support.")
		return &PolicyRejection{Reason: ReasonInvalidPayload}
	}
	attrs := []slog.Attr{
		slog.String("item_key", key),
		slog.Int64("amount", c.Amount),
		slog.String("charge_id", c.ChargeID),
	}

	if w.chargeSeen(ctx, c.ChargeID) {
		logger.Info(ctx, component, "purchase.duplicate_notice", attrs...)
		return nil
	}

	var title string
	err = w.catalog.Update(ctx, func(tx *store.Tx) error {
		item, ok := tx.Item(key)
		if !ok {
			return &PolicyRejection{Reason: ReasonNotFound, ItemKey: key}
		}
		if tx.HasPurchased(c.UserID, key) {
			return &PolicyRejection{Reason: ReasonAlreadyOwned, ItemKey: key}
		}
		title = item.Title
		if !tx.RecordPurchase(c.UserID, key, c.Amount) {
			return ErrUnknownBuyer
		}
		return nil
	})

	var pr *PolicyRejection
	switch {
	case errors.As(err, &pr):
		w.reject(ctx, "purchase.confirm", pr.Reason, attrs...)
		if pr.Reason == ReasonAlreadyOwned {
			w.notify(ctx, c.ChatID, "You already own this video. Open it from your purchases.", menu.MyPurchases())
		} else {
			logger.Error(ctx, component, "purchase.vanished", attrs...)
			w.notify(ctx, c.ChatID, "Your payment was received, but this video is no longer available. Please contact support.")
		}
		return pr
	case err != nil:
		w.metrics.RecordFailed()
		logger.Error(ctx, component, "purchase.record", append(attrs, slog.String("status", "fail"), logger.Err(err))...)
		w.notify(ctx, c.ChatID, "Your payment was successful, but there was an error recording your purchase. "+
			"Please contact support and do not pay again.")
		return &RecordingFailure{ItemKey: key, Err: err}
	}

	w.metrics.PurchaseRecorded(c.Amount)
	w.rememberCharge(ctx, c.ChargeID)
	logger.Info(ctx, component, "purchase.committed", attrs...)

	deliverErr := w.Deliver(ctx, c.UserID, c.ChatID, key)
	w.notify(ctx, c.ChatID,
		fmt.Sprintf("✅ Thank you for your purchase of '%s'!\n\nYou can access your purchased videos anytime using /mypurchases", title),
		menu.MyPurchases())
	return deliverErr
}

// Deliver sends a purchased item's asset. It never changes purchase records.
func (w *Workflow) Deliver(ctx context.Context, userID, chatID int64, key string) error {
	item, ok := w.catalog.GetItem(key)
	if !ok || !item.Deliverable() {
		return w.deliveryFailed(ctx, chatID, &DeliveryFailure{ItemKey: key, Reason: "unavailable"},
			"There was an error delivering your video. Please contact support.")
	}
	if !w.catalog.HasPurchased(userID, key) {
		return w.deliveryFailed(ctx, chatID, &DeliveryFailure{ItemKey: key, Reason: "not purchased"},
			"You need to purchase this video before watching it.")
	}
	caption := fmt.Sprintf("🎬 %s\n\nEnjoy your video!", item.Title)
	if err := w.msg.SendVideo(ctx, chatID, item.ContentRef, caption); err != nil {
		return w.deliveryFailed(ctx, chatID, &DeliveryFailure{ItemKey: key, Reason: "send failed", Err: err},
			"There was an error delivering your video. Please try accessing it from /mypurchases")
	}
	logger.Info(ctx, component, "delivery.sent", slog.String("item_key", key))
	return nil
}

func (w *Workflow) deliveryFailed(ctx context.Context, chatID int64, df *DeliveryFailure, text string) error {
	w.metrics.DeliveryFailed()
	logger.Error(ctx, component, "delivery.fail",
		slog.String("item_key", df.ItemKey),
		slog.String("reason", df.Reason),
		logger.Err(df),
	)
	w.notify(ctx, chatID, text)
	return df
}

func (w *Workflow) reject(ctx context.Context, event, reason string, attrs ...slog.Attr) {
	logger.Info(ctx, component, event, append(attrs, slog.String("status", "rejected"), slog.String("reason", reason))...)
}

func (w *Workflow) notify(ctx context.Context, chatID int64, text string, rows ...[]keyboard.InlineBtn) {
	if err := w.msg.SendText(ctx, chatID, text, rows...); err != nil {
		logger.Warn(ctx, component, "notify.fail", logger.Err(err))
	}
}

func (w *Workflow) chargeSeen(ctx context.Context, id string) bool {
	if w.guard == nil || id == "" {
		return false
	}
	seen, err := w.guard.Seen(ctx, id)
	if err != nil {
		logger.Warn(ctx, component, "dedupe.check", slog.String("charge_id", id), logger.Err(err))
		return false
	}
	return seen
}

func (w *Workflow) rememberCharge(ctx context.Context, id string) {
	if w.guard == nil || id == "" {
		return
	}
	if err := w.guard.Remember(ctx, id); err != nil {
		logger.Warn(ctx, component, "dedupe.remember", slog.String("charge_id", id), logger.Err(err))
	}
}
