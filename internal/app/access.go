package app

import (
	"context"
	"log/slog"
	"strings"

	coreconfig "github.com/m3rciful/videoshop/core/config"
	"github.com/m3rciful/videoshop/core/logger"
	tghelpers "github.com/m3rciful/videoshop/core/telegram/helpers"
	"github.com/m3rciful/videoshop/core/telegram/keyboard"
	"github.com/m3rciful/videoshop/core/telegram/middleware"
	"github.com/m3rciful/videoshop/internal/menu"
	"github.com/m3rciful/videoshop/internal/metrics"
	"github.com/m3rciful/videoshop/internal/store"
	"github.com/m3rciful/videoshop/internal/wizard"

	tele "gopkg.in/telebot.v4"
)

// adminAuth unions the stored admin flag with the configured allow-list.
// Allow-listed users are promoted in the store the first time they act as admin.
type adminAuth struct {
	store *store.Store
	cfg   *coreconfig.Config
}

// IsAdmin implements middleware.Authorizer.
func (a adminAuth) IsAdmin(ctx context.Context, userID int64) bool {
	if a.store.IsAdmin(userID) {
		return true
	}
	if !a.cfg.IsAllowListed(userID) {
		return false
	}
	if _, err := a.store.UpsertUser(ctx, userID, "", true); err != nil {
		logger.Warn(ctx, "app", "admin.promote", slog.String("status", "fail"), logger.Err(err))
	} else {
		logger.Info(ctx, "app", "admin.promote", slog.Int64("user_id", userID))
	}
	return true
}

// trackUsers records every sender in the store on first contact.
func trackUsers(st *store.Store) tele.MiddlewareFunc {
	return func(next tele.HandlerFunc) tele.HandlerFunc {
		return func(c tele.Context) error {
			if u := c.Sender(); u != nil && !u.IsBot {
				ctx := tghelpers.BuildContext(c)
				created, err := st.UpsertUser(ctx, u.ID, u.Username, false)
				switch {
				case err != nil:
					logger.Warn(ctx, "app", "user.track", slog.String("status", "fail"), logger.Err(err))
				case created:
					logger.Info(ctx, "app", "user.created")
				}
			}
			return next(c)
		}
	}
}

// countUpdates feeds the inbound update counter.
func countUpdates(m *metrics.Metrics) tele.MiddlewareFunc {
	return func(next tele.HandlerFunc) tele.HandlerFunc {
		return func(c tele.Context) error {
			m.Update(middleware.UpdateKind(c.Update()))
			return next(c)
		}
	}
}

func wizardKey(c tele.Context) (wizard.Key, bool) {
	u, chat := c.Sender(), c.Chat()
	if u == nil || chat == nil {
		return wizard.Key{}, false
	}
	return wizard.Key{AdminID: u.ID, ChatID: chat.ID}, true
}

// inputFrom turns a message into wizard input; media wins over caption text.
func inputFrom(m *tele.Message) wizard.Input {
	if m == nil {
		return wizard.Input{}
	}
	switch {
	case m.Video != nil:
		return wizard.Input{Attachment: &wizard.Attachment{Kind: wizard.AttachmentVideo, Ref: m.Video.FileID}}
	case m.Document != nil:
		return wizard.Input{Attachment: &wizard.Attachment{Kind: wizard.AttachmentDocument, Ref: m.Document.FileID}}
	case m.Photo != nil:
		return wizard.Input{Attachment: &wizard.Attachment{Kind: wizard.AttachmentPhoto, Ref: m.Photo.FileID}}
	}
	return wizard.Input{Text: m.Text}
}

// wizardRoute adapts the wizard machine to the message router. Only
// administrators ever reach a session.
type wizardRoute struct {
	machine *wizard.Machine
	auth    adminAuth
}

func (w wizardRoute) Active(c tele.Context) bool {
	key, ok := wizardKey(c)
	if !ok || !w.machine.Active(key) {
		return false
	}
	return w.auth.IsAdmin(tghelpers.BuildContext(c), key.AdminID)
}

func (w wizardRoute) Handle(c tele.Context) error {
	key, ok := wizardKey(c)
	if !ok {
		return nil
	}
	ctx := tghelpers.BuildContext(c)
	reply, err := w.machine.Handle(ctx, key, inputFrom(c.Message()))
	if err != nil {
		return err
	}
	if strings.TrimSpace(reply.Text) == "" {
		return nil
	}
	if reply.Done {
		return tghelpers.Send(c, reply.Text, adminPanelButton())
	}
	return tghelpers.Send(c, reply.Text)
}

func adminPanelButton() *tele.ReplyMarkup {
	return keyboard.InlineButtonsRows(keyboard.Row(menu.Btn("🔐 Admin panel", menu.AdminPanel)))
}
