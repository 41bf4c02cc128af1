package middleware

import (
	"context"
	"log/slog"
	"time"

	"github.com/m3rciful/videoshop/core/logger"
	"github.com/m3rciful/videoshop/core/telegram/callbacks"
	tghelpers "github.com/m3rciful/videoshop/core/telegram/helpers"

	tele "gopkg.in/telebot.v4"
)

// LoggerMiddleware seeds the update's correlation context and logs receipt at debug level.
// It is idempotent per update, so routers may wrap it again.
func LoggerMiddleware(next tele.HandlerFunc) tele.HandlerFunc {
	return func(c tele.Context) error {
		if rid, _ := c.Get("rid").(string); rid != "" {
			return next(c)
		}

		upd := c.Update()
		var chatID, userID int64
		chat, user := c.Chat(), c.Sender()
		if chat != nil {
			chatID = chat.ID
		}
		if user != nil {
			userID = user.ID
		}
		rid := logger.BuildRID(upd.ID, chatID, userID)
		c.Set("rid", rid)
		c.Set("update_start", time.Now())

		ctx := logger.WithRID(context.Background(), rid)
		ctx = logger.WithUpdateMeta(ctx, upd.ID, userID, chatID)
		ctx = logger.WithLogger(ctx, logger.TG)
		tghelpers.StoreContext(c, ctx)

		attrs := []slog.Attr{
			slog.String("status", "ok"),
			slog.String("kind", UpdateKind(upd)),
		}
		if chat != nil {
			attrs = append(attrs, slog.String("chat_type", string(chat.Type)))
		}
		if user != nil && user.Username != "" {
			attrs = append(attrs, slog.String("username", logger.SanitizeLimit(user.Username, 64)))
		}
		switch {
		case upd.Callback != nil:
			key, payload := callbacks.ParseCallbackData(upd.Callback)
			attrs = append(attrs,
				slog.String("cb_key", logger.SanitizeLimit(key, 128)),
				slog.String("payload", logger.SanitizeLimit(payload, 256)),
			)
		case upd.PreCheckoutQuery != nil:
			attrs = append(attrs, slog.String("payload", logger.SanitizeLimit(upd.PreCheckoutQuery.Payload, 128)))
		case upd.Message != nil && upd.Message.Video != nil:
			attrs = append(attrs, slog.String("payload", "<video>"))
		case upd.Message != nil:
			attrs = append(attrs, slog.String("payload", logger.SanitizeLimit(upd.Message.Text, 256)))
		}
		logger.LogEvent(ctx, logger.TG, slog.LevelDebug, "update.received", attrs...)

		return next(c)
	}
}
