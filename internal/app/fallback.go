package app

import (
	"context"
	"log/slog"

	"github.com/m3rciful/videoshop/core/logger"
	tghelpers "github.com/m3rciful/videoshop/core/telegram/helpers"
	"github.com/m3rciful/videoshop/core/telegram/keyboard"
	"github.com/m3rciful/videoshop/core/telegram/middleware"
	"github.com/m3rciful/videoshop/core/telegram/ui"
	"github.com/m3rciful/videoshop/internal/menu"
	"github.com/m3rciful/videoshop/internal/purchase"

	tele "gopkg.in/telebot.v4"
)

type fallbacks struct{}

var _ ui.FallbackProvider = fallbacks{}

func (fallbacks) UnknownText() tele.HandlerFunc {
	return func(c tele.Context) error {
		return tghelpers.Send(c, "Sorry, I didn't understand that. Use /help to see available commands.",
			keyboard.InlineButtonsRows(menu.BackToMenu()))
	}
}

func (fallbacks) UnknownMedia() tele.HandlerFunc {
	return func(c tele.Context) error {
		return tghelpers.Send(c, "I can't do anything with this file. Use /help to see available commands.")
	}
}

func (fallbacks) UnknownCallback() tele.HandlerFunc {
	return func(c tele.Context) error {
		return tghelpers.Notify(c, "This button is no longer active.")
	}
}

func (fallbacks) RateLimited() tele.HandlerFunc {
	return func(c tele.Context) error {
		if c.Callback() != nil {
			return tghelpers.Notify(c, "Slow down a little, please.")
		}
		return tghelpers.Send(c, "Slow down a little, please.")
	}
}

func (fallbacks) AdminRejected() tele.HandlerFunc {
	return func(c tele.Context) error {
		const text = "You don't have permission to access admin features."
		if c.Callback() != nil {
			return tghelpers.Notify(c, text)
		}
		return tghelpers.Send(c, text)
	}
}

// Failure is the outermost error boundary. Errors the purchase workflow
// already explained to the user are not repeated.
func (fallbacks) Failure(err error, c tele.Context) {
	if err == nil || purchase.Surfaced(err) {
		return
	}
	if c == nil {
		logger.Error(context.Background(), "app", "handler.unhandled", logger.Err(err))
		return
	}
	ctx := tghelpers.BuildContext(c)
	logger.Error(ctx, "app", "handler.unhandled",
		slog.String("kind", middleware.UpdateKind(c.Update())),
		logger.Err(err),
	)
	if c.Callback() != nil {
		_ = c.Respond()
	}
	if c.Chat() != nil {
		_ = c.Send("Sorry, something went wrong. Please try again later.")
	}
}
