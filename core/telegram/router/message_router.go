package router

import (
	"time"

	tg "github.com/m3rciful/videoshop/core/telegram"
	"github.com/m3rciful/videoshop/core/telegram/middleware"

	tele "gopkg.in/telebot.v4"
)

var timeNow = time.Now

// Wizard receives messages that belong to an in-progress admin conversation.
type Wizard interface {
	Active(c tele.Context) bool
	Handle(c tele.Context) error
}

// MessageOptions controls fallback behaviour for text and media updates.
type MessageOptions struct {
	UnknownText  tele.HandlerFunc
	UnknownMedia tele.HandlerFunc
}

// MessageRoutes builds handlers for free text and attachments. An active
// wizard sees every message first; the rest falls through to command
// aliases, the registry fallback and finally the unknown handlers.
func MessageRoutes(wiz Wizard, reg *tg.Registry, opts MessageOptions) []tg.Route {
	inWizard := func(c tele.Context) bool {
		return wiz != nil && c.Sender() != nil && wiz.Active(c)
	}

	text := func(c tele.Context) error {
		start := timeNow()
		if inWizard(c) {
			return handleWithSummary(c, "wizard", start, func() error { return wiz.Handle(c) })
		}

		if reg != nil {
			if key, cmd, ok := reg.LookupCommand(c.Text()); ok && cmd.Handler != nil && !cmd.AdminOnly {
				return handleWithSummary(c, normalizeHandlerName(key), start, func() error {
					return cmd.Handler(c)
				})
			}
			if fb := reg.TextFallback(); fb != nil {
				return handleWithSummary(c, "fallback", start, func() error { return fb(c) })
			}
		}

		if opts.UnknownText != nil {
			return handleWithSummary(c, "unknown_text", start, func() error { return opts.UnknownText(c) })
		}
		logHandlerSummary(c, "unknown_text", start, "skip", nil)
		return nil
	}

	media := func(c tele.Context) error {
		start := timeNow()
		if inWizard(c) {
			return handleWithSummary(c, "wizard_media", start, func() error { return wiz.Handle(c) })
		}
		if opts.UnknownMedia != nil {
			return handleWithSummary(c, "unexpected_media", start, func() error { return opts.UnknownMedia(c) })
		}
		logHandlerSummary(c, "unexpected_media", start, "skip", nil)
		return nil
	}

	wrap := func(h tele.HandlerFunc) tele.HandlerFunc {
		return middleware.RecoverMiddleware(middleware.LoggerMiddleware(h))
	}
	return []tg.Route{
		{Endpoint: tele.OnText, Handler: wrap(text)},
		{Endpoint: tele.OnVideo, Handler: wrap(media)},
		{Endpoint: tele.OnDocument, Handler: wrap(media)},
		{Endpoint: tele.OnPhoto, Handler: wrap(media)},
	}
}
