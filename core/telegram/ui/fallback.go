package ui

import tele "gopkg.in/telebot.v4"

// FallbackProvider exposes handlers used when an update cannot be mapped to a
// command, callback, wizard step or payment event.
type FallbackProvider interface {
	UnknownText() tele.HandlerFunc
	UnknownMedia() tele.HandlerFunc
	UnknownCallback() tele.HandlerFunc
	RateLimited() tele.HandlerFunc
	// Failure reports an unhandled handler error to the user.
	Failure(err error, c tele.Context)
}
