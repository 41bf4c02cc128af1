package router

import (
	tg "github.com/m3rciful/videoshop/core/telegram"
	"github.com/m3rciful/videoshop/core/telegram/middleware"

	tele "gopkg.in/telebot.v4"
)

// Payments handles the two payment events Telegram pushes to the bot.
type Payments interface {
	// PreCheckout must answer the query; Telegram cancels it after ten seconds.
	PreCheckout(c tele.Context) error
	// Paid handles a successful_payment service message.
	Paid(c tele.Context) error
}

// PaymentRoutes binds pre-checkout queries and successful payments.
func PaymentRoutes(p Payments) []tg.Route {
	if p == nil {
		return nil
	}
	checkout := func(c tele.Context) error {
		return handleWithSummary(c, "pre_checkout", timeNow(), func() error { return p.PreCheckout(c) })
	}
	paid := func(c tele.Context) error {
		return handleWithSummary(c, "payment", timeNow(), func() error { return p.Paid(c) })
	}
	return []tg.Route{
		{Endpoint: tele.OnCheckout, Handler: middleware.RecoverMiddleware(middleware.LoggerMiddleware(checkout))},
		{Endpoint: tele.OnPayment, Handler: middleware.RecoverMiddleware(middleware.LoggerMiddleware(paid))},
	}
}
