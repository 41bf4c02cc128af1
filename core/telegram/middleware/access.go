package middleware

import (
	"context"
	"log/slog"

	"github.com/m3rciful/videoshop/core/logger"
	tghelpers "github.com/m3rciful/videoshop/core/telegram/helpers"

	tele "gopkg.in/telebot.v4"
)

// Authorizer decides whether a user may run administrator handlers.
type Authorizer interface {
	IsAdmin(ctx context.Context, userID int64) bool
}

// AuthorizerFunc adapts a function to Authorizer.
type AuthorizerFunc func(ctx context.Context, userID int64) bool

// IsAdmin implements Authorizer.
func (f AuthorizerFunc) IsAdmin(ctx context.Context, userID int64) bool { return f(ctx, userID) }

// AdminOptions defines how admin-only checks behave.
type AdminOptions struct {
	Auth     Authorizer
	OnReject tele.HandlerFunc
}

// AdminOnlyMiddleware lets only authorized administrators reach next.
// A nil Authorizer rejects everyone.
func AdminOnlyMiddleware(opts AdminOptions) tele.MiddlewareFunc {
	return func(next tele.HandlerFunc) tele.HandlerFunc {
		return func(c tele.Context) error {
			user := c.Sender()
			ctx := tghelpers.BuildContext(c)
			if user != nil && opts.Auth != nil && opts.Auth.IsAdmin(ctx, user.ID) {
				return next(c)
			}
			logger.Warn(ctx, "tg", "admin.reject",
				slog.String("status", "rejected"),
				slog.String("reason", "UNAUTHORIZED"),
			)
			if opts.OnReject != nil {
				return opts.OnReject(c)
			}
			return nil
		}
	}
}
