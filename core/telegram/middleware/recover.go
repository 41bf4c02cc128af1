package middleware

import (
	"fmt"
	"log/slog"
	"runtime/debug"

	"github.com/m3rciful/videoshop/core/logger"
	tghelpers "github.com/m3rciful/videoshop/core/telegram/helpers"

	tele "gopkg.in/telebot.v4"
)

// PanicError wraps a value recovered from a handler panic.
type PanicError struct {
	Value any
}

func (e *PanicError) Error() string { return fmt.Sprintf("handler panic: %v", e.Value) }

// Code identifies the error class in logs.
func (e *PanicError) Code() string { return "PANIC" }

// RecoverMiddleware converts handler panics into a *PanicError so one bad update
// never stops the poller.
func RecoverMiddleware(next tele.HandlerFunc) tele.HandlerFunc {
	return func(c tele.Context) (err error) {
		defer func() {
			if r := recover(); r != nil {
				logger.Error(tghelpers.BuildContext(c), "tg", "tg.panic",
					slog.Any("err", r),
					slog.String("stack", string(debug.Stack())),
				)
				err = &PanicError{Value: r}
			}
		}()
		return next(c)
	}
}
