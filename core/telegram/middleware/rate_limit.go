package middleware

import (
	"log/slog"
	"sync"
	"time"

	"golang.org/x/time/rate"

	"github.com/m3rciful/videoshop/core/logger"
	tghelpers "github.com/m3rciful/videoshop/core/telegram/helpers"

	tele "gopkg.in/telebot.v4"
)

// RateLimitOptions configures the per-user limiter.
type RateLimitOptions struct {
	// Interval is the sustained gap between two updates of one user.
	Interval time.Duration
	// Burst is the number of updates allowed back to back.
	Burst     int
	Exclude   map[string]struct{}
	OnLimited tele.HandlerFunc
	// IdleTTL drops limiters of users inactive for this long; 0 means ten minutes.
	IdleTTL time.Duration
}

type userLimiter struct {
	lim      *rate.Limiter
	lastSeen time.Time
}

// UpdateKind classifies an update for rate limit exclusions and logs.
func UpdateKind(u tele.Update) string {
	switch {
	case u.PreCheckoutQuery != nil:
		return "checkout"
	case u.Message != nil && u.Message.Payment != nil:
		return "payment"
	case u.Callback != nil:
		return "callback"
	case u.Message != nil:
		return "message"
	default:
		return "other"
	}
}

// RateLimitMiddleware throttles each user with a token bucket. Checkout and
// payment updates always pass: dropping them would strand a payment.
func RateLimitMiddleware(opts RateLimitOptions) tele.MiddlewareFunc {
	if opts.Burst <= 0 {
		opts.Burst = 1
	}
	if opts.IdleTTL <= 0 {
		opts.IdleTTL = 10 * time.Minute
	}
	var (
		mu       sync.Mutex
		limiters = make(map[int64]*userLimiter)
		lastGC   = time.Now()
	)
	allow := func(userID int64, now time.Time) bool {
		mu.Lock()
		defer mu.Unlock()
		if now.Sub(lastGC) > opts.IdleTTL {
			for id, l := range limiters {
				if now.Sub(l.lastSeen) > opts.IdleTTL {
					delete(limiters, id)
				}
			}
			lastGC = now
		}
		l, ok := limiters[userID]
		if !ok {
			l = &userLimiter{lim: rate.NewLimiter(rate.Every(opts.Interval), opts.Burst)}
			limiters[userID] = l
		}
		l.lastSeen = now
		return l.lim.AllowN(now, 1)
	}

	return func(next tele.HandlerFunc) tele.HandlerFunc {
		return func(c tele.Context) error {
			user := c.Sender()
			if user == nil || opts.Interval <= 0 {
				return next(c)
			}
			kind := UpdateKind(c.Update())
			if kind == "checkout" || kind == "payment" {
				return next(c)
			}
			if _, skip := opts.Exclude[kind]; skip {
				return next(c)
			}
			if allow(user.ID, time.Now()) {
				return next(c)
			}
			logger.Warn(tghelpers.BuildContext(c), "tg", "tg.rate_limit",
				slog.String("status", "rate_limited"),
				slog.String("kind", kind),
			)
			if opts.OnLimited != nil {
				_ = opts.OnLimited(c)
			}
			return nil
		}
	}
}
