package netutil

import (
	"errors"
	"fmt"
	"net"
	"net/url"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	tele "gopkg.in/telebot.v4"
)

type timeoutErr struct{}

func (timeoutErr) Error() string   { return "i/o timeout" }
func (timeoutErr) Timeout() bool   { return true }
func (timeoutErr) Temporary() bool { return true }

// wrapped hides the flood error behind Unwrap without calling its Error method.
type wrapped struct{ err error }

func (w wrapped) Error() string { return "wrapped" }
func (w wrapped) Unwrap() error { return w.err }

func TestShouldRetry(t *testing.T) {
	assert.False(t, ShouldRetry(nil))
	assert.False(t, ShouldRetry(errors.New("bad request")))

	dial := &net.OpError{Op: "dial", Net: "tcp", Err: errors.New("connection refused")}
	assert.True(t, ShouldRetry(dial))
	assert.True(t, ShouldRetry(fmt.Errorf("send: %w", dial)))

	assert.True(t, ShouldRetry(&url.Error{Op: "Post", URL: "https://api.telegram.org", Err: timeoutErr{}}))
	assert.True(t, ShouldRetry(tele.FloodError{RetryAfter: 3}))
}

func TestRetryAfter(t *testing.T) {
	d, ok := RetryAfter(wrapped{tele.FloodError{RetryAfter: 2}})
	assert.True(t, ok)
	assert.Equal(t, 2*time.Second, d)

	_, ok = RetryAfter(errors.New("nope"))
	assert.False(t, ok)
}
