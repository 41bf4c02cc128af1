package router

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/m3rciful/videoshop/core/telegram/middleware"
)

type rejection struct{}

func (rejection) Error() string { return "already owned" }
func (rejection) Code() string  { return "already owned" }

type plainError struct{}

func (*plainError) Error() string { return "plain" }

func TestDeriveErrorCode(t *testing.T) {
	assert.Equal(t, "", deriveErrorCode(nil))
	assert.Equal(t, "ALREADY_OWNED", deriveErrorCode(rejection{}))
	assert.Equal(t, "ALREADY_OWNED", deriveErrorCode(fmt.Errorf("confirm: %w", rejection{})))
	assert.Equal(t, "PANIC", deriveErrorCode(&middleware.PanicError{Value: "boom"}))
	assert.Equal(t, "PLAINERROR", deriveErrorCode(&plainError{}))
	assert.Equal(t, "ERRORSTRING", deriveErrorCode(errors.New("x")))
}

func TestNormalizeHandlerName(t *testing.T) {
	assert.Equal(t, "unknown", normalizeHandlerName("  "))
	assert.Equal(t, "mypurchases", normalizeHandlerName("/MyPurchases"))
	assert.Equal(t, "add_video", normalizeHandlerName("add video"))
}
