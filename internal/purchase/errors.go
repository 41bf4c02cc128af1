package purchase

import (
	"errors"
	"fmt"
	"strings"
)

// Rejection reasons double as error codes in logs and metrics.
const (
	ReasonNotFound       = "NOT_FOUND"
	ReasonAlreadyOwned   = "ALREADY_OWNED"
	ReasonInvalidPayload = "INVALID_PAYLOAD"
	ReasonUnauthorized   = "UNAUTHORIZED"
)

// PolicyRejection ends a purchase step by rule. It is never retried.
type PolicyRejection struct {
	Reason  string
	ItemKey string
}

func (e *PolicyRejection) Error() string {
	msg := "purchase rejected: " + strings.ToLower(strings.ReplaceAll(e.Reason, "_", " "))
	if e.ItemKey != "" {
		msg += " (" + e.ItemKey + ")"
	}
	return msg
}

// Code implements the router's error coder.
func (e *PolicyRejection) Code() string { return e.Reason }

// ErrUnknownBuyer is the cause of a RecordingFailure for a payer the store
// has never seen.
var ErrUnknownBuyer = errors.New("purchase: buyer not in store")

// RecordingFailure means payment was captured but the store did not record it.
type RecordingFailure struct {
	ItemKey string
	Err     error
}

func (e *RecordingFailure) Error() string {
	return fmt.Sprintf("record purchase %s: %v", e.ItemKey, e.Err)
}

func (e *RecordingFailure) Unwrap() error { return e.Err }

// Code implements the router's error coder.
func (e *RecordingFailure) Code() string { return "RECORDING_FAILURE" }

// DeliveryFailure means no asset reached the buyer. The purchase record stays.
type DeliveryFailure struct {
	ItemKey string
	Reason  string
	Err     error
}

func (e *DeliveryFailure) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("deliver %s: %s: %v", e.ItemKey, e.Reason, e.Err)
	}
	return fmt.Sprintf("deliver %s: %s", e.ItemKey, e.Reason)
}

func (e *DeliveryFailure) Unwrap() error { return e.Err }

// Code implements the router's error coder.
func (e *DeliveryFailure) Code() string { return "DELIVERY_FAILURE" }

// Surfaced reports whether err was already explained to the user by the
// workflow, so outer layers must not add a generic failure message.
func Surfaced(err error) bool {
	var (
		pr *PolicyRejection
		rf *RecordingFailure
		df *DeliveryFailure
	)
	return errors.As(err, &pr) || errors.As(err, &rf) || errors.As(err, &df)
}
