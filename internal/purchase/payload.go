package purchase

import (
	"errors"
	"strings"
)

// PayloadPrefix marks invoice payloads issued by this workflow.
const PayloadPrefix = "buy_"

// ErrInvalidPayload reports a payload this workflow did not issue.
var ErrInvalidPayload = errors.New("invalid payload")

// EncodePayload returns the opaque invoice payload for key.
func EncodePayload(key string) string {
	return PayloadPrefix + key
}

// DecodePayload extracts the item key from an invoice payload.
func DecodePayload(payload string) (string, error) {
	key, ok := strings.CutPrefix(payload, PayloadPrefix)
	if !ok || strings.TrimSpace(key) == "" {
		return "", ErrInvalidPayload
	}
	return key, nil
}
