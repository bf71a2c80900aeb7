package types

import (
	"encoding/json"
	"sync"

	"github.com/go-playground/validator/v10"

	"github.com/VieGym/viegym-sync-client/errors"
)

var (
	validateOnce sync.Once
	validate     *validator.Validate
)

func payloadValidator() *validator.Validate {
	validateOnce.Do(func() {
		validate = validator.New(validator.WithRequiredStructEnabled())
	})
	return validate
}

// DecodeNotification parses and schema-validates a realtime notification
// payload. Malformed or invalid payloads are rejected with a PayloadError so
// the caller can drop them without tearing down the subscription.
func DecodeNotification(body []byte) (Notification, error) {
	var n Notification
	if err := json.Unmarshal(body, &n); err != nil {
		return Notification{}, errors.NewPayloadError(err, "malformed notification payload")
	}
	if err := payloadValidator().Struct(n); err != nil {
		return Notification{}, errors.NewPayloadError(err, "notification payload failed schema validation")
	}
	return n, nil
}

// DecodeChatMessage parses and schema-validates a realtime chat payload.
func DecodeChatMessage(body []byte) (ChatMessage, error) {
	var m ChatMessage
	if err := json.Unmarshal(body, &m); err != nil {
		return ChatMessage{}, errors.NewPayloadError(err, "malformed chat message payload")
	}
	if err := payloadValidator().Struct(m); err != nil {
		return ChatMessage{}, errors.NewPayloadError(err, "chat message payload failed schema validation")
	}
	return m, nil
}

// DecodeLikeUpdate parses and schema-validates a like counter payload.
func DecodeLikeUpdate(body []byte) (LikeUpdate, error) {
	var u LikeUpdate
	if err := json.Unmarshal(body, &u); err != nil {
		return LikeUpdate{}, errors.NewPayloadError(err, "malformed like update payload")
	}
	if err := payloadValidator().Struct(u); err != nil {
		return LikeUpdate{}, errors.NewPayloadError(err, "like update payload failed schema validation")
	}
	return u, nil
}
