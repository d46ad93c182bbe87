package game

import (
	"errors"

	"github.com/couchcryptid/ecogrid-engine/internal/domain"
)

// NotificationKind classifies a Notification.
type NotificationKind string

const (
	KindSuccess NotificationKind = "success"
	KindError   NotificationKind = "error"
	KindWarning NotificationKind = "warning"
)

// Notification is a short user-facing message about the last operation.
type Notification struct {
	Kind    NotificationKind `json:"kind"`
	Message string           `json:"message"`
}

func Success(msg string) Notification { return Notification{Kind: KindSuccess, Message: msg} }
func Warning(msg string) Notification { return Notification{Kind: KindWarning, Message: msg} }
func Error(msg string) Notification   { return Notification{Kind: KindError, Message: msg} }

func rejectionNotice(reason error) Notification {
	if errors.Is(reason, domain.ErrInsufficientFunds) {
		return Error("Insufficient funds!")
	}
	return Error("Select and inspect a location before building.")
}
