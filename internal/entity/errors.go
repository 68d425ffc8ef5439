package entity

import "errors"

var (
	// Template errors
	ErrTemplateNotFound    = errors.New("template not found")
	ErrChannelNotSupported = errors.New("channel not supported by template")

	// Notification errors
	ErrNotificationNotFound    = errors.New("notification not found")
	ErrValidationFailed        = errors.New("variable validation failed")
	ErrNoChannels              = errors.New("no deliverable channels resolved")
	ErrNotCancellable          = errors.New("notification can no longer be cancelled")
	ErrInvalidStatusTransition = errors.New("invalid status transition")

	// User errors
	ErrUserNotFound = errors.New("user not found")
)
