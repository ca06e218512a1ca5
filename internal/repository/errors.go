// Package repository declares the errors shared by the notification store
// implementations (Postgres and in-memory).
package repository

import "errors"

var (
	ErrNotificationNotFound = errors.New("notification not found")
	ErrAlreadySent          = errors.New("notification already sent")
)
