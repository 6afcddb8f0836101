package model

import (
	"errors"
	"fmt"
)

var (
	// ErrConfiguration marks invalid or missing settings, fatal at startup
	ErrConfiguration = errors.New("configuration error")

	// ErrTransport marks a lost notification connection or a failed remote call
	ErrTransport = errors.New("transport error")

	// ErrDecode marks a notification or listing that cannot be parsed
	ErrDecode = errors.New("decode error")

	ErrTriggerFailed   = errors.New("trigger failed")
	ErrDeleteFile      = errors.New("could not delete resource")
	ErrInvalidFileInfo = errors.New("invalid remote file info")
	ErrInvalidPattern  = errors.New("invalid interest pattern")

	ErrQueueClosed    = errors.New("queue is closed")
	ErrQueueCompleted = errors.New("queue is completed")
)

// TriggerError is returned when the external trigger exits non-zero.
type TriggerError struct {
	FilePath string
	Outcome  *ProcessingOutcome
}

func (e *TriggerError) Error() string {
	if e.Outcome != nil && e.Outcome.StandardError != "" {
		return fmt.Sprintf("trigger failed for %s (exit code %d): %s",
			e.FilePath, e.Outcome.ExitCode, e.Outcome.StandardError)
	}
	code := -1
	if e.Outcome != nil {
		code = e.Outcome.ExitCode
	}
	return fmt.Sprintf("trigger failed for %s (exit code %d)", e.FilePath, code)
}

func (e *TriggerError) Unwrap() error {
	return ErrTriggerFailed
}

// DeleteFileError carries the unexpected response of a remote deletion.
type DeleteFileError struct {
	Name       string
	DirPath    string
	StatusCode int
	Body       string
}

func (e *DeleteFileError) Error() string {
	return fmt.Sprintf("could not delete resource %s/%s (status %d): '%s'",
		e.DirPath, e.Name, e.StatusCode, e.Body)
}

func (e *DeleteFileError) Unwrap() error {
	return ErrDeleteFile
}
