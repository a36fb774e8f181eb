package service

import "errors"

var (
	// ErrAlreadyOpen the owner already has an open shift
	ErrAlreadyOpen = errors.New("a shift is already open")
	// ErrNoOpenShift the owner has no open shift (or the requested record does not exist)
	ErrNoOpenShift = errors.New("no open shift")
	// ErrAlreadyClosed the record was punched out before this request
	ErrAlreadyClosed = errors.New("shift already closed")
	// ErrConcurrentModification conditional writes kept losing to concurrent writers
	ErrConcurrentModification = errors.New("shift modified concurrently")
	// ErrNotOwner the record belongs to another owner
	ErrNotOwner = errors.New("shift belongs to another owner")
	// ErrInvalidOwner empty owner identifier
	ErrInvalidOwner = errors.New("owner id is required")
)
