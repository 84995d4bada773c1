package database

import "errors"

var (
	// ErrMediaNotFound is returned when a media record is not found.
	ErrMediaNotFound = errors.New("media record not found")
	// ErrSessionNotCollecting is returned when an item is added to a batch
	// session that is gone or no longer collecting.
	ErrSessionNotCollecting = errors.New("batch session is not collecting")
)

// IsNotFound reports whether err means the record does not exist.
func IsNotFound(err error) bool {
	return errors.Is(err, ErrMediaNotFound)
}
