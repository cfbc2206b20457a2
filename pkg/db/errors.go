package db

import (
	"errors"
	"strings"

	"gorm.io/gorm"
)

// IsNotFound reports whether err is gorm's record-not-found sentinel.
func IsNotFound(err error) bool {
	return errors.Is(err, gorm.ErrRecordNotFound)
}

// IsTransient reports connection-level failures worth retrying later, as
// opposed to constraint or syntax errors that will fail the same way again.
func IsTransient(err error) bool {
	if err == nil {
		return false
	}
	msg := strings.ToLower(err.Error())
	for _, needle := range []string{"connection refused", "connection reset", "broken pipe", "timeout", "too many clients", "bad connection"} {
		if strings.Contains(msg, needle) {
			return true
		}
	}
	return false
}
