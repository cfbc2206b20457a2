package enums

import "fmt"

// LessonStatus describes where a lesson's video is in the ingestion lifecycle.
type LessonStatus string

const (
	LessonStatusNone          LessonStatus = "none"
	LessonStatusProcessing    LessonStatus = "processing"
	LessonStatusReady         LessonStatus = "ready"
	LessonStatusFailed        LessonStatus = "failed"
	LessonStatusUploadBlocked LessonStatus = "upload_blocked"
)

var validLessonStatuses = []LessonStatus{
	LessonStatusNone,
	LessonStatusProcessing,
	LessonStatusReady,
	LessonStatusFailed,
	LessonStatusUploadBlocked,
}

// String returns the literal string for the status.
func (s LessonStatus) String() string {
	return string(s)
}

// IsValid reports whether the status is known.
func (s LessonStatus) IsValid() bool {
	for _, candidate := range validLessonStatuses {
		if candidate == s {
			return true
		}
	}
	return false
}

// IsTerminal reports whether no further ingestion writes are expected.
func (s LessonStatus) IsTerminal() bool {
	switch s {
	case LessonStatusReady, LessonStatusFailed, LessonStatusUploadBlocked:
		return true
	default:
		return false
	}
}

// ParseLessonStatus converts raw input into a LessonStatus.
func ParseLessonStatus(value string) (LessonStatus, error) {
	for _, candidate := range validLessonStatuses {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid lesson status %q", value)
}
