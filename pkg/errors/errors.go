package errors

import (
	stdErrors "errors"
	"fmt"
)

// Code is the operator-facing upload failure taxonomy recorded on a lesson.
type Code string

const (
	CodeQuotaExceeded Code = "QUOTA_EXCEEDED"
	CodeAuth          Code = "AUTH_ERROR"
	CodeUnknown       Code = "UNKNOWN_ERROR"
)

// QuotaMessage is shown to learners instead of the host's quota diagnostics.
const QuotaMessage = "Daily upload limit reached. Please try again tomorrow."

type Metadata struct {
	// LessonStatus is the terminal lesson status written for the code.
	LessonStatus string
	// Propagate reports whether the invocation must fail after recording.
	Propagate bool
	// PublicMessage is written to the lesson when UseCauseMessage is false.
	PublicMessage   string
	UseCauseMessage bool
}

var metadataByCode = map[Code]Metadata{
	CodeQuotaExceeded: {
		LessonStatus:    "upload_blocked",
		Propagate:       false,
		PublicMessage:   QuotaMessage,
		UseCauseMessage: false,
	},
	CodeAuth: {
		LessonStatus:    "failed",
		Propagate:       true,
		PublicMessage:   "video host rejected the upload credentials",
		UseCauseMessage: true,
	},
	CodeUnknown: {
		LessonStatus:    "failed",
		Propagate:       true,
		PublicMessage:   "video upload failed",
		UseCauseMessage: true,
	},
}

func MetadataFor(code Code) Metadata {
	if meta, ok := metadataByCode[code]; ok {
		return meta
	}
	return metadataByCode[CodeUnknown]
}

func (c Code) IsValid() bool {
	_, ok := metadataByCode[c]
	return ok
}

func (c Code) String() string { return string(c) }

type Error struct {
	code    Code
	message string
	cause   error
}

func New(code Code, message string) *Error {
	return &Error{code: code, message: message}
}

func Wrap(code Code, err error, message string) *Error {
	if err == nil {
		return New(code, message)
	}
	return &Error{code: code, message: message, cause: err}
}

func (e *Error) Code() Code {
	if e == nil {
		return CodeUnknown
	}
	return e.code
}

func (e *Error) Message() string {
	if e == nil {
		return ""
	}
	return e.message
}

// LessonMessage is the text persisted in the lesson's error_message column.
func (e *Error) LessonMessage() string {
	if e == nil {
		return ""
	}
	meta := MetadataFor(e.code)
	if !meta.UseCauseMessage {
		return meta.PublicMessage
	}
	if e.cause != nil {
		return e.cause.Error()
	}
	if e.message != "" {
		return e.message
	}
	return meta.PublicMessage
}

func (e *Error) Error() string {
	if e == nil {
		return ""
	}
	if e.cause != nil {
		return fmt.Sprintf("%s: %s: %v", e.code, e.message, e.cause)
	}
	return fmt.Sprintf("%s: %s", e.code, e.message)
}

func (e *Error) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.cause
}

func As(err error) *Error {
	if err == nil {
		return nil
	}
	var typed *Error
	if stdErrors.As(err, &typed) {
		return typed
	}
	return nil
}

// CodeOf returns the taxonomy code carried by err, or CodeUnknown.
func CodeOf(err error) Code {
	if typed := As(err); typed != nil {
		return typed.Code()
	}
	return CodeUnknown
}
