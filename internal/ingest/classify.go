package ingest

import (
	"errors"
	"net/http"
	"strings"

	"golang.org/x/oauth2"
	"google.golang.org/api/googleapi"

	pkgerrors "github.com/angelmondragon/guruji-backend/pkg/errors"
)

// Host error message fragments. Matching is case-insensitive.
const (
	NeedleQuota                    = "quota"
	NeedleQuotaExceeded            = "quotaExceeded"
	NeedleDailyUploadLimitExceeded = "dailyUploadLimitExceeded"
	NeedleUploadLimitExceeded      = "uploadLimitExceeded"

	NeedleUnauthorized = "unauthorized"
	NeedleInvalidGrant = "invalid_grant"
	NeedleInvalidToken = "invalid_token"
)

// Rule maps a host failure to a taxonomy code.
type Rule struct {
	Name    string
	Code    pkgerrors.Code
	Status  int
	Needles []string
}

func (r Rule) matches(status int, msg string) bool {
	if r.Status != 0 && status == r.Status {
		return true
	}
	for _, needle := range r.Needles {
		if strings.Contains(msg, strings.ToLower(needle)) {
			return true
		}
	}
	return false
}

// Rules are evaluated top to bottom; the first match wins and anything left
// over is UNKNOWN_ERROR.
var Rules = []Rule{
	{
		Name:    "quota",
		Code:    pkgerrors.CodeQuotaExceeded,
		Status:  http.StatusForbidden,
		Needles: []string{NeedleQuota, NeedleQuotaExceeded, NeedleDailyUploadLimitExceeded, NeedleUploadLimitExceeded},
	},
	{
		Name:    "auth",
		Code:    pkgerrors.CodeAuth,
		Status:  http.StatusUnauthorized,
		Needles: []string{NeedleUnauthorized, NeedleInvalidGrant, NeedleInvalidToken},
	},
}

// Classify wraps a host failure into a taxonomy error. Errors that already
// carry a code are returned as they are.
func Classify(err error) *pkgerrors.Error {
	if err == nil {
		return nil
	}
	if typed := pkgerrors.As(err); typed != nil {
		return typed
	}
	status := httpStatus(err)
	msg := strings.ToLower(err.Error())
	for _, rule := range Rules {
		if rule.matches(status, msg) {
			return pkgerrors.Wrap(rule.Code, err, rule.Name)
		}
	}
	return pkgerrors.Wrap(pkgerrors.CodeUnknown, err, "unclassified")
}

// httpStatus digs the HTTP status out of API and token endpoint errors.
func httpStatus(err error) int {
	var apiErr *googleapi.Error
	if errors.As(err, &apiErr) {
		return apiErr.Code
	}
	var tokenErr *oauth2.RetrieveError
	if errors.As(err, &tokenErr) && tokenErr.Response != nil {
		return tokenErr.Response.StatusCode
	}
	var coded interface{ HTTPStatus() int }
	if errors.As(err, &coded) {
		return coded.HTTPStatus()
	}
	return 0
}
