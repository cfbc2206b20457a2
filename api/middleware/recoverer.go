package middleware

import (
	"fmt"
	"net/http"

	"github.com/angelmondragon/guruji-backend/api/responses"
	pkgerrors "github.com/angelmondragon/guruji-backend/pkg/errors"
	"github.com/angelmondragon/guruji-backend/pkg/logger"
)

// Recoverer turns a handler panic into a 500 envelope. http.ErrAbortHandler
// is re-panicked so net/http can abort the connection.
func Recoverer(logg *logger.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			defer func() {
				rec := recover()
				if rec == nil {
					return
				}
				if rec == http.ErrAbortHandler {
					panic(rec)
				}
				ctx := r.Context()
				if logg != nil {
					ctx = logg.WithField(ctx, "panic", fmt.Sprint(rec))
				}
				err := pkgerrors.Wrap(pkgerrors.CodeUnknown, fmt.Errorf("panic: %v", rec), "ops handler panic")
				responses.WriteError(ctx, logg, w, http.StatusInternalServerError, err, nil)
			}()
			next.ServeHTTP(w, r)
		})
	}
}
