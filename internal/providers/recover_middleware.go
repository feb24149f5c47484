package providers

import (
	"net/http"
	"runtime/debug"
)

func Recover(logger Logger, next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		defer func() {
			if err := recover(); err != nil {
				if err == http.ErrAbortHandler {
					panic(err)
				}
				logger.Errorf(TypeApp, "Panic on %s %s [%s]: %v\n%s", r.Method, r.URL.Path, requestIDOf(r), err, debug.Stack())
				WriteJSONError(w, http.StatusInternalServerError, "Internal server error")
			}
		}()
		next.ServeHTTP(w, r)
	})
}
