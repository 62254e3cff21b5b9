package httpx

import (
	"log/slog"
	"net/http"
	"runtime/debug"

	"github.com/silaprtnw01/webtoon-be-normal-design/pkg/slogx"
)

// Recovery turns a handler panic into a 500 response.
func Recovery() Middleware {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			defer func() {
				if rec := recover(); rec != nil {
					if rec == http.ErrAbortHandler {
						panic(rec)
					}
					slogx.FromContext(r.Context()).Error("panic recovered",
						slog.Any("panic", rec),
						slog.String("stack", string(debug.Stack())),
					)
					WriteJSON(w, http.StatusInternalServerError, map[string]string{
						"error":             "server_error",
						"error_description": "internal server error",
					})
				}
			}()

			next.ServeHTTP(w, r)
		})
	}
}
