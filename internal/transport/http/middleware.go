package httptransport

import (
	"net/http"
	"time"

	"github.com/MrLoydHD/eShop/pkg/requestcontext"
)

// requestTime stamps a single request-scoped time into the context so every
// record created for one request shares the same instant.
func requestTime(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ctx := requestcontext.WithTime(r.Context(), time.Now())
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}
