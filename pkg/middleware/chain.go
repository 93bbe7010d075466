package middleware

import (
	"net/http"

	"github.com/julienschmidt/httprouter"
)

// Chain wraps a single route with middleware. The first middleware is the
// outermost.
func Chain(h httprouter.Handle, mws ...func(http.Handler) http.Handler) httprouter.Handle {
	return func(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
		var next http.Handler = http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			h(w, r, ps)
		})
		for i := len(mws) - 1; i >= 0; i-- {
			next = mws[i](next)
		}
		next.ServeHTTP(w, r)
	}
}
