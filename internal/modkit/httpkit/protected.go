package httpkit

import (
	"taplist/internal/platform/net/middleware"
)

// Protected groups routes under bearer auth. Handlers registered inside fn
// can read the actor the middleware stamped via Actor
func Protected(r Router, p middleware.AuthPort, fn func(Router)) {
	r.Group(func(gr Router) {
		gr.Use(Auth(p))
		fn(gr)
	})
}
