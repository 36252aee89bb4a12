package http

import (
	"net/http"

	"taplist/internal/platform/net/http/bind"
)

// JSONHandler binds and validates a T request body, then wraps fn's result
// in the reply envelope. Bind failures reply 400 without running fn
func JSONHandler[T any](fn func(*http.Request, T) (any, error)) Handler {
	return Handle(func(r *http.Request) Response {
		in, err := bind.ParseJSON[T](r)
		if err != nil {
			return Error(err)
		}
		out, err := fn(r, in)
		if err != nil {
			return Error(err)
		}
		return OK(out)
	})
}
