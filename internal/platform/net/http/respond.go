package http

import (
	"encoding/json"
	stdhttp "net/http"

	pnet "taplist/internal/platform/net"
)

// Envelope is the standard error body for all endpoints. Success bodies
// are endpoint-shaped DTOs and carry request_id themselves
type Envelope = pnet.Wire

// ReplyMeta is embedded by success DTOs so the writer can stamp the request id
type ReplyMeta struct {
	RequestID string `json:"request_id,omitempty"`
}

// SetRequestID implements the writer's injection seam
func (m *ReplyMeta) SetRequestID(id string) { m.RequestID = id }

// JSON writes v as application/json with the given status
func JSON(w stdhttp.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// RespondError maps a project error into the error envelope and writes it
func RespondError(w stdhttp.ResponseWriter, r *stdhttp.Request, err error) {
	status, body := pnet.Error(err, pnet.RequestID(r.Context()))
	JSON(w, status, body)
}

func stampRequestID(r *stdhttp.Request, data any) {
	if s, ok := data.(interface{ SetRequestID(string) }); ok {
		if reqID := pnet.RequestID(r.Context()); reqID != "" {
			s.SetRequestID(reqID)
		}
	}
}

// Response is what return-style handlers produce; zero Status means 200
type Response struct {
	Status int
	Body   any
	// optional extra headers
	Header stdhttp.Header
}

// Handle adapts a Response-returning handler to net/http
func Handle(h func(r *stdhttp.Request) Response) stdhttp.HandlerFunc {
	return func(w stdhttp.ResponseWriter, r *stdhttp.Request) {
		h(r).write(w, r)
	}
}

func (resp Response) write(w stdhttp.ResponseWriter, r *stdhttp.Request) {
	status := resp.Status
	if status == 0 {
		status = stdhttp.StatusOK
	}
	if resp.Header != nil {
		for k, vv := range resp.Header {
			for _, v := range vv {
				w.Header().Add(k, v)
			}
		}
	}
	if status == stdhttp.StatusNoContent {
		w.WriteHeader(stdhttp.StatusNoContent)
		return
	}

	// an error body decides its own status
	if err, ok := resp.Body.(error); ok && err != nil {
		RespondError(w, r, err)
		return
	}

	stampRequestID(r, resp.Body)
	JSON(w, status, resp.Body)
}

// OK returns a 200 response
func OK(data any) Response { return Response{Status: stdhttp.StatusOK, Body: data} }

// NoContent returns a 204 response
func NoContent() Response { return Response{Status: stdhttp.StatusNoContent} }

// Error returns a response that maps the error to status and envelope
func Error(err error) Response { return Response{Body: err} }
