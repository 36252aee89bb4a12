package net

import (
	perr "taplist/internal/platform/errors"
)

// Wire is the JSON error envelope every transport writes. Success bodies
// are endpoint-shaped DTOs and carry request_id themselves
type Wire struct {
	Success   bool       `json:"success"`
	Error     *perr.Wire `json:"error,omitempty"`
	RequestID string     `json:"request_id,omitempty"`
}

// Error maps err to its HTTP status and envelope. A nil err still yields
// a well-formed 500 so sloppy call sites cannot write an empty body
func Error(err error, reqID string) (int, Wire) {
	if err == nil {
		err = perr.Internalf("error reply built without an error")
	}
	w := perr.WireFrom(err)
	return perr.HTTPStatus(err), Wire{
		Error:     &w,
		RequestID: reqID,
	}
}
