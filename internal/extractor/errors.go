package extractor

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
)

// Error is an extraction failure with an HTTP status to report back to
// the client.
type Error struct {
	msg    string
	status int
}

func (e *Error) Error() string   { return e.msg }
func (e *Error) HTTPStatus() int { return e.status }

var (
	// ErrInvalidURL rejects request bodies that do not parse as an
	// http(s) URL.
	ErrInvalidURL = &Error{msg: "invalid URL", status: http.StatusBadRequest}

	// ErrInvalidMimeType rejects upstream responses whose media type the
	// service cannot embed.
	ErrInvalidMimeType = &Error{msg: "invalid MIME type", status: http.StatusUnsupportedMediaType}

	// ErrNoExtractor means no extractor claimed the URL, which cannot
	// happen while the generic extractor is registered.
	ErrNoExtractor = &Error{msg: "no extractor matched", status: http.StatusNotFound}
)

// Failure propagates an unsuccessful upstream status code verbatim.
func Failure(status int) *Error {
	return &Error{
		msg:    fmt.Sprintf("failure: %d %s", status, http.StatusText(status)),
		status: status,
	}
}

// HTTPStatus maps any error to the response status the handler should
// emit. Transport timeouts and refused connections read as upstream
// timeouts; everything unrecognized is an internal error.
func HTTPStatus(err error) int {
	var coded interface{ HTTPStatus() int }
	if errors.As(err, &coded) {
		return coded.HTTPStatus()
	}

	if errors.Is(err, context.DeadlineExceeded) {
		return http.StatusRequestTimeout
	}

	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return http.StatusRequestTimeout
	}

	var opErr *net.OpError
	if errors.As(err, &opErr) {
		return http.StatusRequestTimeout
	}

	return http.StatusInternalServerError
}
