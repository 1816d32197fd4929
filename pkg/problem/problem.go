package problem

import (
	"errors"
	"fmt"
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/rs/zerolog"
)

// Problem is an RFC 7807 problem details document. It doubles as the error
// type carried between the repository, service, and HTTP layers: services
// return *Problem values and the echo error handler serializes them as
// application/problem+json.
type Problem struct {
	Type     string `json:"type"`
	Title    string `json:"title"`
	Status   int    `json:"status"`
	Detail   string `json:"detail,omitempty"`
	Instance string `json:"instance,omitempty"`
}

func (p *Problem) Error() string {
	return fmt.Sprintf("%s: %s", p.Title, p.Detail)
}

// Problem type URIs are stable identifiers; clients may dispatch on them.
const (
	TypeValidation   = "urn:clinic:problem:validation"
	TypeNotFound     = "urn:clinic:problem:not-found"
	TypeConflict     = "urn:clinic:problem:conflict"
	TypeInvalidState = "urn:clinic:problem:invalid-state"
	TypeInternal     = "urn:clinic:problem:internal"
)

// Validation reports malformed or out-of-range input (400).
func Validation(detail string) *Problem {
	return &Problem{
		Type:   TypeValidation,
		Title:  "Validation Failed",
		Status: http.StatusBadRequest,
		Detail: detail,
	}
}

// Validationf is Validation with a formatted detail.
func Validationf(format string, args ...interface{}) *Problem {
	return Validation(fmt.Sprintf(format, args...))
}

// NotFound reports an unknown id or reference (404).
func NotFound(resource string) *Problem {
	return &Problem{
		Type:   TypeNotFound,
		Title:  "Not Found",
		Status: http.StatusNotFound,
		Detail: resource + " not found",
	}
}

// Conflict reports a double-booking or duplicate email (409).
func Conflict(detail string) *Problem {
	return &Problem{
		Type:   TypeConflict,
		Title:  "Conflict",
		Status: http.StatusConflict,
		Detail: detail,
	}
}

// InvalidState reports an illegal status transition (409).
func InvalidState(detail string) *Problem {
	return &Problem{
		Type:   TypeInvalidState,
		Title:  "Invalid State",
		Status: http.StatusConflict,
		Detail: detail,
	}
}

// Internal reports a storage or other unexpected failure (500). The detail is
// deliberately generic; internal error text never reaches the caller.
func Internal() *Problem {
	return &Problem{
		Type:   TypeInternal,
		Title:  "Internal Server Error",
		Status: http.StatusInternalServerError,
		Detail: "an unexpected error occurred",
	}
}

// From extracts a *Problem from err, or nil if err carries none.
func From(err error) *Problem {
	var p *Problem
	if errors.As(err, &p) {
		return p
	}
	return nil
}

// IsNotFound reports whether err is a not-found problem.
func IsNotFound(err error) bool {
	p := From(err)
	return p != nil && p.Type == TypeNotFound
}

// IsConflict reports whether err is a conflict problem.
func IsConflict(err error) bool {
	p := From(err)
	return p != nil && p.Type == TypeConflict
}

// ContentType is the media type for problem responses.
const ContentType = "application/problem+json"

// HTTPErrorHandler returns an echo error handler that renders every error as
// an RFC 7807 problem document. Unknown errors are logged and collapsed into
// a generic 500 so that storage error text is never exposed.
func HTTPErrorHandler(logger zerolog.Logger) echo.HTTPErrorHandler {
	return func(err error, c echo.Context) {
		if c.Response().Committed {
			return
		}

		p := From(err)
		if p == nil {
			var he *echo.HTTPError
			if errors.As(err, &he) {
				p = &Problem{
					Type:   "about:blank",
					Title:  http.StatusText(he.Code),
					Status: he.Code,
					Detail: fmt.Sprintf("%v", he.Message),
				}
			} else {
				logger.Error().Err(err).
					Str("method", c.Request().Method).
					Str("path", c.Request().URL.Path).
					Msg("unhandled error")
				p = Internal()
			}
		}

		// Copy so the shared constructor values are never mutated.
		out := *p
		out.Instance = c.Request().URL.Path

		if c.Request().Method == http.MethodHead {
			_ = c.NoContent(out.Status)
			return
		}
		c.Response().Header().Set(echo.HeaderContentType, ContentType)
		_ = c.JSON(out.Status, &out)
	}
}
