package middleware

import (
	"fmt"
	"io"
	"net/http"

	"github.com/labstack/echo/v4"
)

// BodyLimit caps request body sizes. routeMB maps exact request paths to
// their cap in megabytes; anything else gets defaultMB. Scan uploads carry
// higher caps than documents, so the predict routes are registered
// individually.
//
// Oversized requests are rejected with 413 either up front (Content-Length)
// or mid-read when the declared length was missing or wrong.
func BodyLimit(defaultMB int64, routeMB map[string]int64) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			req := c.Request()
			if req.Body == nil || req.Body == http.NoBody {
				return next(c)
			}

			limitMB := defaultMB
			if mb, ok := routeMB[req.URL.Path]; ok {
				limitMB = mb
			}
			limit := limitMB << 20

			if req.ContentLength > limit {
				return echo.NewHTTPError(http.StatusRequestEntityTooLarge,
					fmt.Sprintf("File too large. Maximum allowed: %d MB.", limitMB))
			}
			req.Body = &limitedReadCloser{ReadCloser: req.Body, remaining: limit, limitMB: limitMB}
			return next(c)
		}
	}
}

type limitedReadCloser struct {
	io.ReadCloser
	remaining int64
	limitMB   int64
	exceeded  bool
}

func (r *limitedReadCloser) Read(p []byte) (n int, err error) {
	if r.exceeded {
		return 0, r.tooLarge()
	}

	// Read at most remaining+1 bytes so overflow is detectable.
	toRead := int64(len(p))
	if toRead > r.remaining+1 {
		toRead = r.remaining + 1
	}

	n, err = r.ReadCloser.Read(p[:toRead])
	r.remaining -= int64(n)
	if r.remaining < 0 {
		r.exceeded = true
		return 0, r.tooLarge()
	}
	return n, err
}

func (r *limitedReadCloser) tooLarge() error {
	return echo.NewHTTPError(http.StatusRequestEntityTooLarge,
		fmt.Sprintf("File too large. Maximum allowed: %d MB.", r.limitMB))
}
