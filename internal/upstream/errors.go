package upstream

import (
	"net/http"

	"github.com/n0madic/go-tgi-worker/internal/codec"
)

// UpstreamError is a backend reply other than 200.
type UpstreamError struct {
	StatusCode int
	Body       []byte
	Headers    http.Header
}

func (e *UpstreamError) Error() string {
	return codec.FormatUpstreamErrorWithHeaders(e.StatusCode, e.Body, e.Headers)
}
