package generators

import (
	"errors"
	"fmt"
	"net/http"

	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

var ErrRetryable = errors.New("retryable")

// UpstreamError is a non-2xx answer from the model backend.
type UpstreamError struct {
	StatusCode int
	Body       string
}

var _ error = new(UpstreamError)

func (u *UpstreamError) Error() string {
	return fmt.Sprintf("upstream status %d: %s", u.StatusCode, u.Body)
}

// MalformedChunkError reports one stream fragment that could not be decoded.
// The stream itself is still usable.
type MalformedChunkError struct {
	Data string
	Err  error
}

var _ error = new(MalformedChunkError)

func (m *MalformedChunkError) Error() string {
	return fmt.Sprintf("malformed chunk %q: %v", m.Data, m.Err)
}

func (m *MalformedChunkError) Unwrap() error {
	return m.Err
}

func isRetryable(err error) bool {
	if s, ok := status.FromError(err); ok &&
		(s.Code() == codes.ResourceExhausted || s.Code() == codes.Unavailable) {
		return true
	}
	var upstreamErr *UpstreamError
	if errors.As(err, &upstreamErr) {
		return upstreamErr.StatusCode == http.StatusTooManyRequests ||
			upstreamErr.StatusCode == http.StatusServiceUnavailable
	}
	return errors.Is(err, ErrRetryable)
}
