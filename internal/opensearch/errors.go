package opensearch

import (
	"errors"
	"fmt"
	"net/http"
)

// ErrNoEndpoint is returned when no collection endpoint is configured.
var ErrNoEndpoint = errors.New("opensearch endpoint not configured")

// ResponseError is a non-2xx response from the collection.
type ResponseError struct {
	StatusCode int
	Body       string
}

func (e *ResponseError) Error() string {
	if e.Body == "" {
		return fmt.Sprintf("opensearch: %d %s", e.StatusCode, http.StatusText(e.StatusCode))
	}
	return fmt.Sprintf("opensearch: %d %s: %s", e.StatusCode, http.StatusText(e.StatusCode), e.Body)
}

// IsNotFound reports whether err is a 404 response.
func IsNotFound(err error) bool {
	var re *ResponseError
	return errors.As(err, &re) && re.StatusCode == http.StatusNotFound
}
