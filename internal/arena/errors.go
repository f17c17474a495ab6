package arena

import (
	"errors"
	"fmt"
	"strings"

	"github.com/go-playground/validator/v10"

	"github.com/emandor/crosseval_service/internal/providers"
)

// ErrNoBackendsSelected means no known backend remained after filtering the
// selection. No upstream calls are made.
var ErrNoBackendsSelected = errors.New("no backends selected")

// ConfigurationError is a server-side misconfiguration detected before any
// network call, such as a missing credential.
type ConfigurationError struct {
	Key string
}

func (e *ConfigurationError) Error() string {
	return fmt.Sprintf("configuration error: %s is not set", e.Key)
}

// RequestValidationError describes a malformed request body.
type RequestValidationError struct {
	Problems []string
	Err      error
}

func (e *RequestValidationError) Error() string {
	if len(e.Problems) == 0 {
		return "invalid request"
	}
	return "invalid request: " + strings.Join(e.Problems, "; ")
}

func (e *RequestValidationError) Unwrap() error { return e.Err }

func newRequestValidationError(err error) *RequestValidationError {
	rve := &RequestValidationError{Err: err}
	var verrs validator.ValidationErrors
	if errors.As(err, &verrs) {
		for _, fe := range verrs {
			rve.Problems = append(rve.Problems, fmt.Sprintf("%s failed %q", fe.Namespace(), fe.Tag()))
		}
		return rve
	}
	if err != nil {
		rve.Problems = append(rve.Problems, err.Error())
	}
	return rve
}

// AllBackendsFailedError is returned when not a single selected backend
// answered successfully. Statuses holds one entry per selected backend.
type AllBackendsFailedError struct {
	Statuses map[string]providers.BackendStatus
}

func (e *AllBackendsFailedError) Error() string {
	return fmt.Sprintf("all %d selected backends failed", len(e.Statuses))
}
