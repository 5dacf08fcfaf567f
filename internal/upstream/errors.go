package upstream

import (
	"fmt"

	"github.com/go-faster/errors"
)

// The gateway sorts upstream failures into three buckets. Handlers map them
// onto user-facing notices; nothing from upstream is ever fatal.

// ValidationError carries field-level messages from the storefront API,
// mapped 1:1 onto form fields by the UI.
type ValidationError struct {
	Fields map[string]string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("validation failed on %d field(s)", len(e.Fields))
}

// BusinessError is a rule rejection (coupon invalid, out of stock). The
// request was understood and refused; retrying unchanged will not help.
type BusinessError struct {
	Message string
}

func (e *BusinessError) Error() string {
	return e.Message
}

// TransientError is a network or server failure. The operation may succeed
// on a later attempt; the gateway does not retry automatically.
type TransientError struct {
	Status  int
	Message string
}

func (e *TransientError) Error() string {
	if e.Status == 0 {
		return e.Message
	}
	return fmt.Sprintf("upstream returned %d: %s", e.Status, e.Message)
}

// ErrEmptyResponse is returned when a 2xx response carries no usable data.
var ErrEmptyResponse = errors.New("upstream returned empty data")
