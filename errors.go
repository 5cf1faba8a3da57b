package medwire

import (
	"fmt"

	"github.com/medwire/medwire-go/status"
)

// MalformedResponseError reports a response document missing required
// structure: not well-formed XML, no status node, or a non-zero status with
// no error block. Fatal for the call, never retried.
type MalformedResponseError struct {
	Reason string
}

func (e *MalformedResponseError) Error() string {
	return fmt.Sprintf("medwire: malformed response: %s", e.Reason)
}

// IssuanceError reports that credential issuance itself was rejected by the
// service. It propagates to every caller coalesced onto the failed exchange.
type IssuanceError struct {
	Status  int
	Message string
}

func (e *IssuanceError) Error() string {
	if e.Message != "" {
		return fmt.Sprintf("medwire: credential issuance rejected with status %d: %s", e.Status, e.Message)
	}
	return fmt.Sprintf("medwire: credential issuance rejected with status %d", e.Status)
}

// ServiceError reports a non-zero status on an ordinary call, classified
// through the status registry. RawStatus keeps the wire identifier even when
// the category is unknown.
type ServiceError struct {
	Category  status.Category
	Message   string
	RawStatus int
}

func (e *ServiceError) Error() string {
	if e.Message != "" {
		return fmt.Sprintf("medwire: service returned %s (status %d): %s", e.Category, e.RawStatus, e.Message)
	}
	return fmt.Sprintf("medwire: service returned %s (status %d)", e.Category, e.RawStatus)
}
