// Package status maps service-reported numeric status identifiers to named
// error categories.
//
// The table is static and read-only after process start. Classify is total:
// identifiers missing from the table resolve to CategoryUnknown while keeping
// the raw identifier for diagnostics.
package status

import "fmt"

// Category names a class of service outcome.
type Category string

const (
	CategorySuccess           Category = "success"
	CategoryValidationFailed  Category = "validation-failed"
	CategoryInvalidApp        Category = "invalid-application"
	CategoryCredentialExpired Category = "credential-expired"
	CategoryAuthorization     Category = "authorization-failed"
	CategoryRecordNotFound    Category = "record-not-found"
	CategoryServerFailure     Category = "server-failure"
	CategoryUnknown           Category = "unknown"
)

// Code binds a raw wire identifier to its category.
type Code struct {
	ID       int
	Category Category
}

func (c Code) String() string {
	return fmt.Sprintf("%s(%d)", c.Category, c.ID)
}

// Retryable reports whether the code indicates a stale session credential,
// i.e. the call may succeed after a single re-issuance.
func (c Code) Retryable() bool {
	return c.Category == CategoryCredentialExpired
}

// Wire status identifiers observed from the service.
const (
	OK                  = 0
	BadMethod           = 2
	InvalidXML          = 3
	InvalidApp          = 6
	CredentialExpired   = 7
	InvalidCredential   = 8
	AccessDenied        = 11
	InvalidRecordID     = 13
	ServerError         = 500
	SessionTokenExpired = 65
)

var table = map[int]Category{
	OK:                  CategorySuccess,
	BadMethod:           CategoryValidationFailed,
	InvalidXML:          CategoryValidationFailed,
	InvalidApp:          CategoryInvalidApp,
	CredentialExpired:   CategoryCredentialExpired,
	InvalidCredential:   CategoryCredentialExpired,
	AccessDenied:        CategoryAuthorization,
	InvalidRecordID:     CategoryRecordNotFound,
	ServerError:         CategoryServerFailure,
	SessionTokenExpired: CategoryCredentialExpired,
}

// Classify resolves a raw status identifier to a Code. It never fails:
// unmapped identifiers come back as CategoryUnknown with the identifier
// preserved.
func Classify(id int) Code {
	if cat, ok := table[id]; ok {
		return Code{ID: id, Category: cat}
	}
	return Code{ID: id, Category: CategoryUnknown}
}
