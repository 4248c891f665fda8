package ldap

import (
	"errors"
	"fmt"
	"strings"

	"github.com/go-ldap/ldap/v3"
)

var (
	// ErrNotConnected is returned by operations on a client that has no
	// connection yet.
	ErrNotConnected = errors.New("ldap: client is not connected")

	// ErrAlreadyConnected is returned by Connect when the client already
	// holds a connection.
	ErrAlreadyConnected = errors.New("ldap: client is already connected")

	// ErrEmptyDN is the diagnostic of the invalid DN syntax error returned
	// by Rename when the new DN has no RDN.
	ErrEmptyDN = errors.New("ldap: new DN is empty")
)

// ErrorCategory represents different categories of LDAP errors.
//
// Categories are a convenience for callers; Client never rewrites the errors
// it forwards.
type ErrorCategory string

const (
	ErrorCategoryConnection     ErrorCategory = "connection"
	ErrorCategoryAuthentication ErrorCategory = "authentication"
	ErrorCategoryPermission     ErrorCategory = "permission"
	ErrorCategoryNotFound       ErrorCategory = "not_found"
	ErrorCategoryConflict       ErrorCategory = "conflict"
	ErrorCategoryValidation     ErrorCategory = "validation"
	ErrorCategoryServer         ErrorCategory = "server"
	ErrorCategoryUnknown        ErrorCategory = "unknown"
)

// ResultCode returns the LDAP result code carried by err, if any.
func ResultCode(err error) (uint16, bool) {
	var ldapErr *ldap.Error
	if errors.As(err, &ldapErr) {
		return ldapErr.ResultCode, true
	}
	return 0, false
}

// CategoryOf returns the category of an error.
func CategoryOf(err error) ErrorCategory {
	if err == nil {
		return ErrorCategoryUnknown
	}

	if errors.Is(err, ErrNotConnected) {
		return ErrorCategoryConnection
	}

	if code, ok := ResultCode(err); ok {
		return categorizeCode(code)
	}

	return categorizeGenericError(err)
}

// categorizeCode categorizes an error based on LDAP result code.
func categorizeCode(code uint16) ErrorCategory {
	switch code {
	case ldap.LDAPResultInvalidCredentials,
		ldap.LDAPResultInappropriateAuthentication,
		ldap.LDAPResultStrongAuthRequired,
		ldap.LDAPResultAuthMethodNotSupported:
		return ErrorCategoryAuthentication

	case ldap.LDAPResultInsufficientAccessRights,
		ldap.LDAPResultUnwillingToPerform,
		ldap.LDAPResultConfidentialityRequired:
		return ErrorCategoryPermission

	case ldap.LDAPResultNoSuchObject,
		ldap.LDAPResultNoSuchAttribute,
		ldap.LDAPResultUndefinedAttributeType:
		return ErrorCategoryNotFound

	case ldap.LDAPResultEntryAlreadyExists,
		ldap.LDAPResultAttributeOrValueExists,
		ldap.LDAPResultObjectClassViolation,
		ldap.LDAPResultNotAllowedOnNonLeaf:
		return ErrorCategoryConflict

	case ldap.LDAPResultInvalidAttributeSyntax,
		ldap.LDAPResultConstraintViolation,
		ldap.LDAPResultInvalidDNSyntax,
		ldap.LDAPResultNamingViolation,
		ldap.LDAPResultFilterError:
		return ErrorCategoryValidation

	case ldap.LDAPResultServerDown,
		ldap.LDAPResultUnavailable,
		ldap.LDAPResultBusy,
		ldap.LDAPResultTimeLimitExceeded,
		ldap.LDAPResultAdminLimitExceeded:
		return ErrorCategoryServer

	case ldap.ErrorNetwork,
		ldap.LDAPResultConnectError,
		ldap.LDAPResultProtocolError:
		return ErrorCategoryConnection

	default:
		return ErrorCategoryUnknown
	}
}

// categorizeGenericError categorizes non-LDAP errors.
func categorizeGenericError(err error) ErrorCategory {
	errStr := strings.ToLower(err.Error())

	if strings.Contains(errStr, "connection") ||
		strings.Contains(errStr, "network") ||
		strings.Contains(errStr, "timeout") ||
		strings.Contains(errStr, "broken pipe") {
		return ErrorCategoryConnection
	}

	return ErrorCategoryUnknown
}

// IsRetryableError reports whether err describes a transient condition.
// Client never retries; this is for callers that want to.
func IsRetryableError(err error) bool {
	if err == nil {
		return false
	}

	if code, ok := ResultCode(err); ok {
		switch code {
		case ldap.LDAPResultBusy,
			ldap.LDAPResultUnavailable,
			ldap.LDAPResultServerDown,
			ldap.LDAPResultTimeLimitExceeded,
			ldap.LDAPResultConnectError,
			ldap.ErrorNetwork:
			return true
		default:
			return false
		}
	}

	errStr := strings.ToLower(err.Error())
	for _, pattern := range []string{"timeout", "broken pipe", "connection reset", "temporary failure"} {
		if strings.Contains(errStr, pattern) {
			return true
		}
	}

	return false
}

// IsNotFoundError checks if an error indicates a "not found" condition.
func IsNotFoundError(err error) bool {
	return CategoryOf(err) == ErrorCategoryNotFound
}

// IsConflictError checks if an error indicates a conflict (already exists).
func IsConflictError(err error) bool {
	return CategoryOf(err) == ErrorCategoryConflict
}

// IsAuthenticationError checks if an error indicates an authentication problem.
func IsAuthenticationError(err error) bool {
	return CategoryOf(err) == ErrorCategoryAuthentication
}

// IsPermissionError checks if an error indicates a permission problem.
func IsPermissionError(err error) bool {
	return CategoryOf(err) == ErrorCategoryPermission
}

// CodeMessage returns a human-readable description of an LDAP result code.
func CodeMessage(code uint16) string {
	if text, ok := ldap.LDAPResultCodeMap[code]; ok {
		return text
	}
	return fmt.Sprintf("Unknown LDAP result code %d", code)
}
