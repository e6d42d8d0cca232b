package insurance

import (
	"errors"
	"net/http"

	goerrors "github.com/goliatone/go-errors"
)

const (
	TextCodeValidation          = "VALIDATION_ERROR"
	TextCodeMissingToken        = "MISSING_TOKEN"
	TextCodeMalformedHeader     = "MALFORMED_AUTH_HEADER"
	TextCodeTokenExpired        = "TOKEN_EXPIRED"
	TextCodeTokenInvalid        = "TOKEN_INVALID"
	TextCodeAccountNotFound     = "ACCOUNT_NOT_FOUND"
	TextCodeAccountDeactivated  = "ACCOUNT_DEACTIVATED"
	TextCodeInsufficientRole    = "INSUFFICIENT_ROLE"
	TextCodeForbidden           = "FORBIDDEN"
	TextCodeInvalidCredentials  = "INVALID_CREDENTIALS"
	TextCodeTooManyAttempts     = "TOO_MANY_LOGIN_ATTEMPTS"
	TextCodeInvalidRole         = "INVALID_ROLE"
	TextCodePasswordRequired    = "PASSWORD_REQUIRED"
	TextCodePasswordTooShort    = "PASSWORD_TOO_SHORT"
	TextCodeDuplicateEmail      = "DUPLICATE_EMAIL"
	TextCodeOwnerNotFound       = "OWNER_NOT_FOUND"
	TextCodePolicyNotFound      = "POLICY_NOT_FOUND"
	TextCodeClaimNotFound       = "CLAIM_NOT_FOUND"
	TextCodeNotPolicyOwner      = "NOT_POLICY_OWNER"
	TextCodePolicyNotActive     = "POLICY_NOT_ACTIVE"
	TextCodeInvalidStatus       = "INVALID_STATUS"
	TextCodeInvalidReviewStatus = "INVALID_REVIEW_STATUS"
	TextCodeApprovedRequired    = "APPROVED_AMOUNT_REQUIRED"
	TextCodeApprovedNegative    = "NEGATIVE_APPROVED_AMOUNT"
	TextCodeApprovedExceeds     = "APPROVED_AMOUNT_EXCEEDS_CLAIM"
	TextCodeNumberSpaceFull     = "NUMBER_SPACE_EXHAUSTED"

	TextCodeRecordNotFound    = "RECORD_NOT_FOUND"
	TextCodeStoreConflict     = "STORE_CONFLICT"
	TextCodeStoreUnauthorized = "STORE_UNAUTHORIZED"
	TextCodeSchemaMissing     = "SCHEMA_MISSING"
	TextCodeStoreUnavailable  = "STORE_UNAVAILABLE"
	TextCodeStoreFailure      = "STORE_FAILURE"
)

// Authentication failures

var ErrMissingToken = goerrors.New("Authorization token is missing", goerrors.CategoryAuth).
	WithTextCode(TextCodeMissingToken).
	WithCode(goerrors.CodeUnauthorized)

var ErrMalformedHeader = goerrors.New("Invalid authorization header format", goerrors.CategoryAuth).
	WithTextCode(TextCodeMalformedHeader).
	WithCode(goerrors.CodeUnauthorized)

var ErrTokenExpired = goerrors.New("Token has expired", goerrors.CategoryAuth).
	WithTextCode(TextCodeTokenExpired).
	WithCode(goerrors.CodeUnauthorized)

var ErrTokenInvalid = goerrors.New("Invalid token", goerrors.CategoryAuth).
	WithTextCode(TextCodeTokenInvalid).
	WithCode(goerrors.CodeUnauthorized)

// ErrAccountNotFound is returned when a token points at an account that is gone
var ErrAccountNotFound = goerrors.New("User not found", goerrors.CategoryAuth).
	WithTextCode(TextCodeAccountNotFound).
	WithCode(goerrors.CodeUnauthorized)

var ErrAccountDeactivated = goerrors.New("User account is deactivated", goerrors.CategoryAuthz).
	WithTextCode(TextCodeAccountDeactivated).
	WithCode(goerrors.CodeForbidden)

// ErrInvalidCredentials is shared by unknown email and wrong password
var ErrInvalidCredentials = goerrors.New("Invalid email or password", goerrors.CategoryAuth).
	WithTextCode(TextCodeInvalidCredentials).
	WithCode(goerrors.CodeUnauthorized)

var ErrTooManyAttempts = goerrors.New("Too many login attempts, try again later", goerrors.CategoryRateLimit).
	WithTextCode(TextCodeTooManyAttempts).
	WithCode(http.StatusTooManyRequests)

// Permission failures

var ErrInsufficientRole = goerrors.New("Insufficient permissions", goerrors.CategoryAuthz).
	WithTextCode(TextCodeInsufficientRole).
	WithCode(goerrors.CodeForbidden)

var ErrForbidden = goerrors.New("You do not have permission to perform this action", goerrors.CategoryAuthz).
	WithTextCode(TextCodeForbidden).
	WithCode(goerrors.CodeForbidden)

var ErrNotProfileOwner = goerrors.New("You can only update your own profile", goerrors.CategoryAuthz).
	WithTextCode(TextCodeForbidden).
	WithCode(goerrors.CodeForbidden)

var ErrRoleChangeForbidden = goerrors.New("Only administrators can change user roles", goerrors.CategoryAuthz).
	WithTextCode(TextCodeForbidden).
	WithCode(goerrors.CodeForbidden)

var ErrNotPolicyOwner = goerrors.New("You can only submit claims for your own policies", goerrors.CategoryAuthz).
	WithTextCode(TextCodeNotPolicyOwner).
	WithCode(goerrors.CodeForbidden)

// Account validation

var ErrInvalidRole = goerrors.New("Invalid role. Must be one of: patient, provider, administrator", goerrors.CategoryValidation).
	WithTextCode(TextCodeInvalidRole).
	WithCode(goerrors.CodeBadRequest)

var ErrPasswordRequired = goerrors.New("Password is required", goerrors.CategoryValidation).
	WithTextCode(TextCodePasswordRequired).
	WithCode(goerrors.CodeBadRequest)

var ErrPasswordTooShort = goerrors.New("Password must be at least 8 characters long", goerrors.CategoryValidation).
	WithTextCode(TextCodePasswordTooShort).
	WithCode(goerrors.CodeBadRequest)

var ErrDuplicateEmail = goerrors.New("Email already exists", goerrors.CategoryConflict).
	WithTextCode(TextCodeDuplicateEmail).
	WithCode(goerrors.CodeConflict)

// Lookups

var ErrUserNotFound = goerrors.New("User not found", goerrors.CategoryNotFound).
	WithTextCode(TextCodeAccountNotFound).
	WithCode(goerrors.CodeNotFound)

var ErrOwnerNotFound = goerrors.New("User not found", goerrors.CategoryNotFound).
	WithTextCode(TextCodeOwnerNotFound).
	WithCode(goerrors.CodeNotFound)

var ErrPolicyNotFound = goerrors.New("Policy not found", goerrors.CategoryNotFound).
	WithTextCode(TextCodePolicyNotFound).
	WithCode(goerrors.CodeNotFound)

var ErrClaimNotFound = goerrors.New("Claim not found", goerrors.CategoryNotFound).
	WithTextCode(TextCodeClaimNotFound).
	WithCode(goerrors.CodeNotFound)

// Lifecycle

var ErrPolicyNotActive = goerrors.New("Cannot submit claim for inactive policy", goerrors.CategoryValidation).
	WithTextCode(TextCodePolicyNotActive).
	WithCode(goerrors.CodeBadRequest)

var ErrInvalidReviewStatus = goerrors.New("Invalid status. Must be one of: under_review, approved, denied", goerrors.CategoryValidation).
	WithTextCode(TextCodeInvalidReviewStatus).
	WithCode(goerrors.CodeBadRequest)

var ErrApprovedAmountRequired = goerrors.New("Approved amount is required when approving a claim", goerrors.CategoryValidation).
	WithTextCode(TextCodeApprovedRequired).
	WithCode(goerrors.CodeBadRequest)

var ErrNegativeApprovedAmount = goerrors.New("Approved amount cannot be negative", goerrors.CategoryValidation).
	WithTextCode(TextCodeApprovedNegative).
	WithCode(goerrors.CodeBadRequest)

var ErrApprovedAmountExceedsClaim = goerrors.New("Approved amount cannot exceed claim amount", goerrors.CategoryValidation).
	WithTextCode(TextCodeApprovedExceeds).
	WithCode(goerrors.CodeBadRequest)

// ErrNumberSpaceExhausted is returned when no unique number could be drawn
var ErrNumberSpaceExhausted = goerrors.New("Failed to generate a unique number", goerrors.CategoryOperation).
	WithTextCode(TextCodeNumberSpaceFull).
	WithCode(http.StatusServiceUnavailable)

// Store failures, classified once by the store adapter

var ErrRecordNotFound = goerrors.New("record not found", goerrors.CategoryNotFound).
	WithTextCode(TextCodeRecordNotFound).
	WithCode(goerrors.CodeNotFound)

var ErrStoreConflict = goerrors.New("record violates a uniqueness constraint", goerrors.CategoryConflict).
	WithTextCode(TextCodeStoreConflict).
	WithCode(goerrors.CodeConflict)

var ErrStoreUnauthorized = goerrors.New("store rejected the configured credentials, check store.dsn and store.key", goerrors.CategoryInternal).
	WithTextCode(TextCodeStoreUnauthorized).
	WithCode(goerrors.CodeInternal)

var ErrSchemaMissing = goerrors.New("store schema is missing, run the migrate command", goerrors.CategoryInternal).
	WithTextCode(TextCodeSchemaMissing).
	WithCode(goerrors.CodeInternal)

var ErrStoreUnavailable = goerrors.New("store is unavailable", goerrors.CategoryInternal).
	WithTextCode(TextCodeStoreUnavailable).
	WithCode(http.StatusServiceUnavailable)

var ErrStoreFailure = goerrors.New("store operation failed", goerrors.CategoryInternal).
	WithTextCode(TextCodeStoreFailure).
	WithCode(goerrors.CodeInternal)

// NewValidationError builds a 400 validation failure with a readable reason
func NewValidationError(message string) *goerrors.Error {
	return goerrors.New(message, goerrors.CategoryValidation).
		WithTextCode(TextCodeValidation).
		WithCode(goerrors.CodeBadRequest)
}

// Forbidden builds a 403 permission failure with a custom message
func Forbidden(message string) *goerrors.Error {
	return goerrors.New(message, goerrors.CategoryAuthz).
		WithTextCode(TextCodeForbidden).
		WithCode(goerrors.CodeForbidden)
}

// WrapAs reports cause as kind. The result always carries the category,
// message and codes of kind, even when cause is itself a rich error; the
// cause stays reachable through errors.Is and errors.As.
func WrapAs(cause error, kind *goerrors.Error) *goerrors.Error {
	if cause == nil {
		return nil
	}
	err := fresh(kind)
	err.Source = cause
	return err
}

// Detailed returns a copy of kind carrying metadata. Sentinels are shared
// so metadata is never attached to them directly. The copy unwraps to kind
// so errors.Is matches the sentinel.
func Detailed(kind *goerrors.Error, metadata map[string]any) *goerrors.Error {
	err := fresh(kind).WithMetadata(metadata)
	err.Source = kind
	return err
}

func fresh(kind *goerrors.Error) *goerrors.Error {
	return goerrors.New(kind.Message, kind.Category).
		WithTextCode(kind.TextCode).
		WithCode(kind.Code)
}

// TextCode returns the text code of the first rich error in the chain
func TextCode(err error) string {
	var rich *goerrors.Error
	if errors.As(err, &rich) {
		return rich.TextCode
	}
	return ""
}

// HasTextCode reports whether err carries the given text code
func HasTextCode(err error, code string) bool {
	return err != nil && TextCode(err) == code
}

// IsNotFound reports whether err is a store level or domain level lookup miss
func IsNotFound(err error) bool {
	var rich *goerrors.Error
	if errors.As(err, &rich) {
		return rich.Category == goerrors.CategoryNotFound
	}
	return false
}

// HTTPStatus maps an error to the status code the transport should use
func HTTPStatus(err error) int {
	var rich *goerrors.Error
	if !errors.As(err, &rich) {
		return http.StatusInternalServerError
	}

	if rich.Code > 0 {
		return rich.Code
	}

	switch rich.Category {
	case goerrors.CategoryValidation, goerrors.CategoryBadInput:
		return http.StatusBadRequest
	case goerrors.CategoryAuth:
		return http.StatusUnauthorized
	case goerrors.CategoryAuthz:
		return http.StatusForbidden
	case goerrors.CategoryNotFound:
		return http.StatusNotFound
	case goerrors.CategoryConflict:
		return http.StatusConflict
	case goerrors.CategoryRateLimit:
		return http.StatusTooManyRequests
	default:
		return http.StatusInternalServerError
	}
}
