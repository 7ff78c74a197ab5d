package errors

import (
	"fmt"
	"net/http"
)

// Engine error codes.
const (
	CodeReferenceNotFound     = "REFERENCE_NOT_FOUND"
	CodeMissingRequiredField  = "MISSING_REQUIRED_FIELD"
	CodeValidationFailed      = "VALIDATION_FAILED"
	CodeEntityNotFound        = "ENTITY_NOT_FOUND_OR_NOT_OWNED"
	CodeEntityTypeUnknown     = "ENTITY_TYPE_UNKNOWN"
	CodeConfigurationError    = "CONFIGURATION_ERROR"
	CodeReadOnlyEntity        = "READ_ONLY_ENTITY"
	CodeUploadNotSupported    = "UPLOAD_NOT_SUPPORTED"
	CodeInvalidRequestField   = "INVALID_REQUEST_FIELD"
	CodeInternalError         = "INTERNAL_ERROR"
	CodeStorageFailure        = "STORAGE_FAILURE"
	CodeFileStorageFailure    = "FILE_STORAGE_FAILURE"
	CodeInvalidUploadEncoding = "INVALID_UPLOAD_ENCODING"
	CodePayloadTooLarge       = "PAYLOAD_TOO_LARGE"
)

// Authorization error codes.
const (
	CodeUnauthorized         = "UNAUTHORIZED"
	CodePermissionDenied     = "PERMISSION_DENIED"
	CodeSubscriptionRequired = "SUBSCRIPTION_REQUIRED"
	CodeTokenInvalid         = "TOKEN_INVALID"
)

// ErrReferenceNotFoundf reports a relation id that does not resolve.
func ErrReferenceNotFoundf(field, target, id string) *AppError {
	return &AppError{
		Code:       CodeReferenceNotFound,
		Message:    fmt.Sprintf("%s %q referenced by %s does not exist", target, id, field),
		HTTPStatus: http.StatusBadRequest,
		Params:     map[string]interface{}{"field": field, "target": target, "id": id},
	}
}

// ErrMissingRequiredFieldf reports a mandatory attribute left empty.
func ErrMissingRequiredFieldf(field string) *AppError {
	return &AppError{
		Code:       CodeMissingRequiredField,
		Message:    fmt.Sprintf("%s is required", field),
		HTTPStatus: http.StatusBadRequest,
		Params:     map[string]interface{}{"field": field},
	}
}

// ErrEntityNotFound is returned for rows that are missing or not owned by the
// caller. Both cases share one message so existence is not leaked.
func ErrEntityNotFound(entityType, id string) *AppError {
	return &AppError{
		Code:       CodeEntityNotFound,
		Message:    fmt.Sprintf("%s %s does not exist or you don't have permission to access it", entityType, id),
		HTTPStatus: http.StatusNotFound,
	}
}

// ErrEntityTypeUnknownf reports a request for an unregistered entity type.
func ErrEntityTypeUnknownf(name string) *AppError {
	return &AppError{
		Code:       CodeEntityTypeUnknown,
		Message:    fmt.Sprintf("entity type %q is not registered", name),
		HTTPStatus: http.StatusNotFound,
	}
}

// ErrConfigurationf reports a registry declaration that cannot be served.
func ErrConfigurationf(format string, args ...interface{}) *AppError {
	return &AppError{
		Code:       CodeConfigurationError,
		Message:    fmt.Sprintf(format, args...),
		HTTPStatus: http.StatusInternalServerError,
	}
}

// ErrPermissionDenied reports a missing role capability.
func ErrPermissionDenied(entityType, op string) *AppError {
	return &AppError{
		Code:       CodePermissionDenied,
		Message:    fmt.Sprintf("you do not have %s permission on %s", op, entityType),
		HTTPStatus: http.StatusForbidden,
		Params:     map[string]interface{}{"entity": entityType, "operation": op},
	}
}

// ErrSubscriptionRequired reports a capability that is granted by the role but
// blocked by a missing active subscription.
func ErrSubscriptionRequired() *AppError {
	return &AppError{
		Code:       CodeSubscriptionRequired,
		Message:    "an active subscription is required to make changes",
		HTTPStatus: http.StatusForbidden,
	}
}

// ErrValidationFailed bundles field-level failures into one response.
func ErrValidationFailed(fieldErrors ...FieldError) *AppError {
	return New(CodeValidationFailed, "validation failed", http.StatusBadRequest).
		WithFieldErrors(fieldErrors)
}
