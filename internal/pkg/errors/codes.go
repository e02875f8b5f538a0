package errors

import "net/http"

// Error code constants. Messages are short English strings; clients key off
// the code.

// Generic codes.
const (
	CodeUnauthorized     = "UNAUTHORIZED"
	CodeValidationFailed = "VALIDATION_FAILED"
	CodeInternal         = "INTERNAL_ERROR"
)

// Planting cycle codes.
const (
	CodeCycleAlreadyActive = "CYCLE_ALREADY_ACTIVE"
	CodeCycleNotActive     = "CYCLE_NOT_ACTIVE"
)

// Catalog codes.
const (
	CodeCropTypeNotFound     = "CROP_TYPE_NOT_FOUND"
	CodeVarietyNotFound      = "VARIETY_NOT_FOUND"
	CodePlanNotFound         = "PLAN_NOT_FOUND"
	CodeTaskNotFound         = "TASK_NOT_FOUND"
	CodeCropTypeHasVarieties = "CROP_TYPE_HAS_VARIETIES"
	CodeVarietyInUse         = "VARIETY_IN_USE"
	CodeCatalogNameTaken     = "CATALOG_NAME_TAKEN"
)

// User codes.
const (
	CodeUsernameTaken      = "USERNAME_TAKEN"
	CodeAccountLinked      = "ACCOUNT_ALREADY_LINKED"
	CodeLastLoginMethod    = "LAST_LOGIN_METHOD"
	CodeInvalidCredentials = "INVALID_CREDENTIALS"
)

// Upload and summary codes.
const (
	CodeImageTooLarge     = "IMAGE_TOO_LARGE"
	CodeImageTypeInvalid  = "IMAGE_TYPE_INVALID"
	CodeImageMissing      = "IMAGE_MISSING"
	CodeDateRangeRequired = "DATE_RANGE_REQUIRED"
)

// ErrUnauthorized is the uniform response for a missing principal, a failed
// ownership check, a failed role check and an absent resource.
func ErrUnauthorized() *AppError {
	return &AppError{
		Code:       CodeUnauthorized,
		Message:    "Unauthorized",
		HTTPStatus: http.StatusUnauthorized,
	}
}

// ErrCycleNotActive is returned for any operation that needs an ACTIVE cycle.
func ErrCycleNotActive() *AppError {
	return Unprocessable(CodeCycleNotActive, "cycle is not active")
}

// ErrValidation creates a 400 error for a single invalid field.
func ErrValidation(field, message string) *AppError {
	return (&AppError{
		Code:       CodeValidationFailed,
		Message:    message,
		HTTPStatus: http.StatusBadRequest,
	}).WithFieldErrors([]FieldError{{Field: field, Code: CodeValidationFailed, Message: message}})
}

// ErrInternal wraps an unexpected failure. The cause is logged, never rendered.
func ErrInternal(err error) *AppError {
	return Wrap(err, CodeInternal, "An internal error occurred", http.StatusInternalServerError)
}
