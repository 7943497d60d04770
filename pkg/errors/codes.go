package errors

import (
	"net/http"
	"strings"
)

// ErrorCode is a string representation of a specific error condition.
type ErrorCode string

func (c ErrorCode) String() string {
	return string(c)
}

// Common Error Codes
const (
	ErrCodeInternal           ErrorCode = "COMMON_001"
	ErrCodeBadRequest         ErrorCode = "COMMON_002"
	ErrCodeNotFound           ErrorCode = "COMMON_003"
	ErrCodeConflict           ErrorCode = "COMMON_004"
	ErrCodeTooManyRequests    ErrorCode = "COMMON_005"
	ErrCodeServiceUnavailable ErrorCode = "COMMON_006"
	ErrCodeTimeout            ErrorCode = "COMMON_007"
	ErrCodeValidation         ErrorCode = "COMMON_008"
	ErrCodeSerialization      ErrorCode = "COMMON_009"
	ErrCodeDatabaseError      ErrorCode = "COMMON_010"
	ErrCodeCacheError         ErrorCode = "COMMON_011"
	ErrCodeExternalService    ErrorCode = "COMMON_012"
	ErrCodeStorageError       ErrorCode = "COMMON_013"
	ErrCodeMessageQueueError  ErrorCode = "COMMON_014"
	ErrCodeUnknown            ErrorCode = "COMMON_999"
)

// Member Module Error Codes
const (
	ErrCodeMemberNotFound      ErrorCode = "MBR_001"
	ErrCodeMemberAlreadyExists ErrorCode = "MBR_002"
	ErrCodeMemberIDInvalid     ErrorCode = "MBR_003"
	ErrCodeMemberDataInvalid   ErrorCode = "MBR_004"
)

// Claim Module Error Codes
const (
	ErrCodeClaimNotFound        ErrorCode = "CLM_001"
	ErrCodeClaimDateFormat      ErrorCode = "CLM_002"
	ErrCodeClaimInvalidAmount   ErrorCode = "CLM_003"
	ErrCodeClaimInvalidDateOrder ErrorCode = "CLM_004"
	ErrCodeClaimMultiNotSupported ErrorCode = "CLM_005"
	ErrCodeClaimMissingDocument ErrorCode = "CLM_006"
	ErrCodeClaimDocumentTooLarge ErrorCode = "CLM_007"
	ErrCodeClaimDocumentType    ErrorCode = "CLM_008"
	ErrCodeClaimNotAdjudicated  ErrorCode = "CLM_009"
	ErrCodeClaimDuplicateUpload ErrorCode = "CLM_010"
)

// Extraction Service Error Codes
const (
	ErrCodeExtractionUnavailable ErrorCode = "EXT_001"
	ErrCodeExtractionFailed      ErrorCode = "EXT_002"
	ErrCodeExtractionMalformed   ErrorCode = "EXT_003"
)

// Aliases used throughout the codebase
const (
	CodeInternal       = ErrCodeInternal
	CodeInvalidParam   = ErrCodeBadRequest
	CodeNotFound       = ErrCodeNotFound
	CodeConflict       = ErrCodeConflict
	CodeRateLimit      = ErrCodeTooManyRequests
	CodeValidation     = ErrCodeValidation
	CodeUnknown        = ErrCodeUnknown
	CodeOK             = ErrorCode("OK")

	CodeDatabaseError     = ErrCodeDatabaseError
	CodeCacheError        = ErrCodeCacheError
	CodeStorageError      = ErrCodeStorageError
	CodeMessageQueueError = ErrCodeMessageQueueError
	CodeExternalService   = ErrCodeExternalService

	CodeMemberNotFound      = ErrCodeMemberNotFound
	CodeMemberAlreadyExists = ErrCodeMemberAlreadyExists
	CodeClaimNotFound       = ErrCodeClaimNotFound
)

// ErrorCodeHTTPStatus maps ErrorCodes to HTTP status codes.
var ErrorCodeHTTPStatus = map[ErrorCode]int{
	ErrCodeInternal:           http.StatusInternalServerError,
	ErrCodeBadRequest:         http.StatusBadRequest,
	ErrCodeNotFound:           http.StatusNotFound,
	ErrCodeConflict:           http.StatusConflict,
	ErrCodeTooManyRequests:    http.StatusTooManyRequests,
	ErrCodeServiceUnavailable: http.StatusServiceUnavailable,
	ErrCodeTimeout:            http.StatusGatewayTimeout,
	ErrCodeValidation:         http.StatusUnprocessableEntity,
	ErrCodeSerialization:      http.StatusInternalServerError,
	ErrCodeDatabaseError:      http.StatusInternalServerError,
	ErrCodeCacheError:         http.StatusInternalServerError,
	ErrCodeExternalService:    http.StatusBadGateway,
	ErrCodeStorageError:       http.StatusInternalServerError,
	ErrCodeMessageQueueError:  http.StatusInternalServerError,
	ErrCodeUnknown:            http.StatusInternalServerError,

	ErrCodeMemberNotFound:      http.StatusNotFound,
	ErrCodeMemberAlreadyExists: http.StatusConflict,
	ErrCodeMemberIDInvalid:     http.StatusBadRequest,
	ErrCodeMemberDataInvalid:   http.StatusBadRequest,

	ErrCodeClaimNotFound:          http.StatusNotFound,
	ErrCodeClaimDateFormat:        http.StatusBadRequest,
	ErrCodeClaimInvalidAmount:     http.StatusBadRequest,
	ErrCodeClaimInvalidDateOrder:  http.StatusUnprocessableEntity,
	ErrCodeClaimMultiNotSupported: http.StatusUnprocessableEntity,
	ErrCodeClaimMissingDocument:   http.StatusBadRequest,
	ErrCodeClaimDocumentTooLarge:  http.StatusRequestEntityTooLarge,
	ErrCodeClaimDocumentType:      http.StatusUnsupportedMediaType,
	ErrCodeClaimNotAdjudicated:    http.StatusConflict,
	ErrCodeClaimDuplicateUpload:   http.StatusConflict,

	ErrCodeExtractionUnavailable: http.StatusBadGateway,
	ErrCodeExtractionFailed:      http.StatusBadGateway,
	ErrCodeExtractionMalformed:   http.StatusBadGateway,
}

// ErrorCodeMessage maps ErrorCodes to default messages.
var ErrorCodeMessage = map[ErrorCode]string{
	ErrCodeInternal:           "internal server error",
	ErrCodeBadRequest:         "bad request",
	ErrCodeNotFound:           "resource not found",
	ErrCodeConflict:           "resource conflict",
	ErrCodeTooManyRequests:    "too many requests",
	ErrCodeServiceUnavailable: "service unavailable",
	ErrCodeTimeout:            "request timeout",
	ErrCodeValidation:         "validation failed",
	ErrCodeSerialization:      "serialization failed",
	ErrCodeDatabaseError:      "database error",
	ErrCodeCacheError:         "cache error",
	ErrCodeExternalService:    "external service error",
	ErrCodeStorageError:       "object storage error",
	ErrCodeMessageQueueError:  "message queue error",
	ErrCodeUnknown:            "unknown error",

	ErrCodeMemberNotFound:      "member not found",
	ErrCodeMemberAlreadyExists: "member already registered",
	ErrCodeMemberIDInvalid:     "invalid member id",
	ErrCodeMemberDataInvalid:   "invalid member data",

	ErrCodeClaimNotFound:          "claim not found",
	ErrCodeClaimDateFormat:        "date must be in YYYY-MM-DD format",
	ErrCodeClaimInvalidAmount:     "claim amount must be a positive decimal",
	ErrCodeClaimInvalidDateOrder:  "treatment date precedes policy join date",
	ErrCodeClaimMultiNotSupported: "multiple claims per submission are not supported",
	ErrCodeClaimMissingDocument:   "required claim document missing",
	ErrCodeClaimDocumentTooLarge:  "claim document exceeds size limit",
	ErrCodeClaimDocumentType:      "unsupported claim document type",
	ErrCodeClaimNotAdjudicated:    "claim has not been adjudicated yet",
	ErrCodeClaimDuplicateUpload:   "duplicate claim upload",

	ErrCodeExtractionUnavailable: "extraction service unavailable",
	ErrCodeExtractionFailed:      "document extraction failed",
	ErrCodeExtractionMalformed:   "extraction service returned malformed data",
}

// HTTPStatusForCode returns the HTTP status code for an ErrorCode.
func HTTPStatusForCode(code ErrorCode) int {
	if status, ok := ErrorCodeHTTPStatus[code]; ok {
		return status
	}
	return http.StatusInternalServerError
}

// DefaultMessageForCode returns the default message for an ErrorCode.
func DefaultMessageForCode(code ErrorCode) string {
	if msg, ok := ErrorCodeMessage[code]; ok {
		return msg
	}
	return "unknown error"
}

// IsClientError returns true if the ErrorCode corresponds to a 4xx HTTP status.
func IsClientError(code ErrorCode) bool {
	status := HTTPStatusForCode(code)
	return status >= 400 && status < 500
}

// IsServerError returns true if the ErrorCode corresponds to a 5xx HTTP status.
func IsServerError(code ErrorCode) bool {
	status := HTTPStatusForCode(code)
	return status >= 500 && status < 600
}

// ModuleForCode returns the module prefix of an ErrorCode.
func ModuleForCode(code ErrorCode) string {
	parts := strings.Split(string(code), "_")
	if len(parts) > 0 && parts[0] != "" {
		return parts[0]
	}
	return "UNKNOWN"
}
