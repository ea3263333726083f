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
	ErrCodeServiceUnavailable ErrorCode = "COMMON_005"
	ErrCodeTimeout            ErrorCode = "COMMON_006"
	ErrCodeValidation         ErrorCode = "COMMON_007"
	ErrCodeSerialization      ErrorCode = "COMMON_008"
	ErrCodeDatabaseError      ErrorCode = "COMMON_009"
	ErrCodeCacheError         ErrorCode = "COMMON_010"
	ErrCodeExternalService    ErrorCode = "COMMON_011"
	ErrCodeFeatureDisabled    ErrorCode = "COMMON_012"
)

// Aliases used throughout the codebase.
const (
	CodeInternal     = ErrCodeInternal
	CodeInvalidParam = ErrCodeBadRequest
	CodeNotFound     = ErrCodeNotFound
	CodeConflict     = ErrCodeConflict
	CodeDBQueryError = ErrCodeDatabaseError
	CodeCacheError   = ErrCodeCacheError
	CodeUnknown      = ErrorCode("UNKNOWN")
	CodeOK           = ErrorCode("OK")
)

// Layout / classification Error Codes
const (
	ErrCodeInventoryEmpty     ErrorCode = "LAY_001"
	ErrCodeElementInvalid     ErrorCode = "LAY_002"
	ErrCodeMemberUnresolvable ErrorCode = "LAY_003"
)

// Matching Error Codes
const (
	ErrCodeMatchInputInvalid ErrorCode = "MAP_001"
	ErrCodeMatchFailed       ErrorCode = "MAP_002"
)

// Dictionary Error Codes
const (
	ErrCodeDictionaryLookupFailed ErrorCode = "DICT_001"
	ErrCodeDictionaryStoreFailed  ErrorCode = "DICT_002"
	ErrCodeDictionaryUnavailable  ErrorCode = "DICT_003"
)

// AI Escalation Error Codes
const (
	ErrCodeEmbeddingUnavailable ErrorCode = "AI_001"
	ErrCodeEmbeddingMalformed   ErrorCode = "AI_002"
	ErrCodeLLMUnavailable       ErrorCode = "AI_003"
	ErrCodeLLMMalformed         ErrorCode = "AI_004"
	ErrCodeBatchTooLarge        ErrorCode = "AI_005"
)

// ErrorCodeHTTPStatus maps ErrorCodes to HTTP status codes.
var ErrorCodeHTTPStatus = map[ErrorCode]int{
	ErrCodeInternal:           http.StatusInternalServerError,
	ErrCodeBadRequest:         http.StatusBadRequest,
	ErrCodeNotFound:           http.StatusNotFound,
	ErrCodeConflict:           http.StatusConflict,
	ErrCodeServiceUnavailable: http.StatusServiceUnavailable,
	ErrCodeTimeout:            http.StatusGatewayTimeout,
	ErrCodeValidation:         http.StatusUnprocessableEntity,
	ErrCodeSerialization:      http.StatusInternalServerError,
	ErrCodeDatabaseError:      http.StatusInternalServerError,
	ErrCodeCacheError:         http.StatusInternalServerError,
	ErrCodeExternalService:    http.StatusBadGateway,
	ErrCodeFeatureDisabled:    http.StatusForbidden,

	ErrCodeInventoryEmpty:     http.StatusBadRequest,
	ErrCodeElementInvalid:     http.StatusBadRequest,
	ErrCodeMemberUnresolvable: http.StatusBadRequest,

	ErrCodeMatchInputInvalid: http.StatusBadRequest,
	ErrCodeMatchFailed:       http.StatusInternalServerError,

	ErrCodeDictionaryLookupFailed: http.StatusInternalServerError,
	ErrCodeDictionaryStoreFailed:  http.StatusInternalServerError,
	ErrCodeDictionaryUnavailable:  http.StatusServiceUnavailable,

	ErrCodeEmbeddingUnavailable: http.StatusServiceUnavailable,
	ErrCodeEmbeddingMalformed:   http.StatusBadGateway,
	ErrCodeLLMUnavailable:       http.StatusServiceUnavailable,
	ErrCodeLLMMalformed:         http.StatusBadGateway,
	ErrCodeBatchTooLarge:        http.StatusBadRequest,
}

// ErrorCodeMessage maps ErrorCodes to default messages.
var ErrorCodeMessage = map[ErrorCode]string{
	ErrCodeInternal:           "internal server error",
	ErrCodeBadRequest:         "bad request",
	ErrCodeNotFound:           "resource not found",
	ErrCodeConflict:           "resource conflict",
	ErrCodeServiceUnavailable: "service unavailable",
	ErrCodeTimeout:            "request timeout",
	ErrCodeValidation:         "validation failed",
	ErrCodeSerialization:      "serialization failed",
	ErrCodeDatabaseError:      "database error",
	ErrCodeCacheError:         "cache error",
	ErrCodeExternalService:    "external service error",
	ErrCodeFeatureDisabled:    "feature disabled",

	ErrCodeInventoryEmpty:     "element inventory is empty",
	ErrCodeElementInvalid:     "element is missing required fields",
	ErrCodeMemberUnresolvable: "group member could not be resolved",

	ErrCodeMatchInputInvalid: "matching input invalid",
	ErrCodeMatchFailed:       "matching failed",

	ErrCodeDictionaryLookupFailed: "dictionary lookup failed",
	ErrCodeDictionaryStoreFailed:  "dictionary store failed",
	ErrCodeDictionaryUnavailable:  "dictionary unavailable",

	ErrCodeEmbeddingUnavailable: "embedding service unavailable",
	ErrCodeEmbeddingMalformed:   "embedding response malformed",
	ErrCodeLLMUnavailable:       "LLM service unavailable",
	ErrCodeLLMMalformed:         "LLM response malformed",
	ErrCodeBatchTooLarge:        "batch exceeds maximum size",
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
