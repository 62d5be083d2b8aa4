package response

// ErrCode is a typed error code enum for consistent API error identification.
// Clients rely on the authentication codes to tell a stale token (refresh and retry)
// from a valid token that lacks permission.
type ErrCode string

const (
	// ─── Authentication ────────────────────────────────────────────────
	ErrInvalidCredentials   ErrCode = "INVALID_CREDENTIALS"
	ErrSessionInvalidated   ErrCode = "SESSION_INVALIDATED"
	ErrTokenRequired        ErrCode = "TOKEN_REQUIRED"
	ErrTokenInvalid         ErrCode = "TOKEN_INVALID"
	ErrTokenExpired         ErrCode = "TOKEN_EXPIRED"
	ErrRefreshTokenInvalid  ErrCode = "REFRESH_TOKEN_INVALID"
	ErrRefreshTokenRequired ErrCode = "REFRESH_TOKEN_REQUIRED"

	// ─── Authorization ─────────────────────────────────────────────────
	ErrForbidden        ErrCode = "FORBIDDEN"
	ErrPermissionDenied ErrCode = "PERMISSION_DENIED"
	ErrStaffAccessOnly  ErrCode = "STAFF_ACCESS_ONLY"
	ErrOwnRecordOnly    ErrCode = "OWN_RECORD_ONLY"
	ErrEventNotGranted  ErrCode = "EVENT_PERMISSION_NOT_GRANTED"

	// ─── Validation ────────────────────────────────────────────────────
	ErrValidation     ErrCode = "VALIDATION_ERROR"
	ErrInvalidID      ErrCode = "INVALID_ID"
	ErrInvalidPayload ErrCode = "INVALID_PAYLOAD"

	// ─── Resources ─────────────────────────────────────────────────────
	ErrNotFound ErrCode = "NOT_FOUND"

	// ─── Rate Limiting ─────────────────────────────────────────────────
	ErrRateLimitExceeded ErrCode = "RATE_LIMIT_EXCEEDED"

	// ─── Server ────────────────────────────────────────────────────────
	ErrInternal ErrCode = "INTERNAL_ERROR"
)

// GetMessage returns a human-readable message for a given error code.
func GetMessage(code ErrCode) string {
	switch code {
	// ─── Authentication ────────────────────────────────────────────────
	case ErrInvalidCredentials:
		return "Incorrect username or password."
	case ErrSessionInvalidated:
		return "Your session has ended. Please sign in again."
	case ErrTokenRequired:
		return "Authentication token is required."
	case ErrTokenInvalid:
		return "Authentication token is invalid."
	case ErrTokenExpired:
		return "Authentication token has expired."
	case ErrRefreshTokenInvalid:
		return "Refresh token is invalid or has already been used."
	case ErrRefreshTokenRequired:
		return "Refresh token is required."

	// ─── Authorization ─────────────────────────────────────────────────
	case ErrForbidden:
		return "You do not have permission to access this resource."
	case ErrPermissionDenied:
		return "Permission denied."
	case ErrStaffAccessOnly:
		return "This resource is limited to teachers and administrators."
	case ErrOwnRecordOnly:
		return "Students may only access their own records."
	case ErrEventNotGranted:
		return "You do not currently hold permission to record events."

	// ─── Validation ────────────────────────────────────────────────────
	case ErrValidation:
		return "Validation failed. Please check your input."
	case ErrInvalidID:
		return "Invalid ID format."
	case ErrInvalidPayload:
		return "Invalid request payload."

	// ─── Resources ─────────────────────────────────────────────────────
	case ErrNotFound:
		return "Resource not found."

	// ─── Rate Limiting ─────────────────────────────────────────────────
	case ErrRateLimitExceeded:
		return "Too many requests. Please try again later."

	// ─── Server ────────────────────────────────────────────────────────
	case ErrInternal:
		return "Internal server error."
	default:
		return "An unexpected error occurred."
	}
}
