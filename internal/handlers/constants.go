package handlers

const (
	ErrInvalidJSON         = "Invalid request body"
	ErrUnauthorized        = "Unauthorized"
	ErrForbiddenCSRF       = "Missing or invalid CSRF token"
	ErrInternalServerError = "Internal server error"
	ErrNoCurrentWord       = "No word available for the selected levels"
	ErrValidationFailed    = "Validation failed"
	ErrClipNotFound        = "Audio clip not found"

	maxBodyBytes = 1 << 20
)
