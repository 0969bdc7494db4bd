package repo

import "errors"

var (
	ErrInvalidURL   = errors.New("INVALID_URL")
	ErrAccessDenied = errors.New("ACCESS_DENIED")
	ErrCloneFailure = errors.New("CLONE_FAILURE")
	// ErrAnalysis covers failures reading history or the working tree of a clone.
	ErrAnalysis = errors.New("ANALYSIS_FAILURE")
)

// Access denial reasons reported by CheckAccess.
const (
	ReasonNotAccessible = "REPO_NOT_ACCESSIBLE"
	ReasonRateLimited   = "RATE_LIMIT_OR_FORBIDDEN"
)
