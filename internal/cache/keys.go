package cache

import (
	"fmt"
	"strings"

	"github.com/google/uuid"
)

func SubmissionStatusKey(submissionID uuid.UUID) string {
	return fmt.Sprintf("submission:status:%s", submissionID)
}

// RepoAccessKey is keyed by host and "owner/repo", case-folded since hosts
// treat both case-insensitively.
func RepoAccessKey(host, fullName string) string {
	return fmt.Sprintf("repo:access:%s/%s", strings.ToLower(host), strings.ToLower(fullName))
}

func RateLimitKey(keyPrefix string) string {
	return fmt.Sprintf("ratelimit:%s", keyPrefix)
}
