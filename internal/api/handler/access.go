package handler

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"strings"

	"github.com/kiranshivaraju/repograder/internal/api/response"
	"github.com/kiranshivaraju/repograder/internal/repo"
)

// AccessChecker looks up whether a repository can be cloned.
type AccessChecker interface {
	CheckAccess(ctx context.Context, rawURL string) (*repo.AccessResult, error)
}

// NewCheckAccessHandler returns POST /api/v1/repos/access.
func NewCheckAccessHandler(checker AccessChecker) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req struct {
			RepoURL string `json:"repo_url"`
		}
		if err := response.DecodeJSON(w, r, &req); err != nil {
			response.Error(w, http.StatusBadRequest, "INVALID_REQUEST", err.Error(), nil)
			return
		}
		req.RepoURL = strings.TrimSpace(req.RepoURL)
		if req.RepoURL == "" {
			response.Error(w, http.StatusBadRequest, "INVALID_REQUEST", "repo_url is required", nil)
			return
		}

		res, err := checker.CheckAccess(r.Context(), req.RepoURL)
		if err != nil {
			if errors.Is(err, repo.ErrInvalidURL) {
				response.Error(w, http.StatusBadRequest, "INVALID_URL",
					"repo_url is not a recognizable GitHub repository URL", nil)
				return
			}
			slog.Error("access check failed", "repo_url", req.RepoURL, "error", err)
			response.Error(w, http.StatusBadGateway, "GITHUB_UNAVAILABLE",
				"Repository host could not be reached", nil)
			return
		}
		response.JSON(w, res)
	}
}
