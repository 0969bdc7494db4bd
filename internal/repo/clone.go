package repo

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/go-git/go-git/v5"
	"github.com/go-git/go-git/v5/plumbing/transport"
	githttp "github.com/go-git/go-git/v5/plumbing/transport/http"
	"github.com/google/uuid"
)

// cloneFunc performs the clone into path. Tests swap it to redirect the remote.
type cloneFunc func(ctx context.Context, path string, opts *git.CloneOptions) error

func plainClone(ctx context.Context, path string, opts *git.CloneOptions) error {
	_, err := git.PlainCloneContext(ctx, path, false, opts)
	return err
}

// ClonePath is the deterministic clone location for a submission.
func (a *Analyzer) ClonePath(submissionID uuid.UUID) string {
	return filepath.Join(a.cfg.CloneRoot, submissionID.String())
}

// Clone removes any previous clone for the submission and clones rawURL into
// ClonePath. With a token configured the https URL is used and the token is
// sent as basic auth, never embedded in the URL. A failed clone leaves nothing
// on disk and returns ErrCloneFailure.
func (a *Analyzer) Clone(ctx context.Context, rawURL string, submissionID uuid.UUID) (string, error) {
	ref, err := ParseRepoURL(rawURL)
	if err != nil {
		return "", err
	}

	path := a.ClonePath(submissionID)
	if err := a.Cleanup(path); err != nil {
		return "", fmt.Errorf("%w: clearing %s: %v", ErrCloneFailure, path, err)
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return "", fmt.Errorf("%w: creating clone root: %v", ErrCloneFailure, err)
	}

	opts := &git.CloneOptions{
		URL:   rawURL,
		Depth: a.cfg.CloneDepth,
		Tags:  git.NoTags,
	}
	if a.cfg.Token != "" {
		opts.URL = ref.HTTPSURL()
		opts.Auth = &githttp.BasicAuth{Username: "x-access-token", Password: a.cfg.Token}
	}

	ctx, cancel := context.WithTimeout(ctx, a.cfg.CloneTimeout)
	defer cancel()

	slog.Info("cloning repository", "submission_id", submissionID, "repo", ref.FullName(), "depth", a.cfg.CloneDepth)
	if err := a.clone(ctx, path, opts); err != nil {
		if cerr := a.Cleanup(path); cerr != nil {
			slog.Error("removing partial clone", "path", path, "error", cerr)
		}
		if errors.Is(err, transport.ErrAuthenticationRequired) || errors.Is(err, transport.ErrAuthorizationFailed) {
			return "", fmt.Errorf("%w: %w: %v", ErrCloneFailure, ErrAccessDenied, err)
		}
		return "", fmt.Errorf("%w: %s: %v", ErrCloneFailure, ref.FullName(), err)
	}
	return path, nil
}

// Cleanup removes a clone directory. A missing path is not an error.
func (a *Analyzer) Cleanup(path string) error {
	if path == "" {
		return nil
	}
	return os.RemoveAll(path)
}
