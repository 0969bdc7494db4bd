// Package repo clones submitted repositories and computes the git statistics
// and file inventory the evaluation pipeline feeds to the sanitizer.
package repo

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/google/go-github/v66/github"
	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/kiranshivaraju/repograder/internal/cache"
)

// Config holds analyzer settings. Zero values are replaced with defaults by New.
type Config struct {
	CloneRoot    string
	CloneDepth   int
	CloneTimeout time.Duration
	APITimeout   time.Duration
	Token        string
	// APIBaseURL overrides the GitHub REST endpoint, e.g. for GitHub Enterprise.
	APIBaseURL string
}

const accessCacheTTL = 5 * time.Minute

// Analyzer clones repositories and computes statistics over the clone.
type Analyzer struct {
	cfg   Config
	gh    *github.Client
	cache cache.Cache
	clone cloneFunc
}

// Analysis is the result of analyzing one clone. LocalPath is owned by the
// evaluation run that created it and must be passed to Cleanup.
type Analysis struct {
	SubmissionID uuid.UUID
	Ref          Ref
	LocalPath    string
	Commits      CommitStats
	Branches     BranchStats
	Files        []string
}

// AccessResult is the outcome of a repository metadata lookup.
type AccessResult struct {
	Accessible    bool   `json:"accessible"`
	IsPrivate     bool   `json:"is_private"`
	Visibility    string `json:"visibility,omitempty"`
	DefaultBranch string `json:"default_branch,omitempty"`
	Owner         string `json:"owner"`
	Repo          string `json:"repo"`
	Reason        string `json:"reason,omitempty"`
}

// New builds an Analyzer. c may be nil, in which case access results are not cached.
func New(cfg Config, c cache.Cache) (*Analyzer, error) {
	if cfg.CloneRoot == "" {
		cfg.CloneRoot = "/tmp/repos"
	}
	if cfg.CloneTimeout <= 0 {
		cfg.CloneTimeout = 2 * time.Minute
	}
	if cfg.APITimeout <= 0 {
		cfg.APITimeout = 10 * time.Second
	}
	if cfg.CloneDepth < 0 {
		cfg.CloneDepth = 0
	}

	gh := github.NewClient(&http.Client{Timeout: cfg.APITimeout})
	if cfg.Token != "" {
		gh = gh.WithAuthToken(cfg.Token)
	}
	if cfg.APIBaseURL != "" {
		base := cfg.APIBaseURL
		if !strings.HasSuffix(base, "/") {
			base += "/"
		}
		u, err := url.Parse(base)
		if err != nil {
			return nil, fmt.Errorf("parsing github api url: %w", err)
		}
		gh.BaseURL = u
	}

	return &Analyzer{cfg: cfg, gh: gh, cache: c, clone: plainClone}, nil
}

// CheckAccess looks up repository metadata. A 404 is reported as private and
// inaccessible: the API cannot tell a missing repository from a private one the
// token cannot see. A 403 or 429 is reported with ReasonRateLimited.
func (a *Analyzer) CheckAccess(ctx context.Context, rawURL string) (*AccessResult, error) {
	ref, err := ParseRepoURL(rawURL)
	if err != nil {
		return nil, err
	}

	if a.cache != nil {
		if b, ok, err := a.cache.Get(ctx, cache.RepoAccessKey(ref.Host, ref.FullName())); err == nil && ok {
			var cached AccessResult
			if json.Unmarshal(b, &cached) == nil {
				return &cached, nil
			}
		}
	}

	ctx, cancel := context.WithTimeout(ctx, a.cfg.APITimeout)
	defer cancel()

	res := &AccessResult{Owner: ref.Owner, Repo: ref.Name}
	r, resp, err := a.gh.Repositories.Get(ctx, ref.Owner, ref.Name)
	switch {
	case err == nil:
		res.Accessible = true
		res.IsPrivate = r.GetPrivate()
		res.Visibility = r.GetVisibility()
		res.DefaultBranch = r.GetDefaultBranch()
	case resp != nil && resp.StatusCode == http.StatusNotFound:
		res.IsPrivate = true
		res.Reason = ReasonNotAccessible
	case resp != nil && (resp.StatusCode == http.StatusForbidden || resp.StatusCode == http.StatusTooManyRequests):
		res.IsPrivate = true
		res.Reason = ReasonRateLimited
		// Rate limits are transient; never cache them.
		return res, nil
	default:
		return nil, fmt.Errorf("checking access to %s: %w", ref.FullName(), err)
	}

	if a.cache != nil {
		if b, err := json.Marshal(res); err == nil {
			if err := a.cache.Set(ctx, cache.RepoAccessKey(ref.Host, ref.FullName()), b, accessCacheTTL); err != nil {
				slog.Warn("caching repo access result failed", "repo", ref.FullName(), "error", err)
			}
		}
	}
	return res, nil
}

// Analyze clones the repository and computes commit, branch and file
// statistics concurrently. On error the clone is removed before returning;
// on success the caller owns Analysis.LocalPath.
func (a *Analyzer) Analyze(ctx context.Context, rawURL string, submissionID uuid.UUID) (*Analysis, error) {
	ref, err := ParseRepoURL(rawURL)
	if err != nil {
		return nil, err
	}

	path, err := a.Clone(ctx, rawURL, submissionID)
	if err != nil {
		return nil, err
	}

	an := &Analysis{SubmissionID: submissionID, Ref: ref, LocalPath: path}
	var g errgroup.Group
	g.Go(func() error {
		cs, err := a.CommitStats(path)
		an.Commits = cs
		return err
	})
	g.Go(func() error {
		bs, err := a.BranchStats(path)
		an.Branches = bs
		return err
	})
	g.Go(func() error {
		files, err := a.FileList(path)
		an.Files = files
		return err
	})
	if err := g.Wait(); err != nil {
		if cerr := a.Cleanup(path); cerr != nil {
			slog.Error("cleanup after failed analysis", "path", path, "error", cerr)
		}
		return nil, err
	}
	return an, nil
}

