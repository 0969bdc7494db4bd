package sanitize

import (
	"log/slog"
	"regexp"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/kiranshivaraju/repograder/internal/repo"
	"github.com/kiranshivaraju/repograder/pkg/models"
)

// DefaultMaxFileChars is the size above which a file is dropped rather than truncated.
const DefaultMaxFileChars = 50000

const shortHashLen = 7

// excludePatterns match paths that usually carry seed or sample data.
// Directory patterns only match whole path segments.
var excludePatterns = []*regexp.Regexp{
	regexp.MustCompile(`(?i)(^|/)seeds?/`),
	regexp.MustCompile(`(?i)(^|/)fixtures?/`),
	regexp.MustCompile(`(?i)sample[-_]?data`),
	regexp.MustCompile(`(?i)(^|/)__mocks__/`),
	regexp.MustCompile(`(?i)(^|/)mocks?/`),
	regexp.MustCompile(`(?i)test[-_]?data`),
	regexp.MustCompile(`(?i)\.sql$`),
}

// PIICounts totals unique PII findings per file, summed over all files.
type PIICounts struct {
	Emails int `json:"emails"`
	Phones int `json:"phones"`
	SSNs   int `json:"ssns"`
	Names  int `json:"names"`
}

// GitStats is the redacted form of the repository statistics.
type GitStats struct {
	CommitActivity models.CommitActivity
	CommitQuality  models.CommitQuality
	Branches       models.BranchSummary
}

// Payload is everything derived from a repository that may be shown to the model.
type Payload struct {
	Files         []repo.File
	ExcludedFiles []string
	DroppedFiles  []string
	GitStats      GitStats
	PII           PIICounts
}

// Sanitizer applies the exclusion, size and redaction policies.
type Sanitizer struct {
	MaxFileChars int
	now          func() time.Time
}

// New returns a Sanitizer. maxFileChars <= 0 selects DefaultMaxFileChars.
func New(maxFileChars int) *Sanitizer {
	if maxFileChars <= 0 {
		maxFileChars = DefaultMaxFileChars
	}
	return &Sanitizer{MaxFileChars: maxFileChars, now: time.Now}
}

// ShouldExclude reports whether a path is kept away from the model entirely.
func (s *Sanitizer) ShouldExclude(path string) bool {
	for _, p := range excludePatterns {
		if p.MatchString(path) {
			return true
		}
	}
	return false
}

// SanitizeCode redacts PII from file content. It returns false for empty
// content and for files over MaxFileChars, which are dropped whole.
func (s *Sanitizer) SanitizeCode(content string) (string, bool) {
	if content == "" {
		return "", false
	}
	if utf8.RuneCountInString(content) > s.MaxFileChars {
		return "", false
	}
	return SanitizeAll(content), true
}

// SanitizeCommits strips author identity, keeps a short hash and date, and
// redacts PII inside the message itself.
func (s *Sanitizer) SanitizeCommits(commits []repo.Commit) []models.CommitInfo {
	out := make([]models.CommitInfo, 0, len(commits))
	for _, c := range commits {
		hash := c.Hash
		if len(hash) > shortHashLen {
			hash = hash[:shortHashLen]
		}
		out = append(out, models.CommitInfo{
			Hash:    hash,
			Message: SanitizeAll(c.Message),
			Date:    c.Date.UTC(),
		})
	}
	return out
}

// SanitizeGitStats converts raw statistics into their redacted form.
func (s *Sanitizer) SanitizeGitStats(cs repo.CommitStats, bs repo.BranchStats) GitStats {
	var names []string
	for _, b := range bs.Branches {
		if strings.Contains(b, "HEAD") || strings.HasPrefix(b, "remotes/") {
			continue
		}
		names = append(names, SanitizeAll(b))
	}

	return GitStats{
		CommitActivity: models.CommitActivity{
			Total:         cs.TotalCommits,
			Timeline:      models.Timeline{Start: cs.Start, End: cs.End, Days: cs.Days},
			ActiveDays:    cs.ActiveDays,
			CommitsPerDay: cs.CommitsPerDay,
			Commits:       s.SanitizeCommits(cs.Commits),
		},
		CommitQuality: models.CommitQuality{
			AverageMessageLength:         cs.AverageMessageLength,
			ConventionalCommits:          cs.ConventionalCommits,
			ConventionalCommitPercentage: cs.ConventionalCommitPercentage,
		},
		Branches: models.BranchSummary{
			Current:         bs.CurrentBranch,
			Total:           bs.TotalBranches,
			FeatureBranches: len(bs.FeatureBranches),
			BranchNames:     names,
		},
	}
}

// SanitizeRepository builds the payload for one analysis. Excluded and
// oversize files are recorded by path, never silently lost.
func (s *Sanitizer) SanitizeRepository(an *repo.Analysis, files []repo.File) *Payload {
	p := &Payload{Files: make([]repo.File, 0, len(files))}
	for _, f := range files {
		if s.ShouldExclude(f.Path) {
			p.ExcludedFiles = append(p.ExcludedFiles, f.Path)
			continue
		}

		found := Detect(f.Content)
		p.PII.Emails += len(found.Emails)
		p.PII.Phones += len(found.Phones)
		p.PII.SSNs += len(found.SSNs)
		p.PII.Names += len(found.Names)

		clean, ok := s.SanitizeCode(f.Content)
		if !ok {
			if f.Content != "" {
				p.DroppedFiles = append(p.DroppedFiles, f.Path)
			}
			continue
		}
		p.Files = append(p.Files, repo.File{Path: f.Path, Content: clean})
	}
	p.GitStats = s.SanitizeGitStats(an.Commits, an.Branches)

	slog.Info("repository sanitized",
		"submission_id", an.SubmissionID,
		"files", len(p.Files),
		"excluded", len(p.ExcludedFiles),
		"dropped", len(p.DroppedFiles),
		"emails", p.PII.Emails,
		"phones", p.PII.Phones,
		"names", p.PII.Names,
	)
	return p
}

// Report builds the audit record stored with the evaluation.
func (s *Sanitizer) Report(p *Payload) *models.SanitizationAudit {
	return &models.SanitizationAudit{
		EmailsRemoved: p.PII.Emails,
		PhonesRemoved: p.PII.Phones,
		SSNsRemoved:   p.PII.SSNs,
		NamesRemoved:  p.PII.Names,
		ExcludedFiles: nonNil(p.ExcludedFiles),
		DroppedFiles:  nonNil(p.DroppedFiles),
		Timestamp:     s.now().UTC(),
	}
}

func nonNil(s []string) []string {
	if s == nil {
		return []string{}
	}
	return s
}
