package repo

import (
	"errors"
	"fmt"
	"math"
	"regexp"
	"sort"
	"strings"
	"time"

	"github.com/go-git/go-git/v5"
	"github.com/go-git/go-git/v5/plumbing"
	"github.com/go-git/go-git/v5/plumbing/object"
	"github.com/go-git/go-git/v5/plumbing/storer"
)

var conventionalCommit = regexp.MustCompile(`(?i)^(feat|fix|docs|style|refactor|test|chore)(\([^)]*\))?!?:`)

// Commit is one entry of the unredacted log. Author identity is stripped by
// the sanitizer before anything leaves the process.
type Commit struct {
	Hash    string
	Message string
	Author  string
	Email   string
	Date    time.Time
}

// CommitStats summarizes the commit history of a clone.
type CommitStats struct {
	TotalCommits                 int
	Start                        *time.Time
	End                          *time.Time
	Days                         int
	ActiveDays                   int
	CommitsPerDay                float64
	ConventionalCommits          int
	ConventionalCommitPercentage float64
	AverageMessageLength         float64
	Commits                      []Commit
}

// BranchStats summarizes branches in the style of `git branch -a`: local
// branch names plus remote-tracking refs prefixed with "remotes/".
type BranchStats struct {
	CurrentBranch   string
	TotalBranches   int
	FeatureBranches []string
	Branches        []string
}

// CommitStats walks the full log reachable from HEAD. A repository without
// commits yields zero stats. In a shallow clone the walk stops at the boundary.
func (a *Analyzer) CommitStats(path string) (CommitStats, error) {
	r, err := git.PlainOpen(path)
	if err != nil {
		return CommitStats{}, fmt.Errorf("%w: opening %s: %v", ErrAnalysis, path, err)
	}

	iter, err := r.Log(&git.LogOptions{})
	if errors.Is(err, plumbing.ErrReferenceNotFound) {
		return CommitStats{}, nil
	}
	if err != nil {
		return CommitStats{}, fmt.Errorf("%w: reading log: %v", ErrAnalysis, err)
	}
	defer iter.Close()

	var commits []Commit
	err = iter.ForEach(func(c *object.Commit) error {
		commits = append(commits, Commit{
			Hash:    c.Hash.String(),
			Message: strings.TrimSpace(c.Message),
			Author:  c.Author.Name,
			Email:   c.Author.Email,
			Date:    c.Author.When,
		})
		return nil
	})
	if err != nil && !errors.Is(err, plumbing.ErrObjectNotFound) {
		return CommitStats{}, fmt.Errorf("%w: walking log: %v", ErrAnalysis, err)
	}

	return summarizeCommits(commits), nil
}

func summarizeCommits(commits []Commit) CommitStats {
	cs := CommitStats{TotalCommits: len(commits), Commits: commits}
	if len(commits) == 0 {
		return cs
	}

	start, end := commits[0].Date, commits[0].Date
	days := make(map[string]struct{})
	var msgLen int
	for _, c := range commits {
		if c.Date.Before(start) {
			start = c.Date
		}
		if c.Date.After(end) {
			end = c.Date
		}
		days[c.Date.UTC().Format("2006-01-02")] = struct{}{}
		msgLen += len([]rune(c.Message))
		if conventionalCommit.MatchString(c.Message) {
			cs.ConventionalCommits++
		}
	}

	span := int(math.Ceil(end.Sub(start).Hours() / 24))
	if span == 0 {
		span = 1
	}
	cs.Start, cs.End = &start, &end
	cs.Days = span
	cs.ActiveDays = len(days)
	cs.CommitsPerDay = round2(float64(len(commits)) / float64(span))
	cs.ConventionalCommitPercentage = round2(float64(cs.ConventionalCommits) / float64(len(commits)) * 100)
	cs.AverageMessageLength = round2(float64(msgLen) / float64(len(commits)))
	return cs
}

// BranchStats lists local and remote-tracking branches. Feature branches are
// local branches other than main and master.
func (a *Analyzer) BranchStats(path string) (BranchStats, error) {
	r, err := git.PlainOpen(path)
	if err != nil {
		return BranchStats{}, fmt.Errorf("%w: opening %s: %v", ErrAnalysis, path, err)
	}

	var bs BranchStats
	if head, err := r.Head(); err == nil {
		bs.CurrentBranch = head.Name().Short()
	} else if ref, rerr := r.Storer.Reference(plumbing.HEAD); rerr == nil && ref.Type() == plumbing.SymbolicReference {
		// unborn branch
		bs.CurrentBranch = ref.Target().Short()
	}

	refs, err := r.References()
	if err != nil {
		return BranchStats{}, fmt.Errorf("%w: listing refs: %v", ErrAnalysis, err)
	}
	err = refs.ForEach(func(ref *plumbing.Reference) error {
		switch {
		case ref.Name().IsBranch():
			bs.Branches = append(bs.Branches, ref.Name().Short())
		case ref.Name().IsRemote():
			bs.Branches = append(bs.Branches, "remotes/"+ref.Name().Short())
		}
		return nil
	})
	if err != nil && !errors.Is(err, storer.ErrStop) {
		return BranchStats{}, fmt.Errorf("%w: walking refs: %v", ErrAnalysis, err)
	}

	sort.Strings(bs.Branches)
	bs.TotalBranches = len(bs.Branches)
	bs.FeatureBranches = featureBranches(bs.Branches)
	return bs, nil
}

func featureBranches(names []string) []string {
	out := []string{}
	for _, n := range names {
		if strings.Contains(n, "HEAD") || strings.HasPrefix(n, "remotes/") {
			continue
		}
		if n == "main" || n == "master" {
			continue
		}
		out = append(out, n)
	}
	return out
}

func round2(v float64) float64 {
	return math.Round(v*100) / 100
}
