// Package criteria maps free-text criterion references returned by a model
// onto canonical rubric criteria.
package criteria

import (
	"errors"
	"regexp"
	"strings"

	"github.com/google/uuid"

	"github.com/kiranshivaraju/repograder/pkg/models"
)

// ErrUnresolved is returned when no lookup key matches a model-supplied reference.
var ErrUnresolved = errors.New("CRITERION_UNRESOLVED")

// Matching strategies, tried in this order.
const (
	StrategyExactID        = "exact_id"
	StrategyNormalizedID   = "normalized_id"
	StrategyNormalizedName = "normalized_name"
	StrategyExactName      = "exact_name"
)

// Key kinds stored in the lookup.
const (
	KeyID             = "id"
	KeyNormalizedName = "normalized_name"
	KeyRawName        = "raw_name"
)

var (
	whitespace  = regexp.MustCompile(`\s+`)
	nonSnakeish = regexp.MustCompile(`[^a-z0-9_]`)
)

type entry struct {
	id   uuid.UUID
	kind string
}

// Match describes how a reference was resolved.
type Match struct {
	CriterionID uuid.UUID
	Strategy    string
	Key         string
}

// Resolver is an immutable lookup built from a project's criteria.
type Resolver struct {
	lookup map[string]entry
}

// NewResolver indexes criteria by id, normalized name, and raw name in both
// original case and lowercase. When two criteria produce the same key the one
// earlier in the slice keeps it.
func NewResolver(criteria []models.Criterion) *Resolver {
	r := &Resolver{lookup: make(map[string]entry, len(criteria)*5)}
	for _, c := range criteria {
		r.add(c.ID.String(), c.ID, KeyID)
		name := c.CriterionName
		if name == "" {
			continue
		}
		r.add(snake(name), c.ID, KeyNormalizedName)
		r.add(Normalize(name), c.ID, KeyNormalizedName)
		r.add(name, c.ID, KeyRawName)
		r.add(strings.ToLower(name), c.ID, KeyRawName)
	}
	return r
}

func (r *Resolver) add(key string, id uuid.UUID, kind string) {
	if key == "" {
		return
	}
	if _, taken := r.lookup[key]; taken {
		return
	}
	r.lookup[key] = entry{id: id, kind: kind}
}

// Resolve tries, in order: the id as given, the normalized id, the normalized
// name, and the name as given. The first hit wins.
func (r *Resolver) Resolve(aiID, aiName string) (Match, error) {
	aiID = strings.TrimSpace(aiID)
	aiName = strings.TrimSpace(aiName)

	if m, ok := r.find(aiID, StrategyExactID); ok {
		return m, nil
	}
	if aiID != "" {
		if m, ok := r.findNormalized(aiID, StrategyNormalizedID); ok {
			return m, nil
		}
	}
	if aiName != "" {
		if m, ok := r.findNormalized(aiName, StrategyNormalizedName); ok {
			return m, nil
		}
		if m, ok := r.find(aiName, StrategyExactName); ok {
			return m, nil
		}
	}
	return Match{}, ErrUnresolved
}

// Len returns the number of distinct lookup keys.
func (r *Resolver) Len() int {
	return len(r.lookup)
}

func (r *Resolver) find(key, strategy string) (Match, bool) {
	if key == "" {
		return Match{}, false
	}
	e, ok := r.lookup[key]
	if !ok {
		return Match{}, false
	}
	return Match{CriterionID: e.id, Strategy: strategy, Key: e.kind}, true
}

func (r *Resolver) findNormalized(s, strategy string) (Match, bool) {
	if m, ok := r.find(snake(s), strategy); ok {
		return m, true
	}
	return r.find(Normalize(s), strategy)
}

// Normalize lowercases s, turns whitespace runs into underscores and drops
// everything outside [a-z0-9_].
func Normalize(s string) string {
	return nonSnakeish.ReplaceAllString(snake(s), "")
}

func snake(s string) string {
	return whitespace.ReplaceAllString(strings.ToLower(strings.TrimSpace(s)), "_")
}
