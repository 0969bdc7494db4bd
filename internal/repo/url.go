package repo

import (
	"fmt"
	"net/url"
	"strings"
)

// Ref identifies a hosted repository.
type Ref struct {
	Host  string
	Owner string
	Name  string
}

// FullName returns "owner/name".
func (r Ref) FullName() string {
	return r.Owner + "/" + r.Name
}

// HTTPSURL returns the canonical https clone URL.
func (r Ref) HTTPSURL() string {
	return fmt.Sprintf("https://%s/%s/%s.git", r.Host, r.Owner, r.Name)
}

// ParseRepoURL accepts https://host/owner/repo[.git] and user@host:owner/repo[.git].
// Any other form fails with ErrInvalidURL.
func ParseRepoURL(raw string) (Ref, error) {
	s := strings.TrimSpace(raw)
	if s == "" {
		return Ref{}, fmt.Errorf("%w: empty url", ErrInvalidURL)
	}

	if strings.HasPrefix(s, "https://") {
		u, err := url.Parse(s)
		if err != nil || u.Host == "" {
			return Ref{}, fmt.Errorf("%w: %q", ErrInvalidURL, raw)
		}
		return refFromPath(u.Host, u.Path, raw)
	}

	// scp-like form: user@host:owner/repo.git
	if at := strings.Index(s, "@"); at > 0 && !strings.Contains(s, "://") {
		rest := s[at+1:]
		colon := strings.Index(rest, ":")
		if colon <= 0 {
			return Ref{}, fmt.Errorf("%w: %q", ErrInvalidURL, raw)
		}
		return refFromPath(rest[:colon], rest[colon+1:], raw)
	}

	return Ref{}, fmt.Errorf("%w: %q", ErrInvalidURL, raw)
}

func refFromPath(host, path, raw string) (Ref, error) {
	parts := strings.Split(strings.Trim(path, "/"), "/")
	if len(parts) < 2 || parts[0] == "" || parts[1] == "" {
		return Ref{}, fmt.Errorf("%w: %q", ErrInvalidURL, raw)
	}
	name := strings.TrimSuffix(parts[1], ".git")
	if name == "" {
		return Ref{}, fmt.Errorf("%w: %q", ErrInvalidURL, raw)
	}
	return Ref{Host: host, Owner: parts[0], Name: name}, nil
}
