// Package sanitize removes personally identifying content from repository data
// before it is sent to an external model. Redaction is pattern-based and best-effort.
package sanitize

import (
	"regexp"
	"strings"
)

const (
	EmailPlaceholder = "[EMAIL]"
	PhonePlaceholder = "[PHONE]"
	SSNPlaceholder   = "[SSN]"
	NamePlaceholder  = "[DEVELOPER_NAME]"
)

var (
	emailPattern = regexp.MustCompile(`\b[A-Za-z0-9._%+-]+@[A-Za-z0-9.-]+\.[A-Za-z]{2,}\b`)

	// Ordered most specific first so an international number is not split
	// by the shorter domestic pattern.
	phonePatterns = []*regexp.Regexp{
		regexp.MustCompile(`\+\d{1,3}[\s-]?\(?\d{3}\)?[\s.-]?\d{3}[\s.-]?\d{4}\b`),
		regexp.MustCompile(`\(\d{3}\)\s*\d{3}[-.\s]?\d{4}\b`),
		regexp.MustCompile(`\b\d{3}[-.]\d{3}[-.]\d{4}\b`),
		regexp.MustCompile(`\b\d{10}\b`),
	}

	ssnPattern = regexp.MustCompile(`\b\d{3}-\d{2}-\d{4}\b`)

	authorTagPattern    = regexp.MustCompile(`(?i)(@author|author:|created by|written by)(\s+)([a-z]+\s+[a-z]+)`)
	commentSigPattern   = regexp.MustCompile(`(//\s*)([A-Z][a-z]+\s+[A-Z][a-z]+)(\s*-)`)
	exampleEmailDomains = []string{"example.com", "example.org", "example.net", "test.com"}
)

// SanitizeAll applies every redaction in order: email, phone, SSN, author name.
func SanitizeAll(text string) string {
	text = RedactEmails(text)
	text = RedactPhones(text)
	text = RedactSSNs(text)
	text = RedactNames(text)
	return text
}

// RedactEmails replaces addresses outside the example/test domains.
func RedactEmails(text string) string {
	return emailPattern.ReplaceAllStringFunc(text, func(m string) string {
		if isExampleEmail(m) {
			return m
		}
		return EmailPlaceholder
	})
}

func RedactPhones(text string) string {
	for _, p := range phonePatterns {
		text = p.ReplaceAllString(text, PhonePlaceholder)
	}
	return text
}

func RedactSSNs(text string) string {
	return ssnPattern.ReplaceAllString(text, SSNPlaceholder)
}

// RedactNames replaces author attributions, keeping the attribution prefix.
func RedactNames(text string) string {
	text = authorTagPattern.ReplaceAllString(text, "${1}${2}"+NamePlaceholder)
	text = commentSigPattern.ReplaceAllString(text, "${1}"+NamePlaceholder+"${3}")
	return text
}

// Findings lists the unique PII values seen in a text before redaction.
type Findings struct {
	Emails []string
	Phones []string
	SSNs   []string
	Names  []string
}

// Detect collects unique PII matches without modifying the text. Example-domain
// emails are not reported. Phone matches are taken after SSNs are masked so an
// SSN is not double counted.
func Detect(text string) Findings {
	var f Findings
	f.Emails = unique(filter(emailPattern.FindAllString(text, -1), func(s string) bool { return !isExampleEmail(s) }))
	f.SSNs = unique(ssnPattern.FindAllString(text, -1))

	masked := ssnPattern.ReplaceAllString(text, SSNPlaceholder)
	var phones []string
	for _, p := range phonePatterns {
		phones = append(phones, p.FindAllString(masked, -1)...)
		masked = p.ReplaceAllString(masked, PhonePlaceholder)
	}
	f.Phones = unique(phones)

	var names []string
	for _, m := range authorTagPattern.FindAllStringSubmatch(text, -1) {
		names = append(names, m[3])
	}
	for _, m := range commentSigPattern.FindAllStringSubmatch(text, -1) {
		names = append(names, m[2])
	}
	f.Names = unique(names)
	return f
}

func isExampleEmail(addr string) bool {
	at := strings.LastIndex(addr, "@")
	if at < 0 {
		return false
	}
	domain := strings.ToLower(addr[at+1:])
	for _, d := range exampleEmailDomains {
		if domain == d || strings.HasSuffix(domain, "."+d) {
			return true
		}
	}
	return false
}

func filter(in []string, keep func(string) bool) []string {
	out := in[:0:0]
	for _, s := range in {
		if keep(s) {
			out = append(out, s)
		}
	}
	return out
}

func unique(in []string) []string {
	seen := make(map[string]struct{}, len(in))
	var out []string
	for _, s := range in {
		if _, ok := seen[s]; ok {
			continue
		}
		seen[s] = struct{}{}
		out = append(out, s)
	}
	return out
}
