package redact

import (
	"path"
	"regexp"

	"github.com/bmatcuk/doublestar/v4"
)

// Placeholder replaces every detected secret.
const Placeholder = "[REDACTED]"

type secretPattern struct {
	name string
	re   *regexp.Regexp
}

// secretPatterns are regex heuristics for credentials that show up in
// diffs and PR text. Order matters: specific token shapes run before the
// generic assignment patterns.
var secretPatterns = []secretPattern{
	{"private key block", regexp.MustCompile(`-----BEGIN\s+(?:RSA\s+|EC\s+|OPENSSH\s+)?PRIVATE KEY-----`)},
	{"aws access key", regexp.MustCompile(`AKIA[0-9A-Z]{16}`)},
	{"aws secret key", regexp.MustCompile(`(?i)(aws[_-]?secret[_-]?access[_-]?key)\s*[:=]\s*["']?([A-Za-z0-9/+=]{40})["']?`)},
	{"github token", regexp.MustCompile(`gh[pousr]_[A-Za-z0-9_]{36,}`)},
	{"github fine-grained token", regexp.MustCompile(`github_pat_[A-Za-z0-9_]{40,}`)},
	{"atlassian token", regexp.MustCompile(`ATATT[A-Za-z0-9_=-]{20,}`)},
	{"slack token", regexp.MustCompile(`xox[bporas]-[A-Za-z0-9-]{10,}`)},
	{"anthropic key", regexp.MustCompile(`sk-ant-[A-Za-z0-9_-]{20,}`)},
	{"openai key", regexp.MustCompile(`sk-(?:proj-)?[A-Za-z0-9]{20,}`)},
	{"jwt", regexp.MustCompile(`eyJ[A-Za-z0-9_-]{10,}\.eyJ[A-Za-z0-9_-]{10,}\.[A-Za-z0-9_-]{10,}`)},
	{"bearer token", regexp.MustCompile(`(?i)Bearer\s+[A-Za-z0-9._-]{20,}`)},
	{"basic auth header", regexp.MustCompile(`(?i)Basic\s+[A-Za-z0-9+/]{16,}={0,2}`)},
	{"api key assignment", regexp.MustCompile(`(?i)(api[_-]?key|apikey|api[_-]?secret)\s*[:=]\s*["']?([A-Za-z0-9/+=_-]{20,})["']?`)},
	{"secret assignment", regexp.MustCompile(`(?i)(secret|token|password|passwd|credential)\s*[:=]\s*["']([^"']{8,})["']`)},
	{"hex secret assignment", regexp.MustCompile(`(?i)(key|secret|token)\s*[:=]\s*["']?[0-9a-f]{32,}["']?`)},
}

// Secrets replaces detected secrets in text with [REDACTED].
func Secrets(text string) string {
	out, _ := SecretsCount(text)
	return out
}

// SecretsCount is Secrets that also reports how many matches were replaced.
func SecretsCount(text string) (string, int) {
	n := 0
	for _, p := range secretPatterns {
		text = p.re.ReplaceAllStringFunc(text, func(string) string {
			n++
			return Placeholder
		})
	}
	return text, n
}

// ShouldRedactPath reports whether p matches any doublestar pattern. A
// pattern with a leading "**/" also matches against the base name so
// "**/.env" covers a top-level .env file.
func ShouldRedactPath(p string, patterns []string) bool {
	for _, pattern := range patterns {
		if ok, err := doublestar.Match(pattern, p); err == nil && ok {
			return true
		}
		if ok, err := doublestar.Match(pattern, path.Base(p)); err == nil && ok {
			return true
		}
	}
	return false
}

// Content redacts a whole file body when its path matches redactPaths and
// otherwise only the secrets inside it.
func Content(content, p string, redactPaths []string) string {
	if ShouldRedactPath(p, redactPaths) {
		return Placeholder + " (file content redacted by path policy)\n"
	}
	return Secrets(content)
}
