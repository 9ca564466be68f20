package diffctx

import (
	"fmt"
	"strings"

	"github.com/bmatcuk/doublestar/v4"
	"github.com/waigani/diffparser"

	"github.com/dshills/ticketgate/internal/redact"
)

// TruncationMarker is appended when sections are dropped for size.
const TruncationMarker = "... [diff truncated: %d more file(s) omitted] ..."

// Options controls how a diff is shaped.
type Options struct {
	Exclude       []string
	RedactPaths   []string
	RedactSecrets bool
	MaxBytes      int
}

// Result is a prompt-ready diff.
type Result struct {
	Diff      string
	Files     []string
	Excluded  []string
	Omitted   []string
	Redacted  int
	Truncated bool
}

type section struct {
	path string
	text string
}

// Prepare filters, redacts and truncates diff according to opts. The input
// is never modified in place and the same input always yields the same
// result.
func Prepare(diff string, opts Options) Result {
	var res Result
	var kept []section
	for _, s := range splitSections(diff) {
		if s.path != "" && matchesAny(s.path, opts.Exclude) {
			res.Excluded = append(res.Excluded, s.path)
			continue
		}
		if s.path != "" && redact.ShouldRedactPath(s.path, opts.RedactPaths) {
			s.text = headerOf(s.text) + redact.Placeholder + " (file content redacted by path policy)\n"
			res.Redacted++
		} else if opts.RedactSecrets {
			var n int
			s.text, n = redact.SecretsCount(s.text)
			res.Redacted += n
		}
		kept = append(kept, s)
	}

	var b strings.Builder
	for i, s := range kept {
		if opts.MaxBytes > 0 && b.Len()+len(s.text) > opts.MaxBytes && i > 0 {
			for _, rest := range kept[i:] {
				res.Omitted = append(res.Omitted, rest.path)
			}
			res.Truncated = true
			fmt.Fprintf(&b, TruncationMarker+"\n", len(kept)-i)
			break
		}
		if opts.MaxBytes > 0 && len(s.text) > opts.MaxBytes {
			// A single oversized section is cut at a line boundary.
			s.text = cutAtLine(s.text, opts.MaxBytes)
			res.Truncated = true
		}
		b.WriteString(s.text)
		if s.path != "" {
			res.Files = append(res.Files, s.path)
		}
	}
	res.Diff = b.String()
	return res
}

// Files lists the paths touched by diff in order of appearance.
func Files(diff string) []string {
	var files []string
	for _, s := range splitSections(diff) {
		if s.path != "" {
			files = append(files, s.path)
		}
	}
	return files
}

func splitSections(diff string) []section {
	if strings.TrimSpace(diff) == "" {
		return nil
	}
	var sections []section
	var current strings.Builder
	flush := func() {
		if current.Len() == 0 {
			return
		}
		text := current.String()
		sections = append(sections, section{path: pathOf(text), text: text})
		current.Reset()
	}
	lines := strings.SplitAfter(diff, "\n")
	for _, line := range lines {
		if strings.HasPrefix(line, "diff --git ") {
			flush()
		}
		current.WriteString(line)
	}
	flush()
	return sections
}

// pathOf names the file a section touches. Deleted files report their
// original name.
func pathOf(text string) string {
	if !strings.HasPrefix(text, "diff ") {
		return ""
	}
	if d, err := diffparser.Parse(text); err == nil && len(d.Files) > 0 {
		f := d.Files[0]
		name := f.NewName
		if f.Mode == diffparser.DELETED || name == "" || name == "/dev/null" {
			name = f.OrigName
		}
		if name != "" && name != "/dev/null" {
			return strings.TrimPrefix(strings.TrimPrefix(name, "b/"), "a/")
		}
	}
	return pathFromHeader(text)
}

// pathFromHeader reads "diff --git a/x b/y" for sections diffparser cannot
// name, such as binary or mode-only changes.
func pathFromHeader(text string) string {
	first, _, _ := strings.Cut(text, "\n")
	if !strings.HasPrefix(first, "diff --git ") {
		return ""
	}
	fields := strings.Fields(strings.TrimPrefix(first, "diff --git "))
	if len(fields) < 2 {
		return ""
	}
	return strings.TrimPrefix(fields[len(fields)-1], "b/")
}

func headerOf(text string) string {
	var b strings.Builder
	for _, line := range strings.SplitAfter(text, "\n") {
		if strings.HasPrefix(line, "@@") {
			break
		}
		b.WriteString(line)
	}
	return b.String()
}

func cutAtLine(text string, limit int) string {
	cut := text[:limit]
	if i := strings.LastIndexByte(cut, '\n'); i > 0 {
		cut = cut[:i+1]
	}
	return cut + "... [file diff truncated] ...\n"
}

func matchesAny(p string, patterns []string) bool {
	for _, pattern := range patterns {
		if ok, err := doublestar.Match(pattern, p); err == nil && ok {
			return true
		}
	}
	return false
}
