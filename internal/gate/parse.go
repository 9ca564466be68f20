package gate

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"strconv"
	"strings"
)

// ParseError is a model reply that does not meet the output contract.
type ParseError struct {
	Target string
	Raw    string
	Err    error
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("parsing %s response: %v", e.Target, e.Err)
}

func (e *ParseError) Unwrap() error { return e.Err }

// StripFences removes one optional leading fence line and one optional
// trailing fence line. Nothing between them is touched.
func StripFences(raw string) string {
	text := strings.TrimSpace(raw)
	lines := strings.Split(text, "\n")
	if len(lines) > 0 && isFence(lines[0]) {
		lines = lines[1:]
	}
	if len(lines) > 0 && isFence(lines[len(lines)-1]) {
		lines = lines[:len(lines)-1]
	}
	return strings.TrimSpace(strings.Join(lines, "\n"))
}

func isFence(line string) bool {
	line = strings.TrimSpace(line)
	return strings.HasPrefix(line, "```") || strings.HasPrefix(line, "~~~")
}

// ParseMatchResult parses a similarity reply. The score must be an integer
// in [0,100], given as a JSON number or a numeric string, and the comment
// must be a string. Both are required.
func ParseMatchResult(raw string) (MatchResult, error) {
	fail := func(err error) (MatchResult, error) {
		return MatchResult{}, &ParseError{Target: "similarity", Raw: raw, Err: err}
	}

	fields, err := decodeObject(StripFences(raw))
	if err != nil {
		return fail(err)
	}
	scoreRaw, ok := fields["score"]
	if !ok {
		return fail(errors.New(`missing "score"`))
	}
	commentRaw, ok := fields["comment"]
	if !ok {
		return fail(errors.New(`missing "comment"`))
	}

	score, err := coerceInt(scoreRaw)
	if err != nil {
		return fail(fmt.Errorf("score: %w", err))
	}
	if score < 0 || score > 100 {
		return fail(fmt.Errorf("score %d out of range [0,100]", score))
	}

	comment, err := decodeString(commentRaw)
	if err != nil {
		return fail(fmt.Errorf("comment: %w", err))
	}
	return MatchResult{Score: score, Comment: comment}, nil
}

// ParseReviewComments parses a review reply. "comments" must be an array,
// possibly empty, and every element needs a file, a positive line and a
// comment. Order is preserved.
func ParseReviewComments(raw string) ([]ReviewComment, error) {
	fail := func(err error) ([]ReviewComment, error) {
		return nil, &ParseError{Target: "review", Raw: raw, Err: err}
	}

	fields, err := decodeObject(StripFences(raw))
	if err != nil {
		return fail(err)
	}
	listRaw, ok := fields["comments"]
	if !ok {
		return fail(errors.New(`missing "comments"`))
	}
	var items []json.RawMessage
	if err := json.Unmarshal(listRaw, &items); err != nil || items == nil {
		return fail(errors.New(`"comments" is not an array`))
	}

	comments := make([]ReviewComment, 0, len(items))
	for i, item := range items {
		c, err := parseReviewComment(item)
		if err != nil {
			return fail(fmt.Errorf("comments[%d]: %w", i, err))
		}
		comments = append(comments, c)
	}
	return comments, nil
}

func parseReviewComment(item json.RawMessage) (ReviewComment, error) {
	fields, err := decodeObject(string(item))
	if err != nil {
		return ReviewComment{}, err
	}
	var c ReviewComment
	for _, key := range []string{"file", "line", "comment"} {
		if _, ok := fields[key]; !ok {
			return ReviewComment{}, fmt.Errorf("missing %q", key)
		}
	}
	if c.File, err = decodeString(fields["file"]); err != nil || c.File == "" {
		return ReviewComment{}, errors.New("file is not a non-empty string")
	}
	line, err := coerceInt(fields["line"])
	if err != nil {
		return ReviewComment{}, fmt.Errorf("line: %w", err)
	}
	if line < 1 {
		return ReviewComment{}, fmt.Errorf("line %d is not positive", line)
	}
	c.Line = line
	if c.Comment, err = decodeString(fields["comment"]); err != nil {
		return ReviewComment{}, fmt.Errorf("comment: %w", err)
	}
	return c, nil
}

// decodeObject decodes text as a single JSON object.
func decodeObject(text string) (map[string]json.RawMessage, error) {
	if text == "" {
		return nil, errors.New("empty response")
	}
	var fields map[string]json.RawMessage
	if err := json.Unmarshal([]byte(text), &fields); err != nil {
		return nil, fmt.Errorf("invalid JSON object: %w", err)
	}
	if fields == nil {
		return nil, errors.New("response is null")
	}
	return fields, nil
}

// decodeString requires raw to be a JSON string. null is rejected.
func decodeString(raw json.RawMessage) (string, error) {
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 || raw[0] != '"' {
		return "", errors.New("not a string")
	}
	var s string
	if err := json.Unmarshal(raw, &s); err != nil {
		return "", err
	}
	return s, nil
}

// coerceInt accepts an integral JSON number or a string holding one, with
// an optional trailing percent sign.
func coerceInt(raw json.RawMessage) (int, error) {
	raw = bytes.TrimSpace(raw)
	if len(raw) > 0 && raw[0] == '"' {
		var s string
		if err := json.Unmarshal(raw, &s); err != nil {
			return 0, err
		}
		s = strings.TrimSpace(strings.TrimSuffix(strings.TrimSpace(s), "%"))
		if s == "" {
			return 0, errors.New("empty string")
		}
		raw = json.RawMessage(s)
	}

	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.UseNumber()
	var v any
	if err := dec.Decode(&v); err != nil {
		return 0, fmt.Errorf("not a number: %s", raw)
	}
	if dec.More() {
		return 0, fmt.Errorf("not a number: %s", raw)
	}
	n, ok := v.(json.Number)
	if !ok {
		return 0, fmt.Errorf("not a number: %s", raw)
	}
	if i, err := strconv.ParseInt(n.String(), 10, 64); err == nil {
		if i < math.MinInt32 || i > math.MaxInt32 {
			return 0, fmt.Errorf("%d out of range", i)
		}
		return int(i), nil
	}
	f, err := n.Float64()
	if err != nil || math.IsInf(f, 0) || f != math.Trunc(f) {
		return 0, fmt.Errorf("not an integer: %s", n)
	}
	if f < math.MinInt32 || f > math.MaxInt32 {
		return 0, fmt.Errorf("%s out of range", n)
	}
	return int(f), nil
}
