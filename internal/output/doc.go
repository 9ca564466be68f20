// Package output formats run outcomes for display or machine consumption.
//
// Four formats are supported:
//   - text: human-readable terminal summary (default)
//   - json: full outcome including raw model replies for diagnosis
//   - markdown: the PR comment body
//   - sarif: SARIF v2.1.0 with review comments as notes
//
// Use [GetWriter] to obtain a [Writer] for a format string, or
// [WriteOutcome] to write to a file or stdout.
package output
