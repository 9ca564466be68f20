// Package diffctx shapes a raw PR diff before it is placed into a prompt.
//
// A diff is split into per-file sections. Sections for excluded paths are
// dropped, sections for sensitive paths are blanked, secrets are redacted,
// and the result is cut at a file boundary once it exceeds the byte budget.
// File names come from github.com/waigani/diffparser.
package diffctx
