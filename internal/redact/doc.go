// Package redact removes secrets from PR text and diff content before it is
// sent to any completion provider.
//
// Detection uses regex heuristics covering common secret shapes: API keys,
// JWTs, private keys, AWS keys, bearer and basic auth headers, and
// provider-specific tokens (Atlassian, Anthropic, OpenAI, GitHub, Slack).
//
// Path-based redaction uses doublestar globs: files whose paths match a
// configured pattern have their entire content replaced rather than being
// scanned line by line.
package redact
