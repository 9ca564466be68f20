// Package config loads and merges ticketgate configuration from multiple sources.
//
// Precedence (highest to lowest):
//  1. CLI flags (applied with [ApplyOverrides])
//  2. Environment variables (GITHUB_TOKEN, JIRA_API_URL, TICKETGATE_THRESHOLD, etc.)
//  3. YAML config file passed with --config
//  4. Built-in defaults
//
// Use [Load] to obtain a merged [Config] and [Config.Validate] to check it
// before the first network call. The resulting value is passed to each
// component by parameter; nothing reads the environment mid-run.
package config
