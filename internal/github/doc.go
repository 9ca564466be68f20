// Package github is the source-control host for the gate, built on
// go-github. It reads pull request metadata and diffs and posts the report
// as an issue comment.
//
// Authentication is a static token (GITHUB_TOKEN) through oauth2, or a
// GitHub App installation through ghinstallation when the server runs as an
// App. GITHUB_API_URL selects a GitHub Enterprise host.
package github
