// Package jira is a minimal client for the Jira Cloud REST API v3 issue
// endpoint. It implements [ticket.Repository].
//
// Requests use HTTP Basic auth with the account email and API token. Any
// non-2xx response is returned as a [*FetchError] carrying the status code
// and a truncated body; the client never retries.
package jira
