// Ticketgate gates pull requests on the Jira ticket they link.
//
// It extracts the ticket reference from the pull request description,
// fetches the ticket, asks a language model how well the diff matches the
// ticket, optionally collects advisory review comments, and posts a verdict
// comment. Exit codes are deterministic for CI gating.
//
// Usage:
//
//	ticketgate run --repo owner/name --pr 42   # validate one pull request
//	ticketgate actions                         # inside a GitHub Actions pull_request job
//	ticketgate jenkins                         # inside a Jenkins multibranch PR build
//	ticketgate serve --port 8080               # receive pull_request webhooks
//	ticketgate config show                     # print effective configuration
package main
