// Package trigger adapts each way a run can start into a gate.Trigger.
//
// Manual runs name the repository and PR directly. GitHub Actions runs read
// GITHUB_REPOSITORY and the pull_request event file at GITHUB_EVENT_PATH.
// Jenkins multibranch runs read GIT_URL and CHANGE_ID. Webhook deliveries
// are converted from a go-github PullRequestEvent.
package trigger
