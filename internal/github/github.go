package github

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"regexp"
	"strings"
	"time"

	"github.com/bradleyfalzon/ghinstallation/v2"
	"github.com/chainguard-dev/clog"
	gh "github.com/google/go-github/v84/github"
	"golang.org/x/oauth2"

	"github.com/dshills/ticketgate/internal/config"
	"github.com/dshills/ticketgate/internal/gate"
)

const defaultAPIURL = "https://api.github.com/"

// ErrUnauthorized marks 401 and 403 replies from GitHub.
var ErrUnauthorized = errors.New("github authentication failed")

// Client provides the three pull request operations the gate needs.
type Client struct {
	client *gh.Client
}

var _ gate.Host = (*Client)(nil)

// NewClient creates a GitHub client. A GitHub App installation is used
// when configured, otherwise the static token.
func NewClient(ctx context.Context, cfg config.GitHub) (*Client, error) {
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 60 * time.Second
	}

	var httpCli *http.Client
	switch {
	case cfg.UsesApp():
		tr, err := ghinstallation.NewKeyFromFile(http.DefaultTransport, cfg.AppID, cfg.InstallationID, cfg.PrivateKeyPath)
		if err != nil {
			return nil, fmt.Errorf("loading GitHub App key: %w", err)
		}
		if cfg.APIURL != "" {
			tr.BaseURL = strings.TrimRight(cfg.APIURL, "/")
		}
		httpCli = &http.Client{Transport: tr, Timeout: timeout}
	case cfg.Token != "":
		httpCli = oauth2.NewClient(ctx, oauth2.StaticTokenSource(&oauth2.Token{AccessToken: cfg.Token}))
		httpCli.Timeout = timeout
	default:
		return nil, fmt.Errorf("GITHUB_TOKEN is not set and no GitHub App is configured")
	}

	return newClient(httpCli, cfg.APIURL)
}

func newClient(httpCli *http.Client, apiURL string) (*Client, error) {
	client := gh.NewClient(httpCli)
	if apiURL != "" && strings.TrimRight(apiURL, "/")+"/" != defaultAPIURL {
		var err error
		client, err = client.WithEnterpriseURLs(apiURL, apiURL)
		if err != nil {
			return nil, fmt.Errorf("invalid GitHub API URL %q: %w", apiURL, err)
		}
	}
	return &Client{client: client}, nil
}

// GetPullRequest fetches title, body and URL of a pull request.
func (c *Client) GetPullRequest(ctx context.Context, repo gate.Repo, number int) (gate.PullRequest, error) {
	pr, _, err := c.client.PullRequests.Get(ctx, repo.Owner, repo.Name, number)
	if err != nil {
		return gate.PullRequest{}, wrap(err, "fetching PR #%d in %s", number, repo)
	}
	return gate.PullRequest{
		Title: pr.GetTitle(),
		Body:  pr.GetBody(),
		URL:   pr.GetHTMLURL(),
	}, nil
}

// GetDiff fetches the unified diff of a pull request.
func (c *Client) GetDiff(ctx context.Context, repo gate.Repo, number int) (string, error) {
	diff, _, err := c.client.PullRequests.GetRaw(ctx, repo.Owner, repo.Name, number, gh.RawOptions{Type: gh.Diff})
	if err != nil {
		return "", wrap(err, "fetching diff for PR #%d in %s", number, repo)
	}
	return diff, nil
}

// CreateComment posts body as an issue comment on the pull request.
func (c *Client) CreateComment(ctx context.Context, repo gate.Repo, number int, body string) error {
	comment, _, err := c.client.Issues.CreateComment(ctx, repo.Owner, repo.Name, number, &gh.IssueComment{
		Body: gh.Ptr(body),
	})
	if err != nil {
		return wrap(err, "commenting on PR #%d in %s", number, repo)
	}
	clog.FromContext(ctx).With("comment_url", comment.GetHTMLURL()).Info("Posted PR comment")
	return nil
}

// wrap adds context and marks authentication failures.
func wrap(err error, format string, args ...any) error {
	msg := fmt.Sprintf(format, args...)
	var resp *gh.ErrorResponse
	if errors.As(err, &resp) && resp.Response != nil {
		switch resp.Response.StatusCode {
		case http.StatusUnauthorized, http.StatusForbidden:
			return fmt.Errorf("%s: %w: %w", msg, ErrUnauthorized, err)
		case http.StatusNotFound:
			return fmt.Errorf("%s: not found: %w", msg, err)
		}
	}
	return fmt.Errorf("%s: %w", msg, err)
}

var (
	httpsRemoteRe = regexp.MustCompile(`^https?://(?:[^@/]+@)?[^/]+/([^/]+)/([^/\s]+?)/?$`)
	sshRemoteRe   = regexp.MustCompile(`^(?:ssh://)?[^@]+@[^:/]+[:/]([^/]+)/([^/\s]+?)/?$`)
)

// ParseRemoteURL extracts the repository from a git remote URL such as the
// GIT_URL a build server exports.
func ParseRemoteURL(url string) (gate.Repo, error) {
	url = strings.TrimSuffix(strings.TrimSpace(url), ".git")

	if m := httpsRemoteRe.FindStringSubmatch(url); m != nil {
		return gate.Repo{Owner: m[1], Name: m[2]}, nil
	}
	if m := sshRemoteRe.FindStringSubmatch(url); m != nil {
		return gate.Repo{Owner: m[1], Name: m[2]}, nil
	}
	return gate.Repo{}, fmt.Errorf("cannot parse owner/repo from remote URL: %s", url)
}
