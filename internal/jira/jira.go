package jira

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/chainguard-dev/clog"

	"github.com/dshills/ticketgate/internal/config"
	"github.com/dshills/ticketgate/internal/ticket"
)

// maxErrorBody bounds the response body kept on a FetchError.
const maxErrorBody = 512

// FetchError reports a non-success response from the tracker.
type FetchError struct {
	Key        string
	StatusCode int
	Body       string
}

func (e *FetchError) Error() string {
	return fmt.Sprintf("jira API %d for %s: %s", e.StatusCode, e.Key, e.Body)
}

// Client reads issues from a Jira site.
type Client struct {
	baseURL string
	email   string
	token   string
	httpCli *http.Client
}

// NewClient creates a client from tracker settings.
func NewClient(cfg config.Tracker) (*Client, error) {
	base := cfg.BaseURL()
	if base == "" {
		return nil, errors.New("tracker base URL is not configured")
	}
	if cfg.Email == "" || cfg.Token == "" {
		return nil, errors.New("tracker email and API token are required")
	}
	timeout := cfg.Timeout
	if timeout == 0 {
		timeout = 10 * time.Second
	}
	return &Client{
		baseURL: base,
		email:   cfg.Email,
		token:   cfg.Token,
		httpCli: &http.Client{Timeout: timeout},
	}, nil
}

// BaseURL returns the site root, used for example links in comments.
func (c *Client) BaseURL() string { return c.baseURL }

// GetTicket fetches the summary and flattened description of an issue.
func (c *Client) GetTicket(ctx context.Context, key string) (ticket.Content, error) {
	endpoint := fmt.Sprintf("%s/rest/api/3/issue/%s", c.baseURL, url.PathEscape(key))

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return ticket.Content{}, fmt.Errorf("creating request: %w", err)
	}
	req.SetBasicAuth(c.email, c.token)
	req.Header.Set("Accept", "application/json")

	clog.FromContext(ctx).With("key", key).Debug("fetching ticket")

	resp, err := c.httpCli.Do(req)
	if err != nil {
		return ticket.Content{}, fmt.Errorf("fetching ticket %s: %w", key, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return ticket.Content{}, fmt.Errorf("reading response: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		text := strings.TrimSpace(string(body))
		if text == "" {
			text = http.StatusText(resp.StatusCode)
		}
		return ticket.Content{}, &FetchError{
			Key:        key,
			StatusCode: resp.StatusCode,
			Body:       truncate(text, maxErrorBody),
		}
	}

	var issue issueResponse
	if err := json.Unmarshal(body, &issue); err != nil {
		return ticket.Content{}, fmt.Errorf("parsing ticket %s: %w", key, err)
	}

	return ticket.Content{
		Key:         key,
		Summary:     issue.Fields.Summary,
		Description: flattenDescription(issue.Fields.Description),
	}, nil
}

type issueResponse struct {
	Fields issueFields `json:"fields"`
}

type issueFields struct {
	Summary     string   `json:"summary"`
	Description *docNode `json:"description"`
}

// docNode is one node of an Atlassian Document Format tree.
type docNode struct {
	Type    string     `json:"type"`
	Text    string     `json:"text,omitempty"`
	Content []*docNode `json:"content,omitempty"`
}

// flattenDescription renders a description document as plain text: the text
// runs inside each top-level block are concatenated with no separator and
// the blocks are joined with newlines. A nil or empty document yields "".
func flattenDescription(doc *docNode) string {
	if doc == nil || len(doc.Content) == 0 {
		return ""
	}
	blocks := make([]string, 0, len(doc.Content))
	for _, block := range doc.Content {
		var sb strings.Builder
		collectText(block, &sb)
		blocks = append(blocks, sb.String())
	}
	return strings.Join(blocks, "\n")
}

func collectText(n *docNode, sb *strings.Builder) {
	if n == nil {
		return
	}
	sb.WriteString(n.Text)
	for _, child := range n.Content {
		collectText(child, sb)
	}
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
