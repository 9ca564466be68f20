package gate

import (
	"context"
	"fmt"
	"strings"

	"github.com/dshills/ticketgate/internal/ticket"
)

// Repo identifies a repository on the source-control host.
type Repo struct {
	Owner string `json:"owner"`
	Name  string `json:"name"`
}

func (r Repo) String() string { return r.Owner + "/" + r.Name }

// ParseRepo parses "owner/name".
func ParseRepo(s string) (Repo, error) {
	owner, name, ok := strings.Cut(strings.TrimSpace(s), "/")
	if !ok || owner == "" || name == "" || strings.Contains(name, "/") {
		return Repo{}, fmt.Errorf("invalid repository %q: want owner/name", s)
	}
	return Repo{Owner: owner, Name: name}, nil
}

// Trigger supplies the pull request a run is about. Each trigger source is
// a thin adapter over this interface.
type Trigger interface {
	PRNumber() int
	RepoCoordinates() Repo
}

// PullRequest is PR metadata from the host.
type PullRequest struct {
	Title string
	Body  string
	URL   string
}

// Host is the source-control host collaborator.
type Host interface {
	GetPullRequest(ctx context.Context, repo Repo, number int) (PullRequest, error)
	GetDiff(ctx context.Context, repo Repo, number int) (string, error)
	CreateComment(ctx context.Context, repo Repo, number int, body string) error
}

// PRContext is the PR side of the similarity prompt.
type PRContext struct {
	Title string `json:"title"`
	Body  string `json:"body"`
	Diff  string `json:"diff"`
}

// MatchResult is the normalized similarity judgment.
type MatchResult struct {
	Score   int    `json:"score"`
	Comment string `json:"comment"`
}

// FallbackMatch is used when the similarity reply cannot be parsed.
var FallbackMatch = MatchResult{Score: 0, Comment: "Unable to parse AI response."}

// ReviewComment is one line-level remark, in the order the model gave it.
type ReviewComment struct {
	File    string `json:"file"`
	Line    int    `json:"line"`
	Comment string `json:"comment"`
}

// Verdict is the terminal state of a run.
type Verdict string

const (
	VerdictPassed Verdict = "passed"
	VerdictFailed Verdict = "failed"
)

// Stage is the last pipeline stage a run reached.
type Stage string

const (
	StageStart          Stage = "start"
	StageTicketResolved Stage = "ticket_resolved"
	StageContentFetched Stage = "content_fetched"
	StageScored         Stage = "scored"
	StageReviewed       Stage = "reviewed"
	StageReported       Stage = "reported"
)

// Reason explains a failed verdict.
type Reason string

const (
	ReasonNone           Reason = ""
	ReasonBelowThreshold Reason = "below_threshold"
	ReasonMissingTicket  Reason = "missing_ticket_reference"
	ReasonTicketFetch    Reason = "ticket_fetch_failed"
	ReasonModelFailure   Reason = "model_failure"
	ReasonHostFailure    Reason = "host_failure"
)

// Diagnostics keeps raw model output for operators.
type Diagnostics struct {
	RawSimilarity   string `json:"rawSimilarity,omitempty"`
	SimilarityError string `json:"similarityError,omitempty"`
	RawReview       string `json:"rawReview,omitempty"`
	ReviewError     string `json:"reviewError,omitempty"`
	DiffFiles       int    `json:"diffFiles"`
	ExcludedFiles   int    `json:"excludedFiles,omitempty"`
	Redactions      int    `json:"redactions,omitempty"`
	DiffTruncated   bool   `json:"diffTruncated,omitempty"`
}

// Timing records how long each collaborator took.
type Timing struct {
	HostMs    int64 `json:"hostMs"`
	TrackerMs int64 `json:"trackerMs"`
	ModelMs   int64 `json:"modelMs"`
	TotalMs   int64 `json:"totalMs"`
}

// Outcome is everything a run produced.
type Outcome struct {
	RunID           string           `json:"runId"`
	Repo            string           `json:"repo"`
	PR              int              `json:"pr"`
	PRURL           string           `json:"prUrl,omitempty"`
	Ticket          ticket.Reference `json:"ticket"`
	TicketSummary   string           `json:"ticketSummary,omitempty"`
	Stage           Stage            `json:"stage"`
	Verdict         Verdict          `json:"verdict"`
	Reason          Reason           `json:"reason,omitempty"`
	Threshold       int              `json:"threshold"`
	Match           MatchResult      `json:"match"`
	ParseFailed     bool             `json:"parseFailed,omitempty"`
	ReviewRequested bool             `json:"reviewRequested"`
	Review          []ReviewComment  `json:"review,omitempty"`
	Report          string           `json:"report,omitempty"`
	Posted          bool             `json:"posted"`
	DryRun          bool             `json:"dryRun,omitempty"`
	Error           string           `json:"error,omitempty"`
	Diagnostics     Diagnostics      `json:"diagnostics"`
	Timing          Timing           `json:"timing"`
}

// Passed reports whether the run passed the gate.
func (o *Outcome) Passed() bool { return o != nil && o.Verdict == VerdictPassed }

// Recorder observes runs and model calls. A nil Recorder is ignored.
type Recorder interface {
	ObserveRun(o *Outcome)
	ObserveModelCall(purpose, provider string, seconds float64, err error)
}
