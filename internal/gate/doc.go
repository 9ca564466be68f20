// Package gate runs the PR to ticket validation pipeline.
//
// A run is strictly linear: resolve the ticket reference from the PR body,
// fetch the ticket, assemble the similarity prompt, call the model under the
// retry policy, parse the reply, optionally ask for review comments, decide
// pass or fail against the threshold and post one report.
//
// The model reply is only loosely JSON. [ParseMatchResult] and
// [ParseReviewComments] enforce the output contract and return a *ParseError
// carrying the raw text when it is not met. An unparseable similarity reply
// degrades to [FallbackMatch] so the gate fails closed. An unparseable review
// reply degrades to no comments because review never affects the verdict.
//
// Trigger sources (manual, Actions, Jenkins, webhook) implement [Trigger] and
// the source-control host implements [Host]; both live outside this package.
package gate
