// Package ticket finds tracker ticket references in pull-request text and
// defines the read-only view of a ticket used by the gate.
//
// A reference is a project-prefixed key such as ABC-12. In [MatchURL] mode only
// keys inside a tracker browse link (https://host/browse/ABC-12) count; in
// [MatchLoose] mode a bare key anywhere in the text is accepted when no link
// is present. The leftmost match always wins.
package ticket
