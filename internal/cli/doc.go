// Package cli wires together the Cobra command tree for the ticketgate binary.
//
// It defines the root command and all subcommands (run, actions, jenkins,
// serve, config, models, version), binds flags, reads configuration, builds
// the GitHub, Jira and model clients, runs the gate, and returns
// deterministic exit codes for CI gating.
package cli
