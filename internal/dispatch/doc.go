// Package dispatch maps a parsed rollop invocation onto the ordered sequence of
// collaborator calls for that command and turns the outcome into user-facing
// output and an exit code.
//
// Each command owns a fixed sequence. Every non-empty command first runs the
// basic dependency checks, then its own steps; the first failing step aborts
// the sequence. Collaborators are reached through the small interfaces in
// env.go so the CLI wires real implementations and tests wire recorders.
package dispatch
