// Package main hosts the rollop CLI entrypoint and command graph.
//
// Each devnet subcommand (setup, l1, l2-execution, devnet, clean) resolves the
// configuration, builds the collaborator set in wire.go and hands the parsed
// invocation to the dispatch package, which runs the command's fixed sequence
// and prints the outcome line. Configuration helpers and the process status
// view live alongside as plain Cobra commands.
//
// Keep this package lean: new behaviour belongs in the internal packages and is
// only surfaced here.
package main
