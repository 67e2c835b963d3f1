// Package l1 deploys the local L1 devnet: it renders the deploy config,
// generates genesis files through op-node, initialises a geth datadir with the
// block signer account and launches geth under the process supervisor.
//
// Generated artifacts are reused across runs. Clean removes them together with
// any geth left running by an earlier crashed run.
package l1
