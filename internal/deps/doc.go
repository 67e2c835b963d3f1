// Package deps checks for the external toolchains rollop drives and installs the
// ones it can fetch on its own: foundry, a pinned geth release and an op-geth
// build. Basic prerequisites (git, make, go, curl, tar) are only reported, never
// installed.
package deps
