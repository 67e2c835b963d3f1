// Package preflight provides readiness checks for filesystem paths and local
// ports that the devnet launchers depend on.
//
// The L1 and L2 launchers run these before starting a node so a port already
// taken by a forgotten geth, or an unwritable gen directory, is reported up
// front instead of surfacing as a child process crash seconds later.
package preflight
