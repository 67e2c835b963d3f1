// Package processes supervises the long-running devnet children (the L1 geth
// node and the L2 op-geth engine).
//
// Each child runs in its own process group with output appended to a per-child
// log file. WaitAll blocks until the user interrupts or any child exits; devnet
// nodes are expected to run until stopped, so an exit with status 0 is still a
// failure. Teardown walks the children in reverse start order, sending SIGTERM
// to the group and escalating to SIGKILL after the shutdown timeout.
//
// A file lock in the gen directory keeps two supervisors from driving the same
// workspace, and every child is recorded in the registry under the run ID so a
// later clean can find orphans.
package processes
