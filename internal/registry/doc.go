// Package registry persists the child processes rollop has spawned in a small
// SQLite database inside the gen directory.
//
// The supervisor records a row when it starts a child and stamps exited_at when
// the child goes away. Rows without an exit time after rollop itself has died
// point at orphans from a crashed run, which the clean command hands to the
// reaper.
package registry
