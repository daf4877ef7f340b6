// Package convergence polls external state until a set of targets settles.
//
// A Poller runs rounds over (account, region) groups: acquire credentials, fetch the
// group's raw state, classify every target into a canonical status and persist the
// display string when it changed. Archived and terminated targets are counted once and
// dropped. The loop ends when nothing is still converging or the wall-clock timeout
// passes, and aborts on a rejected write.
//
// ClassifyReplication and ClassifyInstance are the two shipped classifiers.
package convergence
