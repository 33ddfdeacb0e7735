// Package journal records the lifecycle of each analysis in SQLite so status
// queries can describe in-flight, degraded, and failed runs, not only the
// finished ones visible in the artifact store.
//
// The journal is an index, not the source of truth for results: the artifact
// store decides whether an analysis exists. Rows are created when an analysis
// starts, advanced as each stage begins, and closed as completed, degraded, or
// failed. The server calls FailRunning at startup so entries left running by a
// crash are closed; other processes open the journal read-mostly and leave
// them alone.
package journal
