// Package journal persists webhook delivery records in SQLite.
//
// Every accepted webhook gets a journal row that tracks how far the
// delivery progressed: written to the working copy, committed, pushed,
// or stuck with an unpushed commit after a push conflict. The journal
// is an audit trail, not a work queue; the daemon never replays
// deliveries from it, but it does use the push_pending status to drive
// startup push recovery.
//
// Schema changes bump the version in schema.go; users clear the
// database to adopt the new schema.
package journal
