// Package schema provides the record structures persisted by the marxiv
// local store: settings, per-paper note collections, and API credentials.
//
// All records are stored as JSON. Timestamps on notes are Unix milliseconds
// so that exported documents stay interchangeable with the web client's
// backup format.
package schema
