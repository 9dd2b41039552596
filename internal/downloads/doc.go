// Package downloads owns the lifecycle of externally-driven downloads: the
// per-record state machine, its SQLite persistence, and the tracker that turns
// facility events into completed, extracted, library-ready installs.
package downloads
