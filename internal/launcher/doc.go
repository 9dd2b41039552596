// Package launcher spawns game processes, tracks the running set, and records
// session durations when they exit. At most one process per game may run at a
// time.
package launcher
