// Package dedupe provides a time-based reply cache so re-delivered
// command frames can be answered from memory instead of reprocessed.
package dedupe
