// Package model defines shared data structures.
package model

// Entry is a named request counter as reported by the store.
type Entry struct {
	Name  string
	Value int64
}

// EntryFilter returns true when an entry should be kept.
type EntryFilter func(Entry) bool

// StatsConfig defines the parameters of a stats report.
type StatsConfig struct {
	// Limit is the raw threshold: -1 selects the adaptive threshold.
	Limit    int64
	Pattern  string
	Rederive bool
}
