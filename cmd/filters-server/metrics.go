package main

import "sync/atomic"

// Metrics holds the counters reported by INFO.
type Metrics struct {
	TotalConnections    atomic.Uint64
	RejectedConnections atomic.Uint64
	TotalCommands       atomic.Uint64
	ItemsAdded          atomic.Uint64
}

func NewMetrics() *Metrics {
	return &Metrics{}
}
