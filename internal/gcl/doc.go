// Package gcl implements the generalized concordance list algebra: lazy,
// randomly seekable cursors over streams of position intervals, and the
// combinators that compose them into structural queries.
//
// Every Cursor yields its matches in (start, end) order with unique starts.
// Consumers drive a cursor through its four probes and stop when a probe
// returns a sentinel match:
//
//	for m := c.NextStart(gcl.NegInf + 1); !m.IsSentinel(); m = c.NextStart(m.Start + 1) {
//		...
//	}
//
// A Cursor is not safe for concurrent use. Independent cursors may share
// backing arrays across goroutines.
package gcl
