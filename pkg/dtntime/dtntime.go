// Package dtntime provides the DTN time source used for bundle expiry
// comparisons: milliseconds since the Unix epoch, used instead of a
// monotonic per-process clock because two independent agent processes
// must agree on what "now" means when one stamps createsec and the other
// evaluates expiry.
package dtntime

import "time"

// Infinite marks a lifetime of zero, meaning "never expires".
const Infinite uint64 = 0

// NowMs returns the current DTN time in milliseconds.
func NowMs() uint64 {
	return uint64(time.Now().UnixMilli())
}

// NowSec returns the current DTN time in whole seconds, the resolution
// used by the primary block's createsec field.
func NowSec() uint64 {
	return uint64(time.Now().Unix())
}
