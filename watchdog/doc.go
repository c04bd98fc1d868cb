// Package watchdog guards against runaway synchronous loops in live scripts.
//
// A [Watchdog] is armed by [Watchdog.Reset] at the start of every logical unit
// of work (the top of a program run, or an entry point such as a draw
// callback), and polled by [Watchdog.Check], which the script rewriter injects
// at the top of every function and loop body. Once more time than the current
// delay has elapsed since the last reset or decision, the configured [Decider]
// is asked, synchronously, whether to continue. Continuing doubles the delay
// (exponential backoff), so a legitimately long computation is asked about
// with decreasing frequency. Aborting returns an [*InfiniteLoopError], which
// [Watchdog.Bind] throws into the running script so that it unwinds like any
// other exception.
//
// State machine:
//
//	StateIdle    → StateArmed   [Reset(), or the first Check()]
//	StateArmed   → StateTripped [Check() past the delay]
//	StateTripped → StateArmed   [DecisionContinue]
//	StateTripped → StateIdle    [DecisionAbort]
//
// A Watchdog is not safe for concurrent use, with the exception of
// [Watchdog.SetEnabled], which may be called from any goroutine (e.g. when the
// host's view becomes hidden).
package watchdog
