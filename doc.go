// Package livecode re-executes drawing scripts on every edit, while keeping
// the program's live state.
//
// Each edit runs one reconciliation cycle ([Engine.Run]): the script is
// rewritten so that its top-level names live on an explicit environment
// object (see package rewrite), compiled, and run against a fresh
// environment. The result is then folded into a persistent store: values
// whose content did not change keep the identity they had before the edit,
// including any mutation made by event handlers since, and functions are
// routed through stable behavior proxies, so that instances built by an old
// constructor pick up new methods.
//
// A cycle either commits completely or not at all. Parse errors, compile
// errors, script exceptions and watchdog aborts all leave the persistent
// store, the fingerprint table and the proxy registry exactly as they were.
//
// [Session] hosts an [Engine] on an event loop, which also drives timers,
// frames and input events between cycles.
package livecode
