// Package window implements the custom window: the object scripts see as
// window, globalThis and self.
//
// It exposes a fixed whitelist of standard globals (never Function or eval),
// timers scheduled on a [eventloop.JS], and a console that writes to a
// logiface logger. Implicit globals created by scripts are stored on it too.
//
// Timers are tracked per run. A timer created by a run that fails is
// cancelled, and the timers of the previous run are cancelled once a new run
// succeeds, so an edited script never leaves stale callbacks behind.
package window
