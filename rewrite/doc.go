// Package rewrite implements the scope rewrite applied to every script before
// it is compiled.
//
// The rewrite redirects every top-level binding of a script through explicit
// indirection objects, so that a script can be re-run any number of times
// against a fresh environment, and the results compared against the previous
// run:
//
//   - references to top-level names become `__env__.name`
//   - references to members of the host library become `__library__.name`
//   - references to members of the custom window become `__window__.name`
//   - `window`, `globalThis` and `self` become `__window__`
//   - top-level declarations become assignments onto the environment
//   - every function and loop body starts with `__watchdog__.check();`, and
//     entry points (draw, input handlers) with `__watchdog__.reset();`
//   - function values keep their authored source text for `toString`
//
// The output is produced by applying edits (insertions and replacements of
// exact token ranges) to the original text, so everything the rewrite does not
// touch, including comments and formatting, is preserved byte for byte.
//
// The identifier names are configurable, see [Names].
package rewrite
