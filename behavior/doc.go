// Package behavior lets live object instances pick up new method bodies.
//
// A [Proxy] is a stable, callable and constructible script function (the
// trampoline) that forwards to a swappable implementation. Instances built
// with `new` through the proxy get the proxy's own prototype object, its
// method table, as their prototype. [Proxy.Update] installs a new
// implementation and synchronises that table with the implementation's
// prototype, so existing instances observe added, modified and removed methods
// without being reconstructed.
//
// Field layouts produced by a changed constructor body are not migrated onto
// existing instances.
package behavior
