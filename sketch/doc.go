// Package sketch is a Processing-style drawing library for scripts.
//
// Drawing calls are recorded into a display list of [Op] values rather than
// rasterised, so a host can render them however it likes (or test them).
// background clears the list, as it paints over everything.
//
// A [Sketch] is a host library: its members are visible to scripts without
// qualification, and BeforeMain/AfterMain bracket each run. Style setters
// (fill, stroke, textSize, ...) are tracked by a visualstate.Snapshotter, so
// removing a style statement from a script restores the default, while style
// changes made by event handlers between edits survive them. Event handlers
// (draw, mousePressed, ...) are slots that scripts assign functions to, and
// are reset before every run.
package sketch
