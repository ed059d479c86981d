// Package server hosts the Fiber HTTP service, request middleware chain, and
// the runtime view of the shell configuration shared by the interception
// layer. The router keeps requests passing through untouched until the
// lifecycle gate opens, then hands every non-diagnostics request to the
// strategy handler.
package server
