// Package overlay implements the dynamic overlay content registry.
// Producers register content with a Registry and receive a Handler, which
// connects the content to an external positioning runtime (the Bridge) and
// coalesces content updates until the producer releases it. A container
// renderer subscribes to the Registry and re-reads the handler list whenever
// it is told something changed.
package overlay
