// Package bridge provides overlay.Bridge implementations: DBus talks to a
// positioning runtime exported on the session or system bus, and Memory keeps
// everything in-process for headless use and tests.
package bridge
