// Package shutdown coordinates graceful termination of long-running
// commands such as the local gateway.
//
// Hooks registered with OnShutdown run in reverse order once SIGINT or
// SIGTERM arrives or the waiting context ends, sharing a single timeout.
package shutdown
