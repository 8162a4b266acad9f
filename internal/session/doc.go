// ABOUTME: Package doc for session
// ABOUTME: Describes active-conversation lifecycle around agent switching

// Package session tracks which agent is active and owns the lifecycle of
// its conversation: load on select, flush on switch and suspend, clear,
// delete, and restore of the last active agent across restarts.
package session
