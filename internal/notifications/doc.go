// Package notifications sends optional ntfy push notifications for pipeline
// milestones. With no topic configured every call is a cheap no-op.
package notifications
