// Package events defines the task notification event and the publisher
// interface through which workers push progress and terminal updates to the
// owning client's room without knowing how delivery happens.
package events
