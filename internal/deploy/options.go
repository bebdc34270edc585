// SPDX-License-Identifier: MPL-2.0

package deploy

import (
	"github.com/charmbracelet/log"
)

// Option configures a Coordinator.
type Option func(*Coordinator)

// WithTrigger selects the deploying callback. TriggerCopy is the default.
func WithTrigger(t Trigger) Option {
	return func(c *Coordinator) { c.trigger = t }
}

// WithExtension sets the package file extension, ".modpkg" by default.
func WithExtension(ext string) Option {
	return func(c *Coordinator) { c.extension = ext }
}

// WithReloader sets the collaborator notified after deployment changes.
func WithReloader(r Reloader) Option {
	return func(c *Coordinator) { c.reloader = r }
}

// WithLogger sets the coordinator logger.
func WithLogger(logger *log.Logger) Option {
	return func(c *Coordinator) { c.logger = logger }
}
