// SPDX-License-Identifier: MPL-2.0

package lifecycle

// Option configures a Machine.
type Option func(*Machine)

// WithErrorBuffer sets the buffer size of the asynchronous error channel.
// The default is 1; errors sent while the buffer is full are dropped.
func WithErrorBuffer(size int) Option {
	return func(m *Machine) {
		m.errCh = make(chan error, size)
	}
}

// WithName sets the component name used in transition errors.
func WithName(name string) Option {
	return func(m *Machine) {
		m.name = name
	}
}
