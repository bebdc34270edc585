// SPDX-License-Identifier: MPL-2.0

package cueutil

// DefaultMaxFileSize caps CUE documents at 1 MiB.
const DefaultMaxFileSize int64 = 1 << 20

type (
	options struct {
		filename    string
		maxFileSize int64
		concrete    bool
	}

	// Option configures ParseAndDecode.
	Option func(*options)
)

func defaultOptions() options {
	return options{
		maxFileSize: DefaultMaxFileSize,
		concrete:    true,
	}
}

// WithFilename names the document in positions and error messages.
func WithFilename(name string) Option {
	return func(o *options) { o.filename = name }
}

// WithMaxFileSize overrides DefaultMaxFileSize.
func WithMaxFileSize(limit int64) Option {
	return func(o *options) {
		if limit > 0 {
			o.maxFileSize = limit
		}
	}
}

// WithConcrete controls whether every field must resolve to a concrete
// value. It is on by default; partial documents such as config files that
// rely on Go-side defaults turn it off.
func WithConcrete(concrete bool) Option {
	return func(o *options) { o.concrete = concrete }
}
