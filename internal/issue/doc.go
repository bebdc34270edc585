// SPDX-License-Identifier: MPL-2.0

// Package issue turns failures into guidance for the operator. An
// ActionableError says what was being done, on which resource, and what to
// try next; an Issue is a longer Markdown explanation rendered with glamour
// for the failures operators hit most often.
package issue
