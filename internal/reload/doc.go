// SPDX-License-Identifier: MPL-2.0

// Package reload signals the host application that the set of deployed
// modules changed. Reloaders compose: a Hook runs a shell script, Log only
// records the signal, and Coalesce collapses bursts into fewer reloads.
package reload
