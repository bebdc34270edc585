// SPDX-License-Identifier: MPL-2.0

// Package admin serves the operator HTTP surface of a running modwatch:
// liveness, Prometheus metrics and the list of live deployments.
package admin
