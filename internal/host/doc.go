// SPDX-License-Identifier: MPL-2.0

// Package host runs module deployments on the local filesystem. Each
// deployment is an unpacked copy of the package under the deploy directory,
// so a replaced package never disturbs the files of the version still live.
package host
