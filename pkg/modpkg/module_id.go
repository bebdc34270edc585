// SPDX-License-Identifier: MPL-2.0

package modpkg

import (
	"errors"
	"fmt"
	"regexp"
)

var (
	// ErrInvalidModuleID is wrapped by InvalidModuleIDError.
	ErrInvalidModuleID = errors.New("invalid module id")

	// moduleIDPattern matches dot-separated alphanumeric segments that each
	// start with a letter, e.g. "io.example.billing".
	moduleIDPattern = regexp.MustCompile(`^[a-zA-Z][a-zA-Z0-9]*(\.[a-zA-Z][a-zA-Z0-9]*)*$`)
)

type (
	// ModuleID names a module independently of where its package lives.
	ModuleID string

	// InvalidModuleIDError reports a ModuleID that does not match the
	// reverse-DNS format.
	InvalidModuleIDError struct {
		Value ModuleID
	}
)

func (id ModuleID) String() string { return string(id) }

// Validate checks the reverse-DNS format.
func (id ModuleID) Validate() error {
	if id == "" || len(id) > 128 || !moduleIDPattern.MatchString(string(id)) {
		return &InvalidModuleIDError{Value: id}
	}
	return nil
}

func (e *InvalidModuleIDError) Error() string {
	return fmt.Sprintf("invalid module id %q: use dot-separated segments that start with a letter (e.g. io.example.billing)", string(e.Value))
}

func (e *InvalidModuleIDError) Unwrap() error { return ErrInvalidModuleID }
