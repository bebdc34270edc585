// SPDX-License-Identifier: MPL-2.0

package deploy

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/invowk/modwatch/pkg/modpkg"
)

const (
	// TriggerCopy deploys on modified: a copy yields created then modified
	// and only the final content matters.
	TriggerCopy Trigger = "copy"
	// TriggerMove deploys on created: a move yields created only.
	TriggerMove Trigger = "move"
)

// ErrInvalidTrigger is wrapped by InvalidTriggerError.
var ErrInvalidTrigger = errors.New("invalid trigger")

type (
	// Trigger selects the callback that deploys a package.
	Trigger string

	// InvalidTriggerError reports an unknown Trigger value.
	InvalidTriggerError struct {
		Value Trigger
	}

	// Parser builds a descriptor from a package file and validates it.
	Parser interface {
		Parse(ctx context.Context, path string) (*modpkg.Descriptor, error)
	}

	// Host deploys descriptors. Deploy must clean up after itself when it fails.
	Host interface {
		Deploy(ctx context.Context, desc *modpkg.Descriptor) (Deployment, error)
	}

	// Deployment is a live module inside the host.
	Deployment interface {
		ID() string
		Undeploy(ctx context.Context) error
	}

	// Reloader is told after every successful deployment change.
	Reloader interface {
		Reload(ctx context.Context) error
	}

	// Entry describes the deployment that currently owns a package path.
	Entry struct {
		Path       string
		Deployment Deployment
		Module     string
		DeployedAt time.Time
	}
)

func (t Trigger) String() string { return string(t) }

// Validate accepts TriggerCopy and TriggerMove.
func (t Trigger) Validate() error {
	switch t {
	case TriggerCopy, TriggerMove:
		return nil
	default:
		return &InvalidTriggerError{Value: t}
	}
}

func (e *InvalidTriggerError) Error() string {
	return fmt.Sprintf("invalid trigger %q (valid: copy, move)", string(e.Value))
}

func (e *InvalidTriggerError) Unwrap() error { return ErrInvalidTrigger }
