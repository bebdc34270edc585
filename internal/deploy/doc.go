// SPDX-License-Identifier: MPL-2.0

// Package deploy turns watch callbacks for module package files into
// deployments on a Host.
//
// The Coordinator keeps one active Deployment per package path. A new
// successful deployment for a path atomically replaces the registry entry;
// the superseded deployment is undeployed in the background and a failure
// there is only logged. Deleting the path undeploys whatever is active and
// that outcome is the callback's outcome.
//
// Copying a package into the watched tree produces created then modified;
// moving it in produces created only. Trigger selects which callback
// deploys: TriggerCopy deploys on modified, TriggerMove on created.
package deploy
