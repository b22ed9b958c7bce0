/*
Copyright The Kubeship Contributors

Licensed under the Apache License, Version 2.0 (the "License");
you may not use this file except in compliance with the License.
You may obtain a copy of the License at

    http://www.apache.org/licenses/LICENSE-2.0

Unless required by applicable law or agreed to in writing, software
distributed under the License is distributed on an "AS IS" BASIS,
WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
See the License for the specific language governing permissions and
limitations under the License.

SPDX-License-Identifier: Apache-2.0
*/

package rollout

import "errors"

var (
	// ErrAmbiguousTarget is raised when more than one replica set is
	// running the version being rolled out
	ErrAmbiguousTarget = errors.New("more than one replica set is running the destination version")

	// ErrDuplicateSourceVersion is raised when two replica sets with
	// replicas claim the same version number
	ErrDuplicateSourceVersion = errors.New("more than one replica set is running the same version")

	// ErrTimeout is raised when the pods of a replica set did not become
	// ready in time
	ErrTimeout = errors.New("timeout waiting for the pods to be ready")

	// ErrAlreadyStarted is raised when a rollout is started twice
	ErrAlreadyStarted = errors.New("rollout already started")

	// ErrMissingReference is raised when a rollout is started without a
	// cluster client, a deployment or a version
	ErrMissingReference = errors.New("rollout needs a client, a deployment and a version")

	errConvergerClosed = errors.New("converger closed")
)
