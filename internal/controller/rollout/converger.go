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

import (
	"context"

	appsv1 "k8s.io/api/apps/v1"
	"sigs.k8s.io/controller-runtime/pkg/client"

	apiv1 "github.com/kubeship/kubeship/api/v1"
)

// UpdatePhase is the phase of a single migration step
type UpdatePhase string

const (
	// UpdatePhaseRunning means the converger did not finish yet
	UpdatePhaseRunning UpdatePhase = "Running"

	// UpdatePhaseSucceeded means the source replica set was emptied and
	// the destination one reached its target
	UpdatePhaseSucceeded UpdatePhase = "Succeeded"

	// UpdatePhaseFailed means the converger gave up
	UpdatePhaseFailed UpdatePhase = "Failed"
)

// ConvergerStatus is the outcome of a migration step
type ConvergerStatus struct {
	Phase  UpdatePhase
	Reason string
}

// Converger moves the replicas of one source replica set to the
// destination one. Update runs the whole migration and returns when it
// finished, successfully or not. Close may be called concurrently with
// Update and makes it stop as soon as possible with a Failed status
type Converger interface {
	Update(ctx context.Context)
	Status() ConvergerStatus
	Close()
}

// StepSpec is the input of a migration step
type StepSpec struct {
	// Deployment being rolled out
	Deployment apiv1.Deployment

	// Source is the replica set to be emptied
	Source *appsv1.ReplicaSet

	// Target is the destination replica set. Its desired count is the
	// number of replicas it should have at the end of the step
	Target *appsv1.ReplicaSet

	Policy        apiv1.Policy
	LoadBalancers []apiv1.LoadBalancer
}

// ConvergerFactory creates the converger running a migration step
type ConvergerFactory func(cli client.Client, step StepSpec) Converger

// emptyConverger is the converger used when no migration step was
// started yet, or after the rollout was stopped
type emptyConverger struct{}

func (emptyConverger) Update(context.Context) {}

func (emptyConverger) Status() ConvergerStatus {
	return ConvergerStatus{Phase: UpdatePhaseSucceeded}
}

func (emptyConverger) Close() {}
