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
	"sync"
	"time"

	"sigs.k8s.io/controller-runtime/pkg/client"

	"github.com/kubeship/kubeship/internal/configuration"
)

// The type of functions returning a moment in time
type timeFunc func() time.Time

// Manager paces the steps of every rollout running in the process. It is
// safe to use concurrently
type Manager struct {
	m sync.Mutex

	// The amount of time we wait between steps of
	// different deployments
	deploymentDelay time.Duration

	// The amount of time we wait between steps of
	// the same deployment
	stepDelay time.Duration

	// This is used to get the current time. Mainly
	// used by the unit tests to inject a fake time
	timeProvider timeFunc

	// The following data is relative to the last
	// step which was allowed
	lastReplicaSet string
	lastDeployment client.ObjectKey
	lastStep       time.Time
}

// Result tells a converger how much time it needs to wait before
// changing the replica counts of a replica set
type Result struct {
	// This is true when the step can start immediately
	RolloutAllowed bool

	// This is set with the amount of time the converger
	// needs to wait before asking again
	TimeToWait time.Duration
}

var (
	sharedManager     *Manager
	sharedManagerOnce sync.Once
)

// SharedManager is the pacing manager used by every rollout which was not
// configured with a different one. Its delays are read from the current
// configuration the first time it is used
func SharedManager() *Manager {
	sharedManagerOnce.Do(func() {
		sharedManager = New(
			configuration.Current.GetDeploymentRolloutDelay(),
			configuration.Current.GetStepRolloutDelay(),
		)
	})
	return sharedManager
}

// New creates a new pacing manager with the passed delays
func New(deploymentDelay, stepDelay time.Duration) *Manager {
	return &Manager{
		timeProvider:    time.Now,
		deploymentDelay: deploymentDelay,
		stepDelay:       stepDelay,
	}
}

// CoordinateRollout is called by a converger before scaling the passed
// replica set of a deployment
func (manager *Manager) CoordinateRollout(
	deployment client.ObjectKey,
	replicaSetName string,
) Result {
	manager.m.Lock()
	defer manager.m.Unlock()

	delay := manager.deploymentDelay
	if manager.lastDeployment == deployment {
		delay = manager.stepDelay
	}

	now := manager.timeProvider()
	elapsed := now.Sub(manager.lastStep)
	if !manager.lastStep.IsZero() && elapsed < delay {
		return Result{
			RolloutAllowed: false,
			TimeToWait:     delay - elapsed,
		}
	}

	manager.lastDeployment = deployment
	manager.lastReplicaSet = replicaSetName
	manager.lastStep = now
	return Result{RolloutAllowed: true}
}

// WaitForTurn blocks until the manager allows the step or until either the
// context is done or the interrupt channel is closed
func (manager *Manager) WaitForTurn(
	ctx context.Context,
	deployment client.ObjectKey,
	replicaSetName string,
	interrupt <-chan struct{},
) error {
	for {
		result := manager.CoordinateRollout(deployment, replicaSetName)
		if result.RolloutAllowed {
			return nil
		}

		timer := time.NewTimer(result.TimeToWait)
		select {
		case <-ctx.Done():
			timer.Stop()
			return ctx.Err()
		case <-interrupt:
			timer.Stop()
			return errConvergerClosed
		case <-timer.C:
		}
	}
}
