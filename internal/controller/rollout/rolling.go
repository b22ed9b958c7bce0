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
	"fmt"
	"sync"
	"time"

	"github.com/cloudnative-pg/machinery/pkg/log"
	appsv1 "k8s.io/api/apps/v1"
	"sigs.k8s.io/controller-runtime/pkg/client"

	"github.com/kubeship/kubeship/pkg/utils"
)

// RollingConverger moves replicas from the source replica set to the
// destination one in steps of at most MaxSurge replicas, waiting for the
// new pods to be ready before scaling the source down
type RollingConverger struct {
	cli    client.Client
	spec   StepSpec
	pacer  *Manager
	goal   int32
	source client.ObjectKey
	target client.ObjectKey

	m         sync.Mutex
	status    ConvergerStatus
	closed    chan struct{}
	closeOnce sync.Once
}

// NewRollingConvergerFactory creates a factory of rolling convergers
// paced by the passed manager. A nil manager disables the pacing
func NewRollingConvergerFactory(pacer *Manager) ConvergerFactory {
	return func(cli client.Client, step StepSpec) Converger {
		return NewRollingConverger(cli, step, pacer)
	}
}

// NewRollingConverger creates a new rolling converger for a migration step
func NewRollingConverger(cli client.Client, step StepSpec, pacer *Manager) *RollingConverger {
	step.Policy.SetDefaults()
	return &RollingConverger{
		cli:    cli,
		spec:   step,
		pacer:  pacer,
		goal:   utils.GetDesiredReplicas(step.Target),
		source: client.ObjectKeyFromObject(step.Source),
		target: client.ObjectKeyFromObject(step.Target),
		status: ConvergerStatus{Phase: UpdatePhaseRunning},
		closed: make(chan struct{}),
	}
}

// Status returns the status of the migration step
func (r *RollingConverger) Status() ConvergerStatus {
	r.m.Lock()
	defer r.m.Unlock()
	return r.status
}

// Close interrupts the migration step
func (r *RollingConverger) Close() {
	r.closeOnce.Do(func() {
		close(r.closed)
	})
}

func (r *RollingConverger) isClosed() bool {
	select {
	case <-r.closed:
		return true
	default:
		return false
	}
}

func (r *RollingConverger) finish(phase UpdatePhase, reason string) {
	r.m.Lock()
	defer r.m.Unlock()
	if r.status.Phase != UpdatePhaseRunning {
		return
	}
	r.status = ConvergerStatus{Phase: phase, Reason: reason}
}

// Update runs the migration step until the source replica set is empty
// and the destination one reached its desired count
func (r *RollingConverger) Update(ctx context.Context) {
	contextLogger := log.FromContext(ctx).WithValues(
		"source", r.source.Name,
		"target", r.target.Name,
		"goal", r.goal,
	)
	ctx = log.IntoContext(ctx, contextLogger)

	if err := ensureLoadBalancers(ctx, r.cli, r.spec.Deployment, r.spec.LoadBalancers); err != nil {
		r.fail(ctx, err)
		return
	}

	for iteration := 0; ; iteration++ {
		if r.isClosed() {
			r.fail(ctx, errConvergerClosed)
			return
		}

		if err := r.pace(ctx, iteration); err != nil {
			r.fail(ctx, err)
			return
		}

		done, err := r.runStep(ctx)
		if err != nil {
			r.fail(ctx, err)
			return
		}
		if done {
			contextLogger.Info("Migration step completed", "steps", iteration)
			recordConvergerStep(r.spec.Deployment.Namespace, UpdatePhaseSucceeded)
			r.finish(UpdatePhaseSucceeded, "")
			return
		}
	}
}

func (r *RollingConverger) fail(ctx context.Context, err error) {
	log.FromContext(ctx).Info("Migration step failed", "reason", err.Error())
	recordConvergerStep(r.spec.Deployment.Namespace, UpdatePhaseFailed)
	r.finish(UpdatePhaseFailed, err.Error())
}

// pace waits for the pacing manager and for the delay between two steps
func (r *RollingConverger) pace(ctx context.Context, iteration int) error {
	if iteration > 0 && r.spec.Policy.RolloutDelay.Duration > 0 {
		if err := r.sleep(ctx, r.spec.Policy.RolloutDelay.Duration); err != nil {
			return err
		}
	}

	if r.pacer == nil {
		return nil
	}

	deploymentKey := client.ObjectKey{
		Namespace: r.spec.Deployment.Namespace,
		Name:      r.spec.Deployment.Name,
	}
	return r.pacer.WaitForTurn(ctx, deploymentKey, r.target.Name, r.closed)
}

func (r *RollingConverger) sleep(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-r.closed:
		return errConvergerClosed
	case <-timer.C:
		return nil
	}
}

// runStep runs one iteration of the migration, returning true when there
// is nothing left to do
func (r *RollingConverger) runStep(ctx context.Context) (bool, error) {
	contextLogger := log.FromContext(ctx)

	var source, target appsv1.ReplicaSet
	if err := r.cli.Get(ctx, r.source, &source); err != nil {
		return false, fmt.Errorf("while getting source replica set: %w", err)
	}
	if err := r.cli.Get(ctx, r.target, &target); err != nil {
		return false, fmt.Errorf("while getting target replica set: %w", err)
	}

	current := utils.GetDesiredReplicas(&target)
	remaining := utils.GetDesiredReplicas(&source)
	if current >= r.goal && remaining == 0 {
		return true, nil
	}

	ready, _, err := countReplicaSetPods(ctx, r.cli, r.target)
	if err != nil {
		return false, fmt.Errorf("while checking pods of replica set %s: %w", r.target.Name, err)
	}

	next := current
	if current < r.goal {
		next = min(r.goal, current+r.spec.Policy.MaxSurge)
		if _, err := scaleReplicaSet(ctx, r.cli, r.target, next); err != nil {
			return false, err
		}
	}

	// The source plus the ready part of the target never go below
	// goal-MaxUnavailable
	floor := r.goal - r.spec.Policy.MaxUnavailable
	available := remaining + min(int32(ready), current)
	if early := min(remaining, available-floor); early > 0 {
		if _, err := scaleReplicaSet(ctx, r.cli, r.source, remaining-early); err != nil {
			return false, err
		}
		remaining -= early
	}

	if err := r.waitTargetReady(ctx, next); err != nil {
		return false, err
	}

	// With next ready pods on the target, the source only has to cover
	// the rest of the goal
	remaining = min(remaining, max(0, r.goal-next))
	if _, err := scaleReplicaSet(ctx, r.cli, r.source, remaining); err != nil {
		return false, err
	}

	contextLogger.Debug("Migration step progressed",
		"targetReplicas", next,
		"sourceReplicas", remaining)
	recordConvergerStep(r.spec.Deployment.Namespace, UpdatePhaseRunning)
	return false, nil
}

// waitTargetReady waits until the destination replica set has at least
// the passed number of ready pods
func (r *RollingConverger) waitTargetReady(ctx context.Context, replicas int32) error {
	deadline := time.Now().Add(r.spec.Policy.StepTimeout.Duration)
	for {
		ready, _, err := countReplicaSetPods(ctx, r.cli, r.target)
		if err != nil {
			return fmt.Errorf("while checking pods of replica set %s: %w", r.target.Name, err)
		}
		if ready >= int(replicas) {
			return nil
		}

		if !time.Now().Before(deadline) {
			return fmt.Errorf("%w: replica set %s has %d/%d ready pods after %s",
				ErrTimeout, r.target.Name, ready, replicas, r.spec.Policy.StepTimeout.Duration)
		}

		if err := r.sleep(ctx, r.spec.Policy.PollInterval.Duration); err != nil {
			return err
		}
	}
}
