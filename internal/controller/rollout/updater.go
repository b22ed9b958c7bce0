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
	"errors"
	"fmt"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/cloudnative-pg/machinery/pkg/log"
	appsv1 "k8s.io/api/apps/v1"
	"k8s.io/utils/ptr"
	"sigs.k8s.io/controller-runtime/pkg/client"

	apiv1 "github.com/kubeship/kubeship/api/v1"
	"github.com/kubeship/kubeship/internal/configuration"
	"github.com/kubeship/kubeship/pkg/specs"
	"github.com/kubeship/kubeship/pkg/utils"
	"github.com/kubeship/kubeship/pkg/workerpool"
)

var updaterLog = log.WithName("rollout")

// Updater rolls a deployment to a new version. The migration runs in the
// background on a worker pool, moving the replicas of the older replica
// sets to the replica set of the new version, one replica set at a time
// starting from the most recent one.
//
// Every method is safe to use concurrently. The locks are always taken in
// this order: convergerLock, the status lock, the converger lock.
type Updater struct {
	cli           client.Client
	deployment    *apiv1.Deployment
	version       *apiv1.Version
	replicas      *int32
	policy        apiv1.Policy
	loadBalancers []apiv1.LoadBalancer
	extraEnvs     []apiv1.EnvDraft

	pool             *workerpool.Pool
	pacer            *Manager
	convergerFactory ConvergerFactory

	readinessPollInterval      time.Duration
	readinessTimeoutPerReplica time.Duration
	checkStatusTimeout         time.Duration

	convergerLock sync.Mutex
	converger     Converger
	target        *appsv1.ReplicaSet
	stopped       bool

	status *statusTracker
	handle atomic.Pointer[workerpool.Handle]
}

// Option configures an Updater
type Option func(*Updater)

// WithReplicas makes the rollout end with a fixed number of replicas
// instead of mirroring the replicas of the older versions
func WithReplicas(replicas int32) Option {
	return func(u *Updater) {
		u.replicas = ptr.To(replicas)
	}
}

// WithPolicy sets the policy of every migration step
func WithPolicy(policy apiv1.Policy) Option {
	return func(u *Updater) {
		u.policy = policy
	}
}

// WithLoadBalancers sets the services exposing the deployment
func WithLoadBalancers(loadBalancers []apiv1.LoadBalancer) Option {
	return func(u *Updater) {
		u.loadBalancers = loadBalancers
	}
}

// WithExtraEnvs adds environment variables to every container of the
// new version
func WithExtraEnvs(envs []apiv1.EnvDraft) Option {
	return func(u *Updater) {
		u.extraEnvs = envs
	}
}

// WithPool runs the rollout on the passed pool instead of the shared one
func WithPool(pool *workerpool.Pool) Option {
	return func(u *Updater) {
		u.pool = pool
	}
}

// WithPacer paces the migration steps with the passed manager instead of
// the shared one
func WithPacer(pacer *Manager) Option {
	return func(u *Updater) {
		u.pacer = pacer
	}
}

// WithConvergerFactory replaces the rolling converger
func WithConvergerFactory(factory ConvergerFactory) Option {
	return func(u *Updater) {
		u.convergerFactory = factory
	}
}

// WithReadinessPolling changes how the pods of the new version are
// waited for at the end of the rollout
func WithReadinessPolling(pollInterval, timeoutPerReplica time.Duration) Option {
	return func(u *Updater) {
		u.readinessPollInterval = pollInterval
		u.readinessTimeoutPerReplica = timeoutPerReplica
	}
}

// WithCheckStatusTimeout changes how long CheckStatus waits for the pods
func WithCheckStatusTimeout(timeout time.Duration) Option {
	return func(u *Updater) {
		u.checkStatusTimeout = timeout
	}
}

// NewUpdater creates the updater rolling the passed deployment to the
// passed version. Unless WithReplicas is used, the new version will run
// as many replicas as the older ones
func NewUpdater(
	cli client.Client,
	deployment *apiv1.Deployment,
	version *apiv1.Version,
	opts ...Option,
) *Updater {
	u := &Updater{
		cli:                        cli,
		deployment:                 deployment,
		version:                    version,
		readinessPollInterval:      configuration.Current.GetReadinessPollInterval(),
		readinessTimeoutPerReplica: configuration.Current.GetReadinessTimeoutPerReplica(),
		checkStatusTimeout:         configuration.Current.GetCheckStatusTimeout(),
		converger:                  emptyConverger{},
		status:                     newStatusTracker(),
	}

	for _, opt := range opts {
		opt(u)
	}

	if u.pool == nil {
		u.pool = workerpool.Shared()
	}
	if u.convergerFactory == nil {
		if u.pacer == nil {
			u.pacer = SharedManager()
		}
		u.convergerFactory = NewRollingConvergerFactory(u.pacer)
	}

	return u
}

// NewUpdaterFromRequest creates the updater executing a rollout request
func NewUpdaterFromRequest(cli client.Client, request *apiv1.RolloutRequest, opts ...Option) *Updater {
	requestOpts := []Option{
		WithPolicy(request.Policy),
		WithLoadBalancers(request.LoadBalancers),
		WithExtraEnvs(request.ExtraEnvs),
	}
	if !request.IsKeepQuantity() {
		requestOpts = append(requestOpts, WithReplicas(*request.Replicas))
	}
	return NewUpdater(cli, &request.Deployment, &request.Version, append(requestOpts, opts...)...)
}

func (u *Updater) isKeepQuantity() bool {
	return u.replicas == nil
}

func (u *Updater) namespace() string {
	if u.deployment == nil {
		return ""
	}
	return u.deployment.Namespace
}

// Start schedules the rollout on the worker pool. A rollout can only be
// started once: starting it again makes it fail
func (u *Updater) Start(ctx context.Context) error {
	contextLogger := log.FromContext(ctx)

	if u.cli == nil || u.deployment == nil || u.version == nil {
		contextLogger.Info("Cannot start the rollout", "reason", ErrMissingReference.Error())
		return ErrMissingReference
	}

	contextLogger = contextLogger.WithValues(
		"namespace", u.deployment.Namespace,
		"deployment", u.deployment.Name,
		"deploymentId", u.deployment.ID,
		"version", u.version.Version,
	)

	if !u.status.start() {
		contextLogger.Info("Rollout was already started, marking it as failed")
		u.failedPhase(ErrAlreadyStarted.Error())
		return ErrAlreadyStarted
	}
	recordRolloutStarted(u.deployment.Namespace)

	handle, err := u.pool.Submit(
		log.IntoContext(ctx, contextLogger),
		fmt.Sprintf("rollout-%s-v%d", u.deployment.Name, u.version.Version),
		u.run,
	)
	if err != nil {
		contextLogger.Error(err, "Cannot schedule the rollout")
		u.failedPhase(err.Error())
		return err
	}
	u.handle.Store(handle)

	contextLogger.Info("Rollout started")
	return nil
}

// Stop interrupts the rollout. The changes already applied to the cluster
// are not reverted
func (u *Updater) Stop() {
	u.convergerLock.Lock()
	u.stopped = true
	u.converger.Close()
	u.converger = emptyConverger{}
	stopped := u.status.stop()
	u.convergerLock.Unlock()

	if handle := u.handle.Load(); handle != nil {
		handle.Cancel()
	}

	if stopped {
		updaterLog.Info("Rollout stopped", "namespace", u.namespace())
	}
}

// Close interrupts the running migration step without cancelling the
// background task, which will fail as soon as it notices it
func (u *Updater) Close() {
	u.convergerLock.Lock()
	defer u.convergerLock.Unlock()
	u.converger.Close()
}

// Status returns a copy of the status of the rollout
func (u *Updater) Status() Status {
	handle := u.handle.Load()
	status, healed := u.status.snapshot(func() (string, bool) {
		if !handle.IsDone() {
			return "", false
		}
		reason := "background task terminated without completing the rollout"
		if value := handle.Panic(); value != nil {
			reason = fmt.Sprintf("%s: %v", reason, value)
		}
		return reason, true
	})
	if healed {
		updaterLog.Info("Rollout marked as failed",
			"namespace", u.namespace(),
			"reason", status.Reason)
		recordRolloutFinished(u.namespace(), PhaseFailed)
	}
	return status
}

// CheckStatus waits for every pod of the new version to be ready and,
// when they are, marks the rollout as succeeded. A failure while waiting
// is only logged and never changes the status
func (u *Updater) CheckStatus(ctx context.Context) bool {
	contextLogger := log.FromContext(ctx).WithValues("namespace", u.namespace())

	u.convergerLock.Lock()
	target := u.target
	u.convergerLock.Unlock()

	if u.cli == nil || target == nil {
		contextLogger.Debug("No replica set to check")
		return false
	}
	expected := utils.GetDesiredReplicas(target)
	if expected <= 0 {
		contextLogger.Debug("Replica set has no desired replicas", "replicaSet", target.Name)
		return false
	}

	err := waitReplicaSetReady(
		ctx,
		u.cli,
		client.ObjectKeyFromObject(target),
		expected,
		u.readinessPollInterval,
		u.checkStatusTimeout,
	)
	if err != nil {
		contextLogger.Error(err, "Replica set pods are not ready", "replicaSet", target.Name)
		return false
	}

	u.succeededPhase()
	return true
}

func (u *Updater) succeededPhase() {
	if u.status.succeed() {
		recordRolloutFinished(u.namespace(), PhaseSucceeded)
	}
}

func (u *Updater) failedPhase(reason string) {
	if u.status.fail(reason) {
		recordRolloutFinished(u.namespace(), PhaseFailed)
	}
}

// setConverger makes the passed converger reachable by Stop and Close.
// A converger installed after Stop is closed straight away
func (u *Updater) setConverger(converger Converger) {
	u.convergerLock.Lock()
	defer u.convergerLock.Unlock()
	if u.stopped {
		converger.Close()
		return
	}
	u.converger = converger
}

func (u *Updater) setTarget(target *appsv1.ReplicaSet) {
	u.convergerLock.Lock()
	defer u.convergerLock.Unlock()
	u.target = target.DeepCopy()
}

// run is the background task of the rollout
func (u *Updater) run(ctx context.Context) {
	contextLogger := log.FromContext(ctx)

	ActiveUpdaters.Inc()
	defer ActiveUpdaters.Dec()

	if err := u.migrate(ctx); err != nil {
		contextLogger.Info("Rollout failed", "reason", err.Error())
		u.failedPhase(err.Error())
		return
	}

	contextLogger.Info("Rollout succeeded")
	u.succeededPhase()
}

// migrate moves every replica of the older versions to the new one and
// waits for the new pods to be ready
func (u *Updater) migrate(ctx context.Context) error {
	contextLogger := log.FromContext(ctx)

	target, err := u.acquireTarget(ctx)
	if err != nil {
		return err
	}
	targetKey := client.ObjectKeyFromObject(target)

	for {
		if err := ctx.Err(); err != nil {
			return fmt.Errorf("rollout interrupted: %w", err)
		}

		replicaSets, err := listReplicaSets(ctx, u.cli, u.deployment.Namespace, specs.DeploymentSelector(*u.deployment))
		if err != nil {
			return err
		}
		source, err := selectSourceReplicaSet(replicaSets, u.version.Version)
		if err != nil {
			return err
		}
		if source == nil {
			break
		}

		var live appsv1.ReplicaSet
		if err := u.cli.Get(ctx, targetKey, &live); err != nil {
			return fmt.Errorf("while getting replica set %s: %w", targetKey.Name, err)
		}
		current := utils.GetDesiredReplicas(&live)
		sourceReplicas := utils.GetDesiredReplicas(source)

		var next int32
		switch {
		case u.isKeepQuantity():
			next = current + sourceReplicas
		case current >= *u.replicas:
			contextLogger.Info("New version reached its replicas, removing the older versions",
				"replicas", current)
			return u.deleteOtherReplicaSets(ctx, replicaSets)
		default:
			next = min(*u.replicas, current+sourceReplicas)
		}

		live.Spec.Replicas = ptr.To(next)
		u.setTarget(&live)

		contextLogger.Info("Migrating replica set",
			"source", source.Name,
			"sourceReplicas", sourceReplicas,
			"target", live.Name,
			"targetReplicas", next)

		converger := u.convergerFactory(u.cli, StepSpec{
			Deployment:    *u.deployment,
			Source:        source.DeepCopy(),
			Target:        live.DeepCopy(),
			Policy:        u.policy,
			LoadBalancers: u.loadBalancers,
		})
		u.setConverger(converger)
		converger.Update(ctx)

		if status := converger.Status(); status.Phase == UpdatePhaseFailed {
			return errors.New(status.Reason)
		}
	}

	var live appsv1.ReplicaSet
	if err := u.cli.Get(ctx, targetKey, &live); err != nil {
		return fmt.Errorf("while getting replica set %s: %w", targetKey.Name, err)
	}
	expected := utils.GetDesiredReplicas(&live)
	if !u.isKeepQuantity() && expected < *u.replicas {
		scaled, err := scaleReplicaSet(ctx, u.cli, targetKey, *u.replicas)
		if err != nil {
			return err
		}
		live = *scaled
		expected = *u.replicas
	}
	u.setTarget(&live)

	timeout := readinessTimeout(expected, u.readinessTimeoutPerReplica)
	contextLogger.Info("Waiting for the pods of the new version",
		"replicaSet", live.Name,
		"replicas", expected,
		"timeout", timeout)
	return waitReplicaSetReady(ctx, u.cli, targetKey, expected, u.readinessPollInterval, timeout)
}

// acquireTarget finds or creates the replica set of the new version
func (u *Updater) acquireTarget(ctx context.Context) (*appsv1.ReplicaSet, error) {
	contextLogger := log.FromContext(ctx)

	replicaSets, err := listReplicaSets(
		ctx,
		u.cli,
		u.deployment.Namespace,
		specs.VersionSelector(*u.deployment, *u.version),
	)
	if err != nil {
		return nil, err
	}

	switch len(replicaSets) {
	case 0:
		if err := ensurePullSecret(ctx, u.cli, *u.deployment, *u.version); err != nil {
			return nil, err
		}

		target, err := specs.ReplicaSet(*u.deployment, *u.version, u.loadBalancers, u.extraEnvs, 0)
		if err != nil {
			return nil, err
		}
		if err := u.cli.Create(ctx, target); err != nil {
			return nil, fmt.Errorf("while creating replica set %s: %w", target.Name, err)
		}
		contextLogger.Info("Created replica set for the new version", "replicaSet", target.Name)
		u.setTarget(target)
		return target, nil

	case 1:
		target := replicaSets[0].DeepCopy()
		target.Spec.Replicas = ptr.To[int32](0)
		contextLogger.Info("Adopted existing replica set for the new version", "replicaSet", target.Name)
		if expected, err := specs.ReplicaSet(*u.deployment, *u.version, u.loadBalancers, u.extraEnvs, 0); err == nil &&
			isTemplateOutdated(target, expected) {
			contextLogger.Warning("Adopted replica set was built from a different pod template, "+
				"its pods will not be updated",
				"replicaSet", target.Name,
				"currentHash", target.Annotations[utils.SpecHashAnnotationName],
				"expectedHash", expected.Annotations[utils.SpecHashAnnotationName])
		}
		u.setTarget(target)
		return target, nil

	default:
		names := make([]string, 0, len(replicaSets))
		for idx := range replicaSets {
			names = append(names, replicaSets[idx].Name)
		}
		return nil, fmt.Errorf("%w: %s", ErrAmbiguousTarget, strings.Join(names, ", "))
	}
}

// deleteOtherReplicaSets deletes every replica set of the deployment not
// running the new version, together with their pods
func (u *Updater) deleteOtherReplicaSets(ctx context.Context, replicaSets []appsv1.ReplicaSet) error {
	for idx := range replicaSets {
		version, err := utils.ReplicaSetVersion(&replicaSets[idx])
		if err != nil {
			return err
		}
		if version == u.version.Version {
			continue
		}
		if err := deleteReplicaSet(ctx, u.cli, &replicaSets[idx]); err != nil {
			return err
		}
	}
	return nil
}
