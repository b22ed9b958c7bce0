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

	"github.com/prometheus/client_golang/prometheus/testutil"
	appsv1 "k8s.io/api/apps/v1"
	corev1 "k8s.io/api/core/v1"
	apierrs "k8s.io/apimachinery/pkg/api/errors"
	metav1 "k8s.io/apimachinery/pkg/apis/meta/v1"
	"k8s.io/utils/ptr"
	"sigs.k8s.io/controller-runtime/pkg/client"

	apiv1 "github.com/kubeship/kubeship/api/v1"
	"github.com/kubeship/kubeship/pkg/utils"
	"github.com/kubeship/kubeship/pkg/workerpool"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
)

// recordingFactory keeps track of the migration steps requested by an
// updater
type recordingFactory struct {
	m     sync.Mutex
	steps []StepSpec
	inner ConvergerFactory
}

func (f *recordingFactory) create(cli client.Client, step StepSpec) Converger {
	f.m.Lock()
	f.steps = append(f.steps, step)
	f.m.Unlock()
	return f.inner(cli, step)
}

func (f *recordingFactory) getSteps() []StepSpec {
	f.m.Lock()
	defer f.m.Unlock()
	return append([]StepSpec(nil), f.steps...)
}

// stubConverger reports a fixed outcome. When scale is set, it moves the
// replicas before returning, without waiting for the pods. A blocked
// converger returns once closed, or once hold is closed too when set
type stubConverger struct {
	cli    client.Client
	step   StepSpec
	scale  bool
	block  bool
	panics bool
	reason string
	hold   chan struct{}

	m         sync.Mutex
	status    ConvergerStatus
	closed    chan struct{}
	closeOnce sync.Once
}

func stubFactory(configure func(*stubConverger)) ConvergerFactory {
	return func(cli client.Client, step StepSpec) Converger {
		converger := &stubConverger{
			cli:    cli,
			step:   step,
			status: ConvergerStatus{Phase: UpdatePhaseRunning},
			closed: make(chan struct{}),
		}
		configure(converger)
		return converger
	}
}

func (s *stubConverger) Update(ctx context.Context) {
	if s.panics {
		panic("converger exploded")
	}

	if s.scale {
		_, err := scaleReplicaSet(ctx, s.cli, client.ObjectKeyFromObject(s.step.Target),
			utils.GetDesiredReplicas(s.step.Target))
		Expect(err).ToNot(HaveOccurred())
		_, err = scaleReplicaSet(ctx, s.cli, client.ObjectKeyFromObject(s.step.Source), 0)
		Expect(err).ToNot(HaveOccurred())
	}

	result := ConvergerStatus{Phase: UpdatePhaseSucceeded}
	switch {
	case s.block:
		<-s.closed
		if s.hold != nil {
			<-s.hold
		}
		result = ConvergerStatus{Phase: UpdatePhaseFailed, Reason: errConvergerClosed.Error()}
	case s.reason != "":
		result = ConvergerStatus{Phase: UpdatePhaseFailed, Reason: s.reason}
	}

	s.m.Lock()
	defer s.m.Unlock()
	s.status = result
}

func (s *stubConverger) Status() ConvergerStatus {
	s.m.Lock()
	defer s.m.Unlock()
	return s.status
}

func (s *stubConverger) Close() {
	s.closeOnce.Do(func() { close(s.closed) })
}

// waitForConverger waits until the updater runs a migration step with
// the passed converger type
func waitForConverger[T Converger](updater *Updater) {
	GinkgoHelper()
	Eventually(func() bool {
		updater.convergerLock.Lock()
		defer updater.convergerLock.Unlock()
		_, ok := updater.converger.(T)
		return ok
	}).Should(BeTrue())
}

var _ = Describe("Updater", func() {
	var (
		cli     client.Client
		cluster *fakeCluster
		pool    *workerpool.Pool
		factory *recordingFactory
	)

	fastPolicy := apiv1.Policy{
		MaxSurge:     1,
		StepTimeout:  metav1.Duration{Duration: 5 * time.Second},
		PollInterval: metav1.Duration{Duration: time.Millisecond},
	}

	newTestUpdater := func(version int, opts ...Option) *Updater {
		baseOpts := []Option{
			WithPool(pool),
			WithPolicy(fastPolicy),
			WithConvergerFactory(factory.create),
			WithReadinessPolling(time.Millisecond, 5*time.Second),
			WithCheckStatusTimeout(5 * time.Second),
		}
		return NewUpdater(cli, newDeployment(), newVersion(version), append(baseOpts, opts...)...)
	}

	eventuallyPhase := func(updater *Updater, phase Phase) {
		GinkgoHelper()
		Eventually(func() Phase {
			return updater.Status().Phase
		}).WithTimeout(10 * time.Second).Should(Equal(phase))
	}

	BeforeEach(func() {
		cli = newFakeClient()
		cluster = newFakeCluster(cli)
		pool = workerpool.New("rollout-" + CurrentSpecReport().LeafNodeText)
		DeferCleanup(func(ctx SpecContext) {
			Expect(pool.Shutdown(ctx)).To(Succeed())
		})
		factory = &recordingFactory{inner: NewRollingConvergerFactory(New(0, 0))}
	})

	Context("with a fixed number of replicas", func() {
		It("moves the replicas of the old version to the new one", func(ctx SpecContext) {
			Expect(cli.Create(ctx, newReplicaSet(1, 4))).To(Succeed())
			cluster.start()
			succeeded := testutil.ToFloat64(RolloutsFinishedTotal.WithLabelValues(testNamespace, string(PhaseSucceeded)))

			updater := newTestUpdater(2, WithReplicas(4))
			Expect(updater.Start(ctx)).To(Succeed())
			eventuallyPhase(updater, PhaseSucceeded)

			status := updater.Status()
			Expect(status.StartTime).ToNot(BeNil())
			Expect(status.FinishTime).ToNot(BeNil())
			Expect(*getReplicaSet(ctx, cli, "webshop-v2").Spec.Replicas).To(BeEquivalentTo(4))
			Expect(*getReplicaSet(ctx, cli, "webshop-v1").Spec.Replicas).To(BeEquivalentTo(0))
			Expect(cluster.getMaxDesired("webshop-v2")).To(BeEquivalentTo(4))

			steps := factory.getSteps()
			Expect(steps).To(HaveLen(1))
			Expect(steps[0].Source.Name).To(Equal("webshop-v1"))
			Expect(*steps[0].Target.Spec.Replicas).To(BeEquivalentTo(4))

			Expect(testutil.ToFloat64(RolloutsFinishedTotal.WithLabelValues(testNamespace, string(PhaseSucceeded)))).
				To(Equal(succeeded + 1))
		})

		It("never goes beyond the requested replicas", func(ctx SpecContext) {
			Expect(cli.Create(ctx, newReplicaSet(0, 3))).To(Succeed())
			Expect(cli.Create(ctx, newReplicaSet(1, 2))).To(Succeed())
			cluster.start()

			updater := newTestUpdater(2, WithReplicas(4))
			Expect(updater.Start(ctx)).To(Succeed())
			eventuallyPhase(updater, PhaseSucceeded)

			steps := factory.getSteps()
			Expect(steps).To(HaveLen(2))
			Expect(steps[0].Source.Name).To(Equal("webshop-v1"))
			Expect(*steps[0].Target.Spec.Replicas).To(BeEquivalentTo(2))
			Expect(steps[1].Source.Name).To(Equal("webshop-v0"))
			Expect(*steps[1].Target.Spec.Replicas).To(BeEquivalentTo(4))

			Expect(cluster.getMaxDesired("webshop-v2")).To(BeEquivalentTo(4))
			Expect(*getReplicaSet(ctx, cli, "webshop-v0").Spec.Replicas).To(BeEquivalentTo(0))
		})

		It("scales the new version up when nothing is left to migrate", func(ctx SpecContext) {
			cluster.start()

			updater := newTestUpdater(2, WithReplicas(3))
			Expect(updater.Start(ctx)).To(Succeed())
			eventuallyPhase(updater, PhaseSucceeded)

			Expect(factory.getSteps()).To(BeEmpty())
			Expect(*getReplicaSet(ctx, cli, "webshop-v2").Spec.Replicas).To(BeEquivalentTo(3))
		})

		It("removes the old versions once the new one is big enough", func(ctx SpecContext) {
			Expect(cli.Create(ctx, newReplicaSet(1, 3))).To(Succeed())
			Expect(cli.Create(ctx, newReplicaSet(2, 2))).To(Succeed())
			cluster.reconcile(ctx)

			updater := newTestUpdater(2, WithReplicas(2))
			Expect(updater.Start(ctx)).To(Succeed())
			eventuallyPhase(updater, PhaseSucceeded)

			Expect(factory.getSteps()).To(BeEmpty())
			err := cli.Get(ctx, client.ObjectKey{Namespace: testNamespace, Name: "webshop-v1"}, &appsv1.ReplicaSet{})
			Expect(apierrs.IsNotFound(err)).To(BeTrue())

			pods, err := listReplicaSetPods(ctx, cli, newReplicaSet(1, 0))
			Expect(err).ToNot(HaveOccurred())
			Expect(pods).To(BeEmpty())
			Expect(*getReplicaSet(ctx, cli, "webshop-v2").Spec.Replicas).To(BeEquivalentTo(2))
		})
	})

	Context("keeping the number of replicas", func() {
		It("mirrors the replicas of the old version", func(ctx SpecContext) {
			Expect(cli.Create(ctx, newReplicaSet(1, 3))).To(Succeed())
			cluster.start()

			updater := newTestUpdater(2)
			Expect(updater.Start(ctx)).To(Succeed())
			eventuallyPhase(updater, PhaseSucceeded)

			Expect(factory.getSteps()).To(HaveLen(1))
			Expect(*getReplicaSet(ctx, cli, "webshop-v2").Spec.Replicas).To(BeEquivalentTo(3))
			Expect(*getReplicaSet(ctx, cli, "webshop-v1").Spec.Replicas).To(BeEquivalentTo(0))
		})

		It("sums the replicas of every old version, newest first", func(ctx SpecContext) {
			Expect(cli.Create(ctx, newReplicaSet(0, 2))).To(Succeed())
			Expect(cli.Create(ctx, newReplicaSet(1, 3))).To(Succeed())
			cluster.start()

			updater := newTestUpdater(2)
			Expect(updater.Start(ctx)).To(Succeed())
			eventuallyPhase(updater, PhaseSucceeded)

			steps := factory.getSteps()
			Expect(steps).To(HaveLen(2))
			Expect(steps[0].Source.Name).To(Equal("webshop-v1"))
			Expect(*steps[0].Target.Spec.Replicas).To(BeEquivalentTo(3))
			Expect(steps[1].Source.Name).To(Equal("webshop-v0"))
			Expect(*steps[1].Target.Spec.Replicas).To(BeEquivalentTo(5))
			Expect(*getReplicaSet(ctx, cli, "webshop-v2").Spec.Replicas).To(BeEquivalentTo(5))
		})

		It("adopts an existing replica set of the new version", func(ctx SpecContext) {
			Expect(cli.Create(ctx, newReplicaSet(1, 2))).To(Succeed())
			Expect(cli.Create(ctx, newReplicaSet(2, 1))).To(Succeed())
			cluster.start()

			updater := newTestUpdater(2)
			Expect(updater.Start(ctx)).To(Succeed())
			eventuallyPhase(updater, PhaseSucceeded)

			steps := factory.getSteps()
			Expect(steps).To(HaveLen(1))
			Expect(*steps[0].Target.Spec.Replicas).To(BeEquivalentTo(3))
			Expect(*getReplicaSet(ctx, cli, "webshop-v2").Spec.Replicas).To(BeEquivalentTo(3))
		})
	})

	Context("with an inconsistent cluster", func() {
		It("fails when the new version runs in more than one replica set", func(ctx SpecContext) {
			Expect(cli.Create(ctx, newReplicaSet(1, 2))).To(Succeed())
			Expect(cli.Create(ctx, newReplicaSet(2, 1))).To(Succeed())
			duplicate := newReplicaSet(2, 1)
			duplicate.Name = "webshop-v2-copy"
			Expect(cli.Create(ctx, duplicate)).To(Succeed())

			updater := newTestUpdater(2)
			Expect(updater.Start(ctx)).To(Succeed())
			eventuallyPhase(updater, PhaseFailed)

			Expect(updater.Status().Reason).To(ContainSubstring(ErrAmbiguousTarget.Error()))
			Expect(factory.getSteps()).To(BeEmpty())
		})

		It("fails when two old replica sets have the same version", func(ctx SpecContext) {
			Expect(cli.Create(ctx, newReplicaSet(1, 2))).To(Succeed())
			duplicate := newReplicaSet(1, 1)
			duplicate.Name = "webshop-v1-copy"
			Expect(cli.Create(ctx, duplicate)).To(Succeed())

			updater := newTestUpdater(2)
			Expect(updater.Start(ctx)).To(Succeed())
			eventuallyPhase(updater, PhaseFailed)

			Expect(updater.Status().Reason).To(ContainSubstring(ErrDuplicateSourceVersion.Error()))
			Expect(factory.getSteps()).To(BeEmpty())
		})
	})

	It("stops at the first failed migration step", func(ctx SpecContext) {
		Expect(cli.Create(ctx, newReplicaSet(0, 2))).To(Succeed())
		Expect(cli.Create(ctx, newReplicaSet(1, 3))).To(Succeed())
		factory.inner = stubFactory(func(s *stubConverger) {
			s.reason = "replica set webshop-v2 exploded"
		})

		updater := newTestUpdater(2)
		Expect(updater.Start(ctx)).To(Succeed())
		eventuallyPhase(updater, PhaseFailed)

		Expect(updater.Status().Reason).To(Equal("replica set webshop-v2 exploded"))
		Expect(factory.getSteps()).To(HaveLen(1))
	})

	It("fails when the new pods are not ready in time", func(ctx SpecContext) {
		Expect(cli.Create(ctx, newReplicaSet(1, 2))).To(Succeed())
		cluster.setUnready("webshop-v2")
		cluster.start()
		factory.inner = stubFactory(func(s *stubConverger) {
			s.scale = true
		})

		updater := newTestUpdater(2, WithReadinessPolling(time.Millisecond, 10*time.Millisecond))
		Expect(updater.Start(ctx)).To(Succeed())
		eventuallyPhase(updater, PhaseFailed)

		Expect(updater.Status().Reason).To(ContainSubstring(ErrTimeout.Error()))
	})

	Context("starting", func() {
		It("refuses to start twice", func(ctx SpecContext) {
			Expect(cli.Create(ctx, newReplicaSet(1, 2))).To(Succeed())
			factory.inner = stubFactory(func(s *stubConverger) {
				s.block = true
			})

			updater := newTestUpdater(2)
			DeferCleanup(updater.Stop)
			Expect(updater.Start(ctx)).To(Succeed())
			Expect(updater.Start(ctx)).To(MatchError(ErrAlreadyStarted))

			status := updater.Status()
			Expect(status.Phase).To(Equal(PhaseFailed))
			Expect(status.Reason).To(Equal(ErrAlreadyStarted.Error()))
			Expect(testutil.ToFloat64(workerpool.TasksSubmittedTotal.WithLabelValues(
				"rollout-" + CurrentSpecReport().LeafNodeText))).To(Equal(1.0))
		})

		It("does nothing without a client", func(ctx SpecContext) {
			updater := NewUpdater(nil, newDeployment(), newVersion(2), WithPool(pool))
			Expect(updater.Start(ctx)).To(MatchError(ErrMissingReference))
			Expect(updater.Status().Phase).To(Equal(PhaseUnknown))
		})

		It("does nothing without a version", func(ctx SpecContext) {
			updater := NewUpdater(cli, newDeployment(), nil, WithPool(pool))
			Expect(updater.Start(ctx)).To(MatchError(ErrMissingReference))
			Expect(updater.Status().Phase).To(Equal(PhaseUnknown))
		})

		It("fails when the pool does not accept the rollout", func(ctx SpecContext) {
			closedPool := workerpool.New("rollout-closed")
			Expect(closedPool.Shutdown(ctx)).To(Succeed())

			updater := newTestUpdater(2, WithPool(closedPool))
			Expect(updater.Start(ctx)).To(MatchError(workerpool.ErrPoolClosed))
			Expect(updater.Status().Phase).To(Equal(PhaseFailed))
		})
	})

	It("fails the rollout when the background task dies", func(ctx SpecContext) {
		Expect(cli.Create(ctx, newReplicaSet(1, 2))).To(Succeed())
		factory.inner = stubFactory(func(s *stubConverger) {
			s.panics = true
		})

		updater := newTestUpdater(2)
		Expect(updater.Start(ctx)).To(Succeed())
		eventuallyPhase(updater, PhaseFailed)

		Expect(updater.Status().Reason).To(ContainSubstring("background task terminated"))
		Expect(updater.Status().Reason).To(ContainSubstring("converger exploded"))
	})

	Context("stopping", func() {
		It("can be stopped before being started", func() {
			updater := newTestUpdater(2)
			updater.Stop()
			updater.Stop()
			Expect(updater.Status().Phase).To(Equal(PhaseUnknown))
		})

		It("interrupts the running migration step", func(ctx SpecContext) {
			Expect(cli.Create(ctx, newReplicaSet(1, 2))).To(Succeed())
			factory.inner = stubFactory(func(s *stubConverger) {
				s.block = true
			})

			updater := newTestUpdater(2)
			Expect(updater.Start(ctx)).To(Succeed())
			waitForConverger[*stubConverger](updater)

			updater.Stop()
			eventuallyPhase(updater, PhaseFailed)
			Expect(updater.handle.Load().IsCancelled()).To(BeTrue())
			updater.Stop()
			Expect(updater.Status().Phase).To(Equal(PhaseFailed))
		})

		It("reports the rollout as stopped until the background task fails", func(ctx SpecContext) {
			Expect(cli.Create(ctx, newReplicaSet(1, 2))).To(Succeed())
			hold := make(chan struct{})
			release := sync.OnceFunc(func() { close(hold) })
			DeferCleanup(release)
			factory.inner = stubFactory(func(s *stubConverger) {
				s.block = true
				s.hold = hold
			})

			updater := newTestUpdater(2)
			Expect(updater.Start(ctx)).To(Succeed())
			waitForConverger[*stubConverger](updater)

			updater.Stop()
			Expect(updater.Status().Phase).To(Equal(PhaseStopped))
			Consistently(func() Phase {
				return updater.Status().Phase
			}).WithTimeout(50 * time.Millisecond).Should(Equal(PhaseStopped))

			release()
			eventuallyPhase(updater, PhaseFailed)
			Expect(updater.Status().Reason).To(Equal(errConvergerClosed.Error()))
		})

		It("fails a rollout started after being stopped", func(ctx SpecContext) {
			Expect(cli.Create(ctx, newReplicaSet(1, 2))).To(Succeed())
			factory.inner = stubFactory(func(s *stubConverger) {
				s.block = true
			})

			updater := newTestUpdater(2)
			updater.Stop()
			Expect(updater.Start(ctx)).To(Succeed())
			eventuallyPhase(updater, PhaseFailed)

			Expect(updater.Status().Reason).To(Equal(errConvergerClosed.Error()))
			Expect(factory.getSteps()).To(HaveLen(1))
			Expect(*getReplicaSet(ctx, cli, "webshop-v1").Spec.Replicas).To(BeEquivalentTo(2))
		})

		It("keeps a completed rollout as it is", func(ctx SpecContext) {
			Expect(cli.Create(ctx, newReplicaSet(1, 1))).To(Succeed())
			cluster.start()

			updater := newTestUpdater(2)
			Expect(updater.Start(ctx)).To(Succeed())
			eventuallyPhase(updater, PhaseSucceeded)

			updater.Stop()
			Expect(updater.Status().Phase).To(Equal(PhaseSucceeded))
		})

		It("lets the background task fail by itself when closed", func(ctx SpecContext) {
			Expect(cli.Create(ctx, newReplicaSet(1, 2))).To(Succeed())
			factory.inner = stubFactory(func(s *stubConverger) {
				s.block = true
			})

			updater := newTestUpdater(2)
			Expect(updater.Start(ctx)).To(Succeed())
			waitForConverger[*stubConverger](updater)

			updater.Close()
			eventuallyPhase(updater, PhaseFailed)
			Expect(updater.Status().Reason).To(Equal(errConvergerClosed.Error()))
			Expect(updater.handle.Load().IsCancelled()).To(BeFalse())
		})
	})

	Context("checking the status", func() {
		It("cannot check a rollout which was not started", func(ctx SpecContext) {
			updater := newTestUpdater(2)
			Expect(updater.CheckStatus(ctx)).To(BeFalse())
		})

		It("confirms a completed rollout", func(ctx SpecContext) {
			Expect(cli.Create(ctx, newReplicaSet(1, 2))).To(Succeed())
			cluster.start()

			updater := newTestUpdater(2)
			Expect(updater.Start(ctx)).To(Succeed())
			eventuallyPhase(updater, PhaseSucceeded)

			Expect(updater.CheckStatus(ctx)).To(BeTrue())
			Expect(updater.Status().Phase).To(Equal(PhaseSucceeded))
		})

		It("marks the rollout as succeeded once the pods are ready", func(ctx SpecContext) {
			Expect(cli.Create(ctx, newReplicaSet(1, 2))).To(Succeed())
			cluster.start()
			factory.inner = stubFactory(func(s *stubConverger) {
				s.scale = true
				s.block = true
			})

			updater := newTestUpdater(2)
			DeferCleanup(updater.Stop)
			Expect(updater.Start(ctx)).To(Succeed())
			waitForConverger[*stubConverger](updater)

			Expect(updater.CheckStatus(ctx)).To(BeTrue())
			Expect(updater.Status().Phase).To(Equal(PhaseSucceeded))
		})

		It("does not fail the rollout when the pods are not ready", func(ctx SpecContext) {
			Expect(cli.Create(ctx, newReplicaSet(1, 2))).To(Succeed())
			cluster.setUnready("webshop-v2")
			cluster.start()
			factory.inner = stubFactory(func(s *stubConverger) {
				s.scale = true
				s.block = true
			})

			updater := newTestUpdater(2, WithCheckStatusTimeout(10*time.Millisecond))
			DeferCleanup(updater.Stop)
			Expect(updater.Start(ctx)).To(Succeed())
			waitForConverger[*stubConverger](updater)

			Expect(updater.CheckStatus(ctx)).To(BeFalse())
			Expect(updater.Status().Phase).To(Equal(PhaseRunning))
		})
	})

	It("is created from a rollout request", func() {
		request := &apiv1.RolloutRequest{
			Deployment:    *newDeployment(),
			Version:       *newVersion(2),
			LoadBalancers: []apiv1.LoadBalancer{{Name: "webshop-http", Port: 80}},
			ExtraEnvs:     []apiv1.EnvDraft{{Key: "MODE", Value: "blue"}},
		}
		Expect(NewUpdaterFromRequest(cli, request, WithPool(pool)).isKeepQuantity()).To(BeTrue())

		request.Replicas = ptr.To[int32](4)
		updater := NewUpdaterFromRequest(cli, request, WithPool(pool))
		Expect(updater.isKeepQuantity()).To(BeFalse())
		Expect(*updater.replicas).To(BeEquivalentTo(4))
		Expect(updater.loadBalancers).To(HaveLen(1))
		Expect(updater.extraEnvs).To(ConsistOf(apiv1.EnvDraft{Key: "MODE", Value: "blue"}))
	})

	It("creates the pods of the new version with the requested environment", func(ctx SpecContext) {
		Expect(cli.Create(ctx, newReplicaSet(1, 1))).To(Succeed())
		cluster.start()

		updater := newTestUpdater(2, WithExtraEnvs([]apiv1.EnvDraft{{Key: "MODE", Value: "blue"}}))
		Expect(updater.Start(ctx)).To(Succeed())
		eventuallyPhase(updater, PhaseSucceeded)

		replicaSet := getReplicaSet(ctx, cli, "webshop-v2")
		Expect(replicaSet.Spec.Template.Spec.Containers[0].Env).To(ContainElement(corev1.EnvVar{
			Name:  "MODE",
			Value: "blue",
		}))
	})
})
