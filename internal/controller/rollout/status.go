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
	"sync"
	"time"

	metav1 "k8s.io/apimachinery/pkg/apis/meta/v1"
)

// Phase is the phase of the rollout of a deployment
type Phase string

const (
	// PhaseUnknown is the phase of a rollout which has not been started
	PhaseUnknown Phase = "Unknown"

	// PhaseRunning is the phase of a rollout whose background task is
	// moving replicas to the new version
	PhaseRunning Phase = "Running"

	// PhaseSucceeded is the phase of a completed rollout
	PhaseSucceeded Phase = "Succeeded"

	// PhaseFailed is the phase of a rollout which cannot complete
	PhaseFailed Phase = "Failed"

	// PhaseStopped marks a rollout which has been asked to stop. The
	// background task may still be running
	PhaseStopped Phase = "Stopped"
)

// IsTerminal is true for the phases no transition leaves
func (p Phase) IsTerminal() bool {
	return p == PhaseSucceeded || p == PhaseFailed
}

// Status is a snapshot of the status of a rollout
type Status struct {
	// Phase of the rollout
	Phase Phase `json:"phase"`

	// Reason explains why the rollout failed
	// +optional
	Reason string `json:"reason,omitempty"`

	// StartTime is when the rollout entered the Running phase
	// +optional
	StartTime *metav1.Time `json:"startTime,omitempty"`

	// FinishTime is when the rollout entered a terminal phase
	// +optional
	FinishTime *metav1.Time `json:"finishTime,omitempty"`
}

// DeepCopy creates a copy of the status not sharing any memory
func (s Status) DeepCopy() Status {
	result := s
	if s.StartTime != nil {
		result.StartTime = s.StartTime.DeepCopy()
	}
	if s.FinishTime != nil {
		result.FinishTime = s.FinishTime.DeepCopy()
	}
	return result
}

// statusTracker guards the status of a rollout. Every method is safe to
// use concurrently and the status never leaves the tracker by reference
type statusTracker struct {
	m      sync.Mutex
	status Status

	// This is used to get the current time. Mainly
	// used by the unit tests to inject a fake time
	timeProvider timeFunc
}

func newStatusTracker() *statusTracker {
	return &statusTracker{
		status:       Status{Phase: PhaseUnknown},
		timeProvider: time.Now,
	}
}

func (t *statusTracker) now() *metav1.Time {
	now := metav1.NewTime(t.timeProvider())
	return &now
}

// start moves an unknown rollout to the Running phase. It returns false
// when the rollout had already been started
func (t *statusTracker) start() bool {
	t.m.Lock()
	defer t.m.Unlock()

	if t.status.Phase != PhaseUnknown {
		return false
	}

	t.status.Phase = PhaseRunning
	t.status.StartTime = t.now()
	return true
}

// succeed marks the rollout as completed, unless it already reached a
// terminal phase
func (t *statusTracker) succeed() bool {
	t.m.Lock()
	defer t.m.Unlock()

	if t.status.Phase.IsTerminal() {
		return false
	}

	t.status.Phase = PhaseSucceeded
	t.status.Reason = ""
	t.status.FinishTime = t.now()
	return true
}

// fail marks the rollout as failed, unless it already reached a terminal
// phase
func (t *statusTracker) fail(reason string) bool {
	t.m.Lock()
	defer t.m.Unlock()

	return t.failLocked(reason)
}

func (t *statusTracker) failLocked(reason string) bool {
	if t.status.Phase.IsTerminal() {
		return false
	}

	t.status.Phase = PhaseFailed
	t.status.Reason = reason
	t.status.FinishTime = t.now()
	return true
}

// stop marks a running rollout as stopped
func (t *statusTracker) stop() bool {
	t.m.Lock()
	defer t.m.Unlock()

	if t.status.Phase != PhaseRunning {
		return false
	}

	t.status.Phase = PhaseStopped
	return true
}

// snapshot returns a copy of the current status. When taskTerminated
// reports that the background task is gone while the status is not
// terminal, the status is failed with the returned reason before being
// copied, and healed is true
func (t *statusTracker) snapshot(taskTerminated func() (string, bool)) (status Status, healed bool) {
	t.m.Lock()
	defer t.m.Unlock()

	if taskTerminated != nil && !t.status.Phase.IsTerminal() && t.status.Phase != PhaseUnknown {
		if reason, done := taskTerminated(); done {
			healed = t.failLocked(reason)
		}
	}

	return t.status.DeepCopy(), healed
}
