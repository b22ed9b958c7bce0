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

package v1

import (
	"time"

	corev1 "k8s.io/api/core/v1"
	metav1 "k8s.io/apimachinery/pkg/apis/meta/v1"
)

const (
	// DefaultMaxSurge is the default number of replicas a single step
	// may add to the destination replica set
	DefaultMaxSurge = 1

	// DefaultStepTimeout is the default time a single step waits for the
	// new replicas to become ready
	DefaultStepTimeout = 5 * time.Minute

	// DefaultPollInterval is the default interval between two readings of
	// the replica sets during a step
	DefaultPollInterval = time.Second
)

// Policy governs how fast replicas are moved from one replica set to
// another during a rollout. It is immutable for the whole rollout
type Policy struct {
	// MaxSurge is the maximum number of replicas added to the destination
	// replica set in one step
	// +optional
	MaxSurge int32 `json:"maxSurge,omitempty"`

	// MaxUnavailable is how far the ready replicas of the deployment may
	// drop below the goal while the migration is running
	// +optional
	MaxUnavailable int32 `json:"maxUnavailable,omitempty"`

	// StepTimeout bounds the time spent waiting for the replicas of one
	// step to become ready
	// +optional
	StepTimeout metav1.Duration `json:"stepTimeout,omitempty"`

	// PollInterval is the interval between two readings of the cluster
	// state while waiting
	// +optional
	PollInterval metav1.Duration `json:"pollInterval,omitempty"`

	// RolloutDelay is a mandatory pause between two steps, applied on top
	// of the process-wide pacing
	// +optional
	RolloutDelay metav1.Duration `json:"rolloutDelay,omitempty"`
}

// SetDefaults fills the unset fields of the policy
func (p *Policy) SetDefaults() {
	if p.MaxSurge <= 0 {
		p.MaxSurge = DefaultMaxSurge
	}
	if p.MaxUnavailable < 0 {
		p.MaxUnavailable = 0
	}
	if p.StepTimeout.Duration <= 0 {
		p.StepTimeout = metav1.Duration{Duration: DefaultStepTimeout}
	}
	if p.PollInterval.Duration <= 0 {
		p.PollInterval = metav1.Duration{Duration: DefaultPollInterval}
	}
}

// LoadBalancer is a service exposing the pods of a deployment, whatever
// their version is
type LoadBalancer struct {
	// Name of the generated service
	Name string `json:"name"`

	// Port exposed by the service
	Port int32 `json:"port"`

	// TargetPort on the pods, defaults to Port
	// +optional
	TargetPort int32 `json:"targetPort,omitempty"`

	// Type of the service, defaults to ClusterIP
	// +optional
	Type corev1.ServiceType `json:"type,omitempty"`
}

// RolloutRequest is everything needed to roll a deployment to a new
// version
type RolloutRequest struct {
	Deployment Deployment `json:"deployment"`
	Version    Version    `json:"version"`

	// +optional
	Policy Policy `json:"policy,omitempty"`

	// +optional
	LoadBalancers []LoadBalancer `json:"loadBalancers,omitempty"`

	// ExtraEnvs are added to every container of the new version
	// +optional
	ExtraEnvs []EnvDraft `json:"extraEnvs,omitempty"`

	// Replicas is the number of replicas the new version should end with.
	// When not set, the new version will have as many replicas as the old
	// ones had
	// +optional
	Replicas *int32 `json:"replicas,omitempty"`
}

// IsKeepQuantity is true when the final number of replicas mirrors the
// old versions
func (r *RolloutRequest) IsKeepQuantity() bool {
	return r.Replicas == nil
}
