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
	"strconv"
)

// Deployment is a long-lived application managed by the platform. The
// rollout engine never changes it, it only uses it to find and label
// the replica sets belonging to the application
type Deployment struct {
	// ID is the unique identifier of the deployment
	ID int `json:"id"`

	// Name is used as the prefix of every generated resource name
	Name string `json:"name"`

	// Namespace is where the replica sets of this deployment live
	Namespace string `json:"namespace"`

	// Labels are added to every pod of the deployment
	// +optional
	Labels map[string]string `json:"labels,omitempty"`
}

// Version is an immutable, numbered revision of the containers
// composing a deployment
type Version struct {
	// ID is the storage identifier of this version
	// +optional
	ID int `json:"id,omitempty"`

	// DeploymentID is the deployment owning this version
	DeploymentID int `json:"deploymentId"`

	// Version is the monotonically increasing revision number, unique
	// inside a deployment
	Version int `json:"version"`

	// Containers is the list of containers of every pod
	Containers []ContainerDraft `json:"containers"`

	// Labels are added to the pods running this version
	// +optional
	Labels map[string]string `json:"labels,omitempty"`

	// HostNetwork makes the pods use the network namespace of the node
	// +optional
	HostNetwork bool `json:"hostNetwork,omitempty"`
}

// ContainerDraft is the description of one container of a Version
type ContainerDraft struct {
	// Name of the container, defaults to the position in the list
	// +optional
	Name string `json:"name,omitempty"`

	// Image is the container image reference
	Image string `json:"image"`

	// +optional
	Command []string `json:"command,omitempty"`

	// +optional
	Args []string `json:"args,omitempty"`

	// Env is the list of environment variables of this container
	// +optional
	Env []EnvDraft `json:"env,omitempty"`

	// CPU is the CPU request and limit, i.e. "500m"
	// +optional
	CPU string `json:"cpu,omitempty"`

	// Memory is the memory request and limit, i.e. "256Mi"
	// +optional
	Memory string `json:"memory,omitempty"`

	// Ports exposed by the container
	// +optional
	Ports []int32 `json:"ports,omitempty"`
}

// EnvDraft is an environment variable
type EnvDraft struct {
	Key   string `json:"key"`
	Value string `json:"value"`
}

// GetVersionString returns the version number as used in labels
func (v *Version) GetVersionString() string {
	return strconv.Itoa(v.Version)
}

// GetIDString returns the deployment id as used in labels
func (d *Deployment) GetIDString() string {
	return strconv.Itoa(d.ID)
}
