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

package utils

const (
	// DeploymentIDLabelName is the name of the label containing the id
	// of the deployment owning a replica set or a pod
	DeploymentIDLabelName = "kubeship.io/deploymentId"

	// VersionLabelName is the name of the label containing the version
	// number of a replica set or a pod
	VersionLabelName = "kubeship.io/version"

	// DeploymentNameLabelName is the name of the label containing the
	// name of the deployment, for humans
	DeploymentNameLabelName = "kubeship.io/deploymentName"

	// LoadBalancerLabelName is the name of the label set on the services
	// generated for a load balancer
	LoadBalancerLabelName = "kubeship.io/loadBalancer"

	// SpecHashAnnotationName is the name of the annotation containing the
	// hash of the pod template of a replica set
	SpecHashAnnotationName = "kubeship.io/specHash"

	// OperatorVersionAnnotationName is the name of the annotation containing
	// the version of the engine that generated a certain object
	OperatorVersionAnnotationName = "kubeship.io/operatorVersion"
)

// MergeMap transfers the content of a giver map to a receiver
// ensuring the receiver wins
func MergeMap(receiver, giver map[string]string) {
	for key, value := range giver {
		if _, exists := receiver[key]; !exists {
			receiver[key] = value
		}
	}
}

const (
	// KubernetesAppManagedByLabelName is the name of the well-known label
	// containing the manager of an object
	KubernetesAppManagedByLabelName = "app.kubernetes.io/managed-by"

	// ManagerName is the value of the managed-by label of the objects
	// created by the rollout engine
	ManagerName = "kubeship"
)
