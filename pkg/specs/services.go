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

package specs

import (
	corev1 "k8s.io/api/core/v1"

	apiv1 "github.com/kubeship/kubeship/api/v1"
	"github.com/kubeship/kubeship/pkg/servicespec"
	"github.com/kubeship/kubeship/pkg/utils"
)

// LoadBalancerService builds the service of a load balancer. The service
// selects every pod of the deployment, so the traffic moves from one
// version to the other following the replicas
func LoadBalancerService(deployment apiv1.Deployment, lb apiv1.LoadBalancer) *corev1.Service {
	return servicespec.New().
		WithName(lb.Name).
		WithNamespace(deployment.Namespace).
		WithLabel(utils.DeploymentIDLabelName, deployment.GetIDString()).
		WithLabel(utils.LoadBalancerLabelName, lb.Name).
		WithLabel(utils.KubernetesAppManagedByLabelName, utils.ManagerName).
		WithServiceType(lb.Type).
		WithPort("traffic", lb.Port, lb.TargetPort).
		WithSelector(DeploymentSelector(deployment)).
		Build()
}

func getTargetPort(lb apiv1.LoadBalancer) int32 {
	if lb.TargetPort == 0 {
		return lb.Port
	}
	return lb.TargetPort
}
