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

// Package specs contains the builders of the Kubernetes resources managed
// by the rollout engine: the replica sets of every version, the image pull
// secrets and the services exposing a deployment
package specs

import (
	"fmt"
	"strconv"

	appsv1 "k8s.io/api/apps/v1"
	corev1 "k8s.io/api/core/v1"
	"k8s.io/apimachinery/pkg/api/resource"
	metav1 "k8s.io/apimachinery/pkg/apis/meta/v1"
	"k8s.io/utils/ptr"

	apiv1 "github.com/kubeship/kubeship/api/v1"
	"github.com/kubeship/kubeship/internal/configuration"
	"github.com/kubeship/kubeship/pkg/podspec"
	"github.com/kubeship/kubeship/pkg/utils"
	"github.com/kubeship/kubeship/pkg/utils/hash"
	"github.com/kubeship/kubeship/pkg/versions"
)

// ReplicaSetName is the name of the replica set running a certain
// version of a deployment
func ReplicaSetName(deployment apiv1.Deployment, version apiv1.Version) string {
	return fmt.Sprintf("%s-v%d", deployment.Name, version.Version)
}

// DeploymentSelector is the set of labels matching every pod of a
// deployment, whatever its version is
func DeploymentSelector(deployment apiv1.Deployment) map[string]string {
	return map[string]string{
		utils.DeploymentIDLabelName: deployment.GetIDString(),
	}
}

// VersionSelector is the set of labels matching the pods of one version
// of a deployment
func VersionSelector(deployment apiv1.Deployment, version apiv1.Version) map[string]string {
	return map[string]string{
		utils.DeploymentIDLabelName: deployment.GetIDString(),
		utils.VersionLabelName:      version.GetVersionString(),
	}
}

// ReplicaSet builds the replica set running the passed version of a
// deployment with the requested number of replicas
func ReplicaSet(
	deployment apiv1.Deployment,
	version apiv1.Version,
	loadBalancers []apiv1.LoadBalancer,
	extraEnvs []apiv1.EnvDraft,
	replicas int32,
) (*appsv1.ReplicaSet, error) {
	selector := VersionSelector(deployment, version)

	podLabels := map[string]string{
		utils.DeploymentNameLabelName: deployment.Name,
	}
	utils.MergeMap(podLabels, selector)
	utils.MergeMap(podLabels, version.Labels)
	utils.MergeMap(podLabels, deployment.Labels)

	builder := podspec.New().
		WithLabels(podLabels).
		WithHostNetwork(version.HostNetwork)
	if err := addContainers(builder, version, loadBalancers, extraEnvs); err != nil {
		return nil, err
	}
	if NeedsPullSecret(version) {
		builder.WithImagePullSecret(PullSecretName(deployment.Namespace))
	}
	template := *builder.Build()

	specHash, err := hash.ComputeHash(template)
	if err != nil {
		return nil, err
	}

	replicaSetLabels := map[string]string{}
	utils.MergeMap(replicaSetLabels, selector)
	utils.MergeMap(replicaSetLabels, map[string]string{
		utils.DeploymentNameLabelName: deployment.Name,
	})

	return &appsv1.ReplicaSet{
		ObjectMeta: metav1.ObjectMeta{
			Name:      ReplicaSetName(deployment, version),
			Namespace: deployment.Namespace,
			Labels:    replicaSetLabels,
			Annotations: map[string]string{
				utils.SpecHashAnnotationName:        specHash,
				utils.OperatorVersionAnnotationName: versions.Version,
			},
		},
		Spec: appsv1.ReplicaSetSpec{
			Replicas: ptr.To(replicas),
			Selector: &metav1.LabelSelector{
				MatchLabels: selector,
			},
			Template: template,
		},
	}, nil
}

func addContainers(
	builder *podspec.Builder,
	version apiv1.Version,
	loadBalancers []apiv1.LoadBalancer,
	extraEnvs []apiv1.EnvDraft,
) error {
	for idx, draft := range version.Containers {
		name := draft.Name
		if name == "" {
			name = "container-" + strconv.Itoa(idx)
		}

		resources, err := createResources(draft)
		if err != nil {
			return fmt.Errorf("container %s: %w", name, err)
		}

		builder.
			WithContainerImage(name, draft.Image, true).
			WithContainerCommand(name, draft.Command, draft.Args).
			WithContainerResources(name, resources)
		for _, list := range [][]apiv1.EnvDraft{draft.Env, extraEnvs} {
			for _, env := range list {
				builder.WithContainerEnv(name, corev1.EnvVar{Name: env.Key, Value: env.Value}, true)
			}
		}
		for _, port := range draft.Ports {
			builder.WithContainerPort(name, corev1.ContainerPort{ContainerPort: port})
		}

		// The first container receives the traffic of the load balancers
		if idx == 0 {
			for _, lb := range loadBalancers {
				builder.WithContainerPort(name, corev1.ContainerPort{ContainerPort: getTargetPort(lb)})
			}
		}
	}

	return nil
}

func createResources(draft apiv1.ContainerDraft) (corev1.ResourceRequirements, error) {
	var result corev1.ResourceRequirements
	quantities := corev1.ResourceList{}

	if draft.CPU != "" {
		cpu, err := resource.ParseQuantity(draft.CPU)
		if err != nil {
			return result, fmt.Errorf("invalid cpu %q: %w", draft.CPU, err)
		}
		quantities[corev1.ResourceCPU] = cpu
	}
	if draft.Memory != "" {
		memory, err := resource.ParseQuantity(draft.Memory)
		if err != nil {
			return result, fmt.Errorf("invalid memory %q: %w", draft.Memory, err)
		}
		quantities[corev1.ResourceMemory] = memory
	}

	if len(quantities) > 0 {
		result.Requests = quantities
		result.Limits = quantities.DeepCopy()
	}
	return result, nil
}

// NeedsPullSecret is true when at least one image of the version comes
// from a registry of the platform
func NeedsPullSecret(version apiv1.Version) bool {
	for _, container := range version.Containers {
		if configuration.Current.IsInternalRegistry(utils.GetImageRegistry(container.Image)) {
			return true
		}
	}
	return false
}
