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
	"k8s.io/apimachinery/pkg/util/sets"
	"k8s.io/apimachinery/pkg/util/validation"
	"k8s.io/apimachinery/pkg/util/validation/field"
)

// Validate checks a rollout request, returning every problem found
func (r *RolloutRequest) Validate() field.ErrorList {
	var result field.ErrorList

	result = append(result, r.Deployment.validate(field.NewPath("deployment"))...)
	result = append(result, r.Version.validate(field.NewPath("version"), r.Deployment.ID)...)
	result = append(result, r.validateLoadBalancers()...)

	if r.Replicas != nil && *r.Replicas < 0 {
		result = append(result, field.Invalid(
			field.NewPath("replicas"),
			*r.Replicas,
			"must not be negative"))
	}

	return result
}

func (d *Deployment) validate(path *field.Path) field.ErrorList {
	var result field.ErrorList

	if d.Name == "" {
		result = append(result, field.Required(path.Child("name"), ""))
	} else {
		for _, msg := range validation.IsDNS1123Label(d.Name) {
			result = append(result, field.Invalid(path.Child("name"), d.Name, msg))
		}
	}

	if d.Namespace == "" {
		result = append(result, field.Required(path.Child("namespace"), ""))
	}

	return result
}

func (v *Version) validate(path *field.Path, deploymentID int) field.ErrorList {
	var result field.ErrorList

	if v.Version <= 0 {
		result = append(result, field.Invalid(path.Child("version"), v.Version, "must be positive"))
	}

	if v.DeploymentID != 0 && v.DeploymentID != deploymentID {
		result = append(result, field.Invalid(
			path.Child("deploymentId"),
			v.DeploymentID,
			"belongs to a different deployment"))
	}

	if len(v.Containers) == 0 {
		result = append(result, field.Required(path.Child("containers"), "at least one container is needed"))
	}
	names := sets.New[string]()
	for idx, container := range v.Containers {
		containerPath := path.Child("containers").Index(idx)
		if container.Image == "" {
			result = append(result, field.Required(containerPath.Child("image"), ""))
		}
		if container.Name == "" {
			continue
		}
		if names.Has(container.Name) {
			result = append(result, field.Duplicate(containerPath.Child("name"), container.Name))
		}
		names.Insert(container.Name)
	}

	return result
}

func (r *RolloutRequest) validateLoadBalancers() field.ErrorList {
	var result field.ErrorList

	path := field.NewPath("loadBalancers")
	names := sets.New[string]()
	for idx, lb := range r.LoadBalancers {
		if names.Has(lb.Name) {
			result = append(result, field.Duplicate(path.Index(idx).Child("name"), lb.Name))
		}
		names.Insert(lb.Name)

		if lb.Port <= 0 || lb.Port > 65535 {
			result = append(result, field.Invalid(path.Index(idx).Child("port"), lb.Port, "invalid port"))
		}
	}

	return result
}
