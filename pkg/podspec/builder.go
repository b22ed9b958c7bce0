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

// Package podspec contains various utilities to deal with Pod templates
package podspec

import (
	corev1 "k8s.io/api/core/v1"
)

// Builder enables users to create a PodTemplate starting from a baseline
// and adding patches
type Builder struct {
	status corev1.PodTemplateSpec
}

// New creates a new empty podTemplate builder
func New() *Builder {
	return NewFrom(nil)
}

// NewFrom creates a podTemplate builder from a certain Pod template
func NewFrom(podTemplate *corev1.PodTemplateSpec) *Builder {
	if podTemplate == nil {
		podTemplate = &corev1.PodTemplateSpec{}
	}
	return &Builder{
		status: *podTemplate.DeepCopy(),
	}
}

// WithLabel adds a label to the current status
func (builder *Builder) WithLabel(name, value string) *Builder {
	if builder.status.ObjectMeta.Labels == nil {
		builder.status.ObjectMeta.Labels = make(map[string]string)
	}

	builder.status.ObjectMeta.Labels[name] = value

	return builder
}

// WithLabels adds every passed label to the current status, overwriting
// the ones having the same name
func (builder *Builder) WithLabels(labels map[string]string) *Builder {
	for name, value := range labels {
		builder.WithLabel(name, value)
	}
	return builder
}

// WithHostNetwork sets whether the pods will share the network namespace
// of their node
func (builder *Builder) WithHostNetwork(hostNetwork bool) *Builder {
	builder.status.Spec.HostNetwork = hostNetwork
	return builder
}

// WithImagePullSecret ensures the pods reference the passed image pull secret
func (builder *Builder) WithImagePullSecret(name string) *Builder {
	for _, value := range builder.status.Spec.ImagePullSecrets {
		if value.Name == name {
			return builder
		}
	}

	builder.status.Spec.ImagePullSecrets = append(builder.status.Spec.ImagePullSecrets,
		corev1.LocalObjectReference{Name: name})
	return builder
}

// WithContainer ensures that in the current status there is a container
// with the passed name
func (builder *Builder) WithContainer(name string) *Builder {
	for _, value := range builder.status.Spec.Containers {
		if value.Name == name {
			return builder
		}
	}

	builder.status.Spec.Containers = append(builder.status.Spec.Containers,
		corev1.Container{
			Name: name,
		})
	return builder
}

// container returns the container with the passed name, creating it
// when needed
func (builder *Builder) container(name string) *corev1.Container {
	builder.WithContainer(name)

	for idx := range builder.status.Spec.Containers {
		if builder.status.Spec.Containers[idx].Name == name {
			return &builder.status.Spec.Containers[idx]
		}
	}

	return nil
}

// WithContainerImage ensures that, if in the current status there is
// a container with the passed name and the image is empty, the image will be
// set to the one passed.
// If `overwrite` is true the image is overwritten even when it's not empty
func (builder *Builder) WithContainerImage(name, image string, overwrite bool) *Builder {
	container := builder.container(name)
	if overwrite || container.Image == "" {
		container.Image = image
	}

	return builder
}

// WithContainerCommand sets the command and the arguments of a container
func (builder *Builder) WithContainerCommand(name string, command, args []string) *Builder {
	container := builder.container(name)
	container.Command = command
	container.Args = args
	return builder
}

// WithContainerEnv add the provided EnvVar to a container.
// If `overwrite` is true the value of an existing variable is replaced
func (builder *Builder) WithContainerEnv(name string, env corev1.EnvVar, overwrite bool) *Builder {
	container := builder.container(name)

	for idx, envVar := range container.Env {
		if envVar.Name == env.Name {
			if overwrite {
				container.Env[idx] = env
			}
			return builder
		}
	}

	container.Env = append(container.Env, env)
	return builder
}

// WithContainerPort ensures the container exposes the passed port. Ports
// are matched by number and protocol, and an existing match is kept
func (builder *Builder) WithContainerPort(name string, value corev1.ContainerPort) *Builder {
	container := builder.container(name)

	if value.Protocol == "" {
		value.Protocol = corev1.ProtocolTCP
	}
	for _, port := range container.Ports {
		if port.ContainerPort == value.ContainerPort && port.Protocol == value.Protocol {
			return builder
		}
	}

	container.Ports = append(container.Ports, value)
	return builder
}

// WithContainerResources sets the resource requirements of a container
func (builder *Builder) WithContainerResources(name string, resources corev1.ResourceRequirements) *Builder {
	builder.container(name).Resources = resources
	return builder
}

// Build gets the final Pod template
func (builder *Builder) Build() *corev1.PodTemplateSpec {
	return &builder.status
}
