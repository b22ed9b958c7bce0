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

// Package servicespec contains various utilities to deal with Service specs
package servicespec

import (
	corev1 "k8s.io/api/core/v1"
	"k8s.io/apimachinery/pkg/util/intstr"
)

// Builder enables users to create a Service starting from a baseline
// and adding patches
type Builder struct {
	status corev1.Service
}

// New creates a new empty service builder
func New() *Builder {
	return NewFrom(nil)
}

// NewFrom creates a service builder from a certain Service
func NewFrom(service *corev1.Service) *Builder {
	if service == nil {
		service = &corev1.Service{}
	}
	return &Builder{
		status: *service.DeepCopy(),
	}
}

// WithName adds a name to the current status
func (builder *Builder) WithName(name string) *Builder {
	builder.status.ObjectMeta.Name = name
	return builder
}

// WithNamespace sets a namespace to the current status
func (builder *Builder) WithNamespace(ns string) *Builder {
	builder.status.ObjectMeta.Namespace = ns
	return builder
}

// WithLabel adds a label to the current status
func (builder *Builder) WithLabel(name, value string) *Builder {
	if builder.status.ObjectMeta.Labels == nil {
		builder.status.ObjectMeta.Labels = make(map[string]string)
	}

	builder.status.ObjectMeta.Labels[name] = value

	return builder
}

// WithServiceType sets the service type. An empty type means ClusterIP
func (builder *Builder) WithServiceType(serviceType corev1.ServiceType) *Builder {
	if serviceType == "" {
		serviceType = corev1.ServiceTypeClusterIP
	}
	builder.status.Spec.Type = serviceType
	return builder
}

// WithPort adds a TCP port to the current status, replacing the one
// having the same name. A zero target port means the service port
func (builder *Builder) WithPort(name string, port, targetPort int32) *Builder {
	if targetPort == 0 {
		targetPort = port
	}
	servicePort := corev1.ServicePort{
		Name:       name,
		Protocol:   corev1.ProtocolTCP,
		Port:       port,
		TargetPort: intstr.FromInt32(targetPort),
	}

	for idx, value := range builder.status.Spec.Ports {
		if value.Name == name {
			builder.status.Spec.Ports[idx] = servicePort
			return builder
		}
	}

	builder.status.Spec.Ports = append(builder.status.Spec.Ports, servicePort)
	return builder
}

// WithSelector replaces the selector of the current status
func (builder *Builder) WithSelector(selector map[string]string) *Builder {
	builder.status.Spec.Selector = make(map[string]string, len(selector))
	for key, value := range selector {
		builder.status.Spec.Selector[key] = value
	}
	return builder
}

// Build gets the final Service
func (builder *Builder) Build() *corev1.Service {
	return &builder.status
}
