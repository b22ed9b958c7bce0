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

// Package scheme implements the scheme used by the kubeship clients
package scheme

import (
	"k8s.io/apimachinery/pkg/runtime"
	clientgoscheme "k8s.io/client-go/kubernetes/scheme"
)

// RegisterUsedApisToScheme registers the used API to the passed scheme
func RegisterUsedApisToScheme(scheme *runtime.Scheme) error {
	return clientgoscheme.AddToScheme(scheme)
}

// New creates a scheme knowing every API kubeship works with
func New() (*runtime.Scheme, error) {
	scheme := runtime.NewScheme()
	if err := RegisterUsedApisToScheme(scheme); err != nil {
		return nil, err
	}
	return scheme, nil
}
