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

// Package plugin contains the behaviors shared by the kubeship subcommands
package plugin

import (
	"fmt"

	"k8s.io/cli-runtime/pkg/genericclioptions"
	"k8s.io/client-go/kubernetes"
	"k8s.io/client-go/rest"
	"sigs.k8s.io/controller-runtime/pkg/client"

	"github.com/kubeship/kubeship/internal/scheme"
	"github.com/kubeship/kubeship/pkg/versions"
)

var (
	// Namespace to operate in
	Namespace string

	// NamespaceExplicitlyPassed indicates if the namespace was passed manually
	NamespaceExplicitlyPassed bool

	// Config is the Kubernetes configuration used
	Config *rest.Config

	// Client is the controller-runtime client
	Client client.Client

	// ClientInterface is the client-go clientset, used where the
	// controller-runtime client has no support, like log streaming
	ClientInterface kubernetes.Interface
)

// SetupKubernetesClient creates the Kubernetes client used by the
// kubeship subcommands
func SetupKubernetesClient(configFlags *genericclioptions.ConfigFlags) error {
	var err error

	kubeconfig := configFlags.ToRawKubeConfigLoader()

	Config, err = kubeconfig.ClientConfig()
	if err != nil {
		return err
	}

	if err = createClient(Config); err != nil {
		return err
	}

	Namespace, NamespaceExplicitlyPassed, err = kubeconfig.Namespace()
	return err
}

func userAgent() string {
	return fmt.Sprintf("kubeship/v%s (%s)", versions.Version, versions.Info.Commit)
}

func createClient(cfg *rest.Config) error {
	kubeScheme, err := scheme.New()
	if err != nil {
		return err
	}

	cfg.UserAgent = userAgent()

	Client, err = client.New(cfg, client.Options{Scheme: kubeScheme})
	if err != nil {
		return err
	}

	ClientInterface, err = kubernetes.NewForConfig(cfg)
	return err
}
