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

/*
The kubeship command rolls deployments to new versions, moving their
replicas from the replica sets of the older versions.
*/
package main

import (
	"os"

	"github.com/cloudnative-pg/machinery/pkg/log"
	"github.com/spf13/cobra"
	"k8s.io/cli-runtime/pkg/genericclioptions"
	_ "k8s.io/client-go/plugin/pkg/client/auth"
	ctrl "sigs.k8s.io/controller-runtime"
	"sigs.k8s.io/controller-runtime/pkg/log/zap"

	"github.com/kubeship/kubeship/internal/cmd/plugin"
	"github.com/kubeship/kubeship/internal/cmd/plugin/deploy"
	"github.com/kubeship/kubeship/internal/cmd/plugin/logs"
	"github.com/kubeship/kubeship/internal/cmd/plugin/status"
	"github.com/kubeship/kubeship/internal/cmd/versions"
)

func main() {
	configFlags := genericclioptions.NewConfigFlags(true)
	logFlags := log.NewFlags(zap.Options{})

	rootCmd := &cobra.Command{
		Use:          "kubeship",
		Short:        "Roll Kubernetes deployments to new versions",
		SilenceUsage: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			logFlags.ConfigureLogging()
			if err := plugin.ConfigureColor(cmd); err != nil {
				return err
			}
			return plugin.SetupKubernetesClient(configFlags)
		},
	}

	configFlags.AddFlags(rootCmd.PersistentFlags())
	logFlags.AddFlags(rootCmd.PersistentFlags())
	plugin.AddColorControlFlags(rootCmd)

	rootCmd.AddCommand(deploy.NewCmd())
	rootCmd.AddCommand(logs.NewCmd())
	rootCmd.AddCommand(status.NewCmd())
	rootCmd.AddCommand(versions.NewCmd())

	if err := rootCmd.ExecuteContext(ctrl.SetupSignalHandler()); err != nil {
		os.Exit(1)
	}
}
