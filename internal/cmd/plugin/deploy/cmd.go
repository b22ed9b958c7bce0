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

// Package deploy implements the kubeship deploy subcommand, rolling a
// deployment to a new version
package deploy

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/kubeship/kubeship/internal/cmd/plugin"
)

// NewCmd creates the new "deploy" subcommand
func NewCmd() *cobra.Command {
	var timeout time.Duration

	deployCmd := &cobra.Command{
		Use:   "deploy -f REQUEST",
		Short: "Roll a deployment to a new version",
		Long: "Moves the replicas of the older versions of a deployment to the version " +
			"described in the rollout request, waiting for the new pods to be ready. " +
			"Interrupting the command stops the rollout, leaving the replicas moved so far in place.",
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx := cmd.Context()

			format := plugin.GetOutputFormat(cmd.Flags())

			request, err := plugin.LoadRolloutRequest(cmd)
			if err != nil {
				return err
			}

			status, rolloutErr := Deploy(ctx, plugin.Client, request, timeout)
			if err := printStatus(cmd.OutOrStdout(), request, status, format); err != nil {
				return err
			}
			if rolloutErr != nil {
				return fmt.Errorf("rollout of %s to version %d: %w",
					request.Deployment.Name, request.Version.Version, rolloutErr)
			}
			return nil
		},
	}

	plugin.AddFilenameFlag(deployCmd)
	plugin.AddOutputFlag(deployCmd)
	deployCmd.Flags().DurationVar(&timeout, "timeout", 0,
		"The maximum time to wait for the rollout, 0 means no limit")

	return deployCmd
}
