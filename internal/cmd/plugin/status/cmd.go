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

// Package status implements the kubeship status subcommand, showing how
// the replicas of a deployment are spread across its versions
package status

import (
	"github.com/spf13/cobra"

	"github.com/kubeship/kubeship/internal/cmd/plugin"
)

// NewCmd creates the new "status" subcommand
func NewCmd() *cobra.Command {
	statusCmd := &cobra.Command{
		Use:   "status -f REQUEST",
		Short: "Show the replica sets of a deployment and whether the requested version is ready",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			format := plugin.GetOutputFormat(cmd.Flags())

			request, err := plugin.LoadRolloutRequest(cmd)
			if err != nil {
				return err
			}

			return Status(cmd.Context(), plugin.Client, request, format, cmd.OutOrStdout())
		},
	}

	plugin.AddFilenameFlag(statusCmd)
	plugin.AddOutputFlag(statusCmd)

	return statusCmd
}
