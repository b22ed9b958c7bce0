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

// Package logs implements the kubeship logs subcommand, collecting the
// logs of the pods of a deployment into a single stream
package logs

import (
	"github.com/spf13/cobra"

	"github.com/kubeship/kubeship/internal/cmd/plugin"
)

// NewCmd creates the new "logs" subcommand
func NewCmd() *cobra.Command {
	var options logsOptions

	logsCmd := &cobra.Command{
		Use:   "logs -f REQUEST",
		Short: "Logs of the pods running a deployment",
		Long: "Collects the logs of the pods running the version of a rollout request " +
			"into a single stream or file. Use --all-versions to include every version of the deployment",
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			request, err := plugin.LoadRolloutRequest(cmd)
			if err != nil {
				return err
			}

			return saveDeploymentLogs(cmd.Context(), plugin.ClientInterface, request, options, cmd.OutOrStdout())
		},
	}

	plugin.AddFilenameFlag(logsCmd)
	logsCmd.Flags().StringVarP(&options.outputFile, "output-file", "o", "",
		"Output file, the standard output is used when empty")
	logsCmd.Flags().BoolVarP(&options.timestamp, "timestamps", "t", false,
		"Prepend human-readable timestamp to each log line")
	logsCmd.Flags().BoolVar(&options.follow, "follow", false,
		"Follow the logs, watching for new and re-created pods")
	logsCmd.Flags().BoolVar(&options.allVersions, "all-versions", false,
		"Include the pods of every version of the deployment")
	logsCmd.Flags().Int64Var(&options.tailLines, "tail", -1,
		"Number of lines to show from the end of the logs of every container, -1 shows everything")

	return logsCmd
}
