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

// Package versions builds the version subcommand
package versions

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/kubeship/kubeship/pkg/versions"
)

// NewCmd is a cobra command printing build information
func NewCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Prints version, commit sha and date of the build",
		// Printing the build information needs no Kubernetes client
		PersistentPreRunE: func(*cobra.Command, []string) error {
			return nil
		},
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Fprintf(cmd.OutOrStdout(), "Build: %+v\n", versions.Info)
		},
	}
}
