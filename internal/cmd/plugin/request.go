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

package plugin

import (
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"
	"sigs.k8s.io/yaml"

	apiv1 "github.com/kubeship/kubeship/api/v1"
)

// AddFilenameFlag adds the --filename flag pointing to a rollout request
func AddFilenameFlag(cmd *cobra.Command) {
	cmd.Flags().StringP("filename", "f", "", "The YAML or JSON rollout request, use - for the standard input")
	_ = cmd.MarkFlagRequired("filename")
}

// LoadRolloutRequest reads and validates the rollout request passed with
// the --filename flag. The namespace of the current context is used when
// the request does not set one
func LoadRolloutRequest(cmd *cobra.Command) (*apiv1.RolloutRequest, error) {
	filename, err := cmd.Flags().GetString("filename")
	if err != nil {
		return nil, err
	}

	var content []byte
	if filename == "-" {
		content, err = io.ReadAll(cmd.InOrStdin())
	} else {
		content, err = os.ReadFile(filename) // #nosec
	}
	if err != nil {
		return nil, fmt.Errorf("while reading the rollout request: %w", err)
	}

	return parseRolloutRequest(content, Namespace)
}

func parseRolloutRequest(content []byte, defaultNamespace string) (*apiv1.RolloutRequest, error) {
	var request apiv1.RolloutRequest
	if err := yaml.UnmarshalStrict(content, &request); err != nil {
		return nil, fmt.Errorf("while decoding the rollout request: %w", err)
	}

	if request.Deployment.Namespace == "" {
		request.Deployment.Namespace = defaultNamespace
	}
	if request.Version.DeploymentID == 0 {
		request.Version.DeploymentID = request.Deployment.ID
	}

	if errs := request.Validate(); len(errs) > 0 {
		return nil, fmt.Errorf("invalid rollout request: %w", errs.ToAggregate())
	}

	request.Policy.SetDefaults()
	return &request, nil
}
