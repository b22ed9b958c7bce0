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

package logs

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"

	corev1 "k8s.io/api/core/v1"
	"k8s.io/client-go/kubernetes"

	apiv1 "github.com/kubeship/kubeship/api/v1"
	"github.com/kubeship/kubeship/pkg/podlogs"
)

// logsOptions contains the options to retrieve the deployment logs
type logsOptions struct {
	timestamp   bool
	tailLines   int64
	outputFile  string
	follow      bool
	allVersions bool
}

func getDeploymentWriter(
	client kubernetes.Interface,
	request *apiv1.RolloutRequest,
	options logsOptions,
) podlogs.DeploymentWriter {
	var tail *int64
	if options.tailLines >= 0 {
		tail = &options.tailLines
	}

	writer := podlogs.DeploymentWriter{
		Deployment: request.Deployment,
		Options: &corev1.PodLogOptions{
			Timestamps: options.timestamp,
			Follow:     options.follow,
			TailLines:  tail,
		},
		Client: client,
	}
	if !options.allVersions {
		writer.Version = &request.Version
	}
	return writer
}

// saveDeploymentLogs reads the logs of the deployment pods and writes
// them to the passed writer, or to a file if one is set in the options.
// When following, it returns only when interrupted by the user
func saveDeploymentLogs(
	ctx context.Context,
	client kubernetes.Interface,
	request *apiv1.RolloutRequest,
	options logsOptions,
	stdout io.Writer,
) (err error) {
	output := stdout
	if options.outputFile != "" {
		outputFile, createErr := os.Create(filepath.Clean(options.outputFile))
		if createErr != nil {
			return fmt.Errorf("could not create file: %w", createErr)
		}
		output = outputFile

		defer func() {
			errF := outputFile.Sync()
			if errF != nil && err == nil {
				err = fmt.Errorf("could not flush file: %w", errF)
			}

			errF = outputFile.Close()
			if errF != nil && err == nil {
				err = fmt.Errorf("could not close file: %w", errF)
			}
		}()
	}

	writer := getDeploymentWriter(client, request, options)
	if err = writer.SingleStream(ctx, output); err != nil {
		if options.follow && ctx.Err() != nil {
			return nil
		}
		return fmt.Errorf("could not stream the logs: %w", err)
	}

	if options.outputFile != "" {
		_, _ = fmt.Fprintf(stdout, "Successfully written logs to %q\n", options.outputFile)
	}
	return nil
}
