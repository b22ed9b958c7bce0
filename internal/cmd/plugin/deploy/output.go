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

package deploy

import (
	"bytes"
	"fmt"
	"io"
	"text/tabwriter"
	"time"

	"github.com/cheynewallace/tabby"
	"github.com/logrusorgru/aurora/v4"

	apiv1 "github.com/kubeship/kubeship/api/v1"
	"github.com/kubeship/kubeship/internal/cmd/plugin"
	"github.com/kubeship/kubeship/internal/controller/rollout"
)

// rolloutReport is the machine-readable outcome of a rollout
type rolloutReport struct {
	Deployment string         `json:"deployment"`
	Namespace  string         `json:"namespace"`
	Version    int            `json:"version"`
	Status     rollout.Status `json:"status"`
}

func printStatus(
	writer io.Writer,
	request *apiv1.RolloutRequest,
	status rollout.Status,
	format plugin.OutputFormat,
) error {
	if format != plugin.OutputFormatText {
		return plugin.Print(rolloutReport{
			Deployment: request.Deployment.Name,
			Namespace:  request.Deployment.Namespace,
			Version:    request.Version.Version,
			Status:     status,
		}, format, writer)
	}

	buffer := &bytes.Buffer{}
	summary := tabby.NewCustom(tabwriter.NewWriter(buffer, 0, 0, 4, ' ', 0))
	summary.AddHeader(aurora.Colorize("Rollout Summary", phaseColor(status.Phase)))
	summary.AddLine("Deployment", request.Deployment.Name)
	summary.AddLine("Namespace", request.Deployment.Namespace)
	summary.AddLine("Version", request.Version.Version)
	summary.AddLine("Phase", aurora.Colorize(status.Phase, phaseColor(status.Phase)))
	if status.Reason != "" {
		summary.AddLine("Reason", status.Reason)
	}
	if status.StartTime != nil {
		summary.AddLine("Started", status.StartTime.Format(time.RFC3339))
	}
	if status.StartTime != nil && status.FinishTime != nil {
		summary.AddLine("Duration", status.FinishTime.Sub(status.StartTime.Time).Round(time.Second))
	}
	summary.Print()

	_, err := fmt.Fprint(writer, buffer.String())
	return err
}

func phaseColor(phase rollout.Phase) aurora.Color {
	switch phase {
	case rollout.PhaseSucceeded:
		return aurora.GreenFg
	case rollout.PhaseFailed:
		return aurora.RedFg
	default:
		return aurora.YellowFg
	}
}
