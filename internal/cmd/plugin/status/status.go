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

package status

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"sort"
	"text/tabwriter"

	"github.com/cheynewallace/tabby"
	"github.com/logrusorgru/aurora/v4"
	appsv1 "k8s.io/api/apps/v1"
	corev1 "k8s.io/api/core/v1"
	"sigs.k8s.io/controller-runtime/pkg/client"

	apiv1 "github.com/kubeship/kubeship/api/v1"
	"github.com/kubeship/kubeship/internal/cmd/plugin"
	"github.com/kubeship/kubeship/pkg/specs"
	"github.com/kubeship/kubeship/pkg/utils"
)

// ReplicaSetStatus is the state of the replica set of one version
type ReplicaSetStatus struct {
	Name        string `json:"name"`
	Version     string `json:"version"`
	Desired     int32  `json:"desired"`
	Ready       int    `json:"ready"`
	Total       int    `json:"total"`
	Destination bool   `json:"destination"`
}

// DeploymentStatus is the state of every version of a deployment
type DeploymentStatus struct {
	Deployment  string             `json:"deployment"`
	Namespace   string             `json:"namespace"`
	Version     int                `json:"version"`
	Ready       bool               `json:"ready"`
	ReplicaSets []ReplicaSetStatus `json:"replicaSets"`
}

// Status prints the replica sets of the deployment of a rollout request
func Status(
	ctx context.Context,
	cli client.Client,
	request *apiv1.RolloutRequest,
	format plugin.OutputFormat,
	writer io.Writer,
) error {
	status, err := extractDeploymentStatus(ctx, cli, request)
	if err != nil {
		return err
	}

	if format != plugin.OutputFormatText {
		return plugin.Print(status, format, writer)
	}
	return printDeploymentStatus(writer, status)
}

func extractDeploymentStatus(
	ctx context.Context,
	cli client.Client,
	request *apiv1.RolloutRequest,
) (*DeploymentStatus, error) {
	var replicaSets appsv1.ReplicaSetList
	if err := cli.List(
		ctx,
		&replicaSets,
		client.InNamespace(request.Deployment.Namespace),
		client.MatchingLabels(specs.DeploymentSelector(request.Deployment)),
	); err != nil {
		return nil, err
	}

	status := &DeploymentStatus{
		Deployment:  request.Deployment.Name,
		Namespace:   request.Deployment.Namespace,
		Version:     request.Version.Version,
		ReplicaSets: make([]ReplicaSetStatus, 0, len(replicaSets.Items)),
	}

	destinationVersion := request.Version.GetVersionString()
	for idx := range replicaSets.Items {
		replicaSet := &replicaSets.Items[idx]

		var pods corev1.PodList
		if err := cli.List(
			ctx,
			&pods,
			client.InNamespace(replicaSet.Namespace),
			client.MatchingLabels(utils.GetPodSelectorLabels(replicaSet)),
		); err != nil {
			return nil, err
		}
		counts := utils.CountPods(pods.Items)

		item := ReplicaSetStatus{
			Name:        replicaSet.Name,
			Version:     replicaSet.Labels[utils.VersionLabelName],
			Desired:     utils.GetDesiredReplicas(replicaSet),
			Ready:       counts[utils.PodHealthy],
			Total:       counts.Active(),
			Destination: replicaSet.Labels[utils.VersionLabelName] == destinationVersion,
		}
		if item.Destination {
			status.Ready = item.Desired > 0 &&
				item.Ready == int(item.Desired) &&
				item.Total == int(item.Desired)
		}
		status.ReplicaSets = append(status.ReplicaSets, item)
	}

	sort.Slice(status.ReplicaSets, func(i, j int) bool {
		return status.ReplicaSets[i].Name < status.ReplicaSets[j].Name
	})

	return status, nil
}

func printDeploymentStatus(writer io.Writer, status *DeploymentStatus) error {
	buffer := &bytes.Buffer{}
	printer := tabby.NewCustom(tabwriter.NewWriter(buffer, 0, 0, 4, ' ', 0))

	printer.AddHeader("Replica Set", "Version", "Desired", "Ready", "Pods")
	for _, item := range status.ReplicaSets {
		ready := aurora.Green(item.Ready)
		if item.Ready < int(item.Desired) {
			ready = aurora.Red(item.Ready)
		}

		version := item.Version
		if item.Destination {
			version += " (requested)"
		}
		printer.AddLine(item.Name, version, item.Desired, ready, item.Total)
	}
	printer.Print()

	if status.Ready {
		fmt.Fprintln(buffer, aurora.Green(fmt.Sprintf("Version %d is ready", status.Version)))
	} else {
		fmt.Fprintln(buffer, aurora.Yellow(fmt.Sprintf("Version %d is not ready", status.Version)))
	}

	_, err := fmt.Fprint(writer, buffer.String())
	return err
}
