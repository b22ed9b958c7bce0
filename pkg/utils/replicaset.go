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

package utils

import (
	"fmt"
	"strconv"

	appsv1 "k8s.io/api/apps/v1"
)

// ReplicaSetVersion reads the version number of a replica set from its
// labels. A replica set without a valid version label is an error, as it
// cannot be ordered against the others
func ReplicaSetVersion(rs *appsv1.ReplicaSet) (int, error) {
	value, ok := rs.Labels[VersionLabelName]
	if !ok {
		return 0, fmt.Errorf("replica set %s has no %s label", rs.Name, VersionLabelName)
	}

	version, err := strconv.Atoi(value)
	if err != nil {
		return 0, fmt.Errorf("replica set %s has an invalid %s label %q: %w",
			rs.Name, VersionLabelName, value, err)
	}
	return version, nil
}

// GetDesiredReplicas gets the number of replicas requested for a replica
// set, honoring the Kubernetes default of one replica
func GetDesiredReplicas(rs *appsv1.ReplicaSet) int32 {
	if rs.Spec.Replicas == nil {
		return 1
	}
	return *rs.Spec.Replicas
}

// GetPodSelectorLabels gets the labels matching the pods of a replica set
func GetPodSelectorLabels(rs *appsv1.ReplicaSet) map[string]string {
	if rs.Spec.Selector == nil {
		return nil
	}
	return rs.Spec.Selector.MatchLabels
}
