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
	corev1 "k8s.io/api/core/v1"
)

// PodStatus is the state of a pod as seen by the rollout engine
type PodStatus string

const (
	// PodHealthy means that a Pod is active and ready
	PodHealthy PodStatus = "healthy"

	// PodStarting means that a Pod is active but not ready yet
	PodStarting PodStatus = "starting"

	// PodTerminated means that a Pod will not run again, because it
	// completed, failed or is being deleted
	PodTerminated PodStatus = "terminated"
)

// PodCounts is the number of pods in every status
type PodCounts map[PodStatus]int

// Active is the number of pods which are not terminated
func (counts PodCounts) Active() int {
	return counts[PodHealthy] + counts[PodStarting]
}

// IsPodReady checks the Ready condition of a pod
func IsPodReady(pod corev1.Pod) bool {
	for _, c := range pod.Status.Conditions {
		if c.Type == corev1.PodReady {
			return c.Status == corev1.ConditionTrue
		}
	}

	return false
}

// IsPodActive is true when the pod is neither terminated nor terminating
func IsPodActive(pod corev1.Pod) bool {
	switch {
	case pod.DeletionTimestamp != nil:
		return false
	case pod.Status.Phase == corev1.PodSucceeded, pod.Status.Phase == corev1.PodFailed:
		return false
	default:
		return true
	}
}

// GetPodStatus classifies a pod. A terminating pod is never healthy,
// even if it still passes its readiness probe
func GetPodStatus(pod corev1.Pod) PodStatus {
	switch {
	case !IsPodActive(pod):
		return PodTerminated
	case IsPodReady(pod):
		return PodHealthy
	default:
		return PodStarting
	}
}

// FilterActivePods returns the pods that have not terminated
func FilterActivePods(pods []corev1.Pod) []corev1.Pod {
	result := make([]corev1.Pod, 0, len(pods))
	for idx := range pods {
		if IsPodActive(pods[idx]) {
			result = append(result, pods[idx])
		}
	}
	return result
}

// CountReadyPods counts the number of Pods which are ready
func CountReadyPods(pods []corev1.Pod) int {
	return CountPods(pods)[PodHealthy]
}

// CountPods counts the pods in every status
func CountPods(pods []corev1.Pod) PodCounts {
	counts := make(PodCounts, 3)
	for idx := range pods {
		counts[GetPodStatus(pods[idx])]++
	}
	return counts
}
