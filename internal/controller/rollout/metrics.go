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

package rollout

import (
	"github.com/prometheus/client_golang/prometheus"
	"sigs.k8s.io/controller-runtime/pkg/metrics"
)

var (
	// RolloutsStartedTotal counts the rollouts which entered the Running phase
	RolloutsStartedTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "kubeship_rollouts_started_total",
			Help: "Total number of rollouts started",
		},
		[]string{"namespace"},
	)

	// RolloutsFinishedTotal counts the rollouts which reached a terminal phase
	RolloutsFinishedTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "kubeship_rollouts_finished_total",
			Help: "Total number of rollouts finished, by phase",
		},
		[]string{"namespace", "phase"},
	)

	// ConvergerStepsTotal counts the iterations of the migration steps
	ConvergerStepsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "kubeship_converger_steps_total",
			Help: "Total number of migration step iterations, by outcome",
		},
		[]string{"namespace", "phase"},
	)

	// ActiveUpdaters is the number of rollouts whose background task is
	// running
	ActiveUpdaters = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "kubeship_active_updaters",
			Help: "Number of rollouts currently running",
		},
	)
)

func init() {
	metrics.Registry.MustRegister(
		RolloutsStartedTotal,
		RolloutsFinishedTotal,
		ConvergerStepsTotal,
		ActiveUpdaters,
	)
}

func recordRolloutStarted(namespace string) {
	RolloutsStartedTotal.WithLabelValues(namespace).Inc()
}

func recordRolloutFinished(namespace string, phase Phase) {
	RolloutsFinishedTotal.WithLabelValues(namespace, string(phase)).Inc()
}

func recordConvergerStep(namespace string, phase UpdatePhase) {
	ConvergerStepsTotal.WithLabelValues(namespace, string(phase)).Inc()
}
