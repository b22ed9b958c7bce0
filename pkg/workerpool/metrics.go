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

package workerpool

import (
	"github.com/prometheus/client_golang/prometheus"
	"sigs.k8s.io/controller-runtime/pkg/metrics"
)

var (
	// TasksSubmittedTotal is a counter of the tasks submitted to a pool
	TasksSubmittedTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "kubeship_workerpool_tasks_submitted_total",
			Help: "Total number of tasks submitted to the worker pool",
		},
		[]string{"pool"},
	)

	// TasksRunning is a gauge of the tasks currently running in a pool
	TasksRunning = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "kubeship_workerpool_tasks_running",
			Help: "Number of tasks currently running in the worker pool",
		},
		[]string{"pool"},
	)

	// TasksPanickedTotal is a counter of the tasks terminated by a panic
	TasksPanickedTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "kubeship_workerpool_tasks_panicked_total",
			Help: "Total number of tasks of the worker pool terminated by a panic",
		},
		[]string{"pool"},
	)
)

func init() {
	metrics.Registry.MustRegister(
		TasksSubmittedTotal,
		TasksRunning,
		TasksPanickedTotal,
	)
}

func recordSubmitted(pool string) {
	TasksSubmittedTotal.WithLabelValues(pool).Inc()
}

func recordStarted(pool string) {
	TasksRunning.WithLabelValues(pool).Inc()
}

func recordFinished(pool string) {
	TasksRunning.WithLabelValues(pool).Dec()
}

func recordPanic(pool string) {
	TasksPanickedTotal.WithLabelValues(pool).Inc()
}
