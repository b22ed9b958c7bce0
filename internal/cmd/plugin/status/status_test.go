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
	"fmt"

	"github.com/logrusorgru/aurora/v4"
	corev1 "k8s.io/api/core/v1"
	metav1 "k8s.io/apimachinery/pkg/apis/meta/v1"
	"sigs.k8s.io/controller-runtime/pkg/client"
	"sigs.k8s.io/controller-runtime/pkg/client/fake"

	apiv1 "github.com/kubeship/kubeship/api/v1"
	"github.com/kubeship/kubeship/internal/cmd/plugin"
	"github.com/kubeship/kubeship/internal/scheme"
	"github.com/kubeship/kubeship/pkg/specs"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
)

var _ = Describe("deployment status", func() {
	var (
		deployment apiv1.Deployment
		request    *apiv1.RolloutRequest
	)

	versionOf := func(number int) apiv1.Version {
		return apiv1.Version{
			Version:    number,
			Containers: []apiv1.ContainerDraft{{Image: fmt.Sprintf("nginx:1.%d", number)}},
		}
	}

	podsOf := func(number int, ready ...bool) []client.Object {
		result := make([]client.Object, 0, len(ready))
		for idx, isReady := range ready {
			status := corev1.ConditionFalse
			if isReady {
				status = corev1.ConditionTrue
			}
			result = append(result, &corev1.Pod{
				ObjectMeta: metav1.ObjectMeta{
					Name:      fmt.Sprintf("webshop-v%d-%d", number, idx),
					Namespace: "shop",
					Labels:    specs.VersionSelector(deployment, versionOf(number)),
				},
				Status: corev1.PodStatus{
					Phase:      corev1.PodRunning,
					Conditions: []corev1.PodCondition{{Type: corev1.PodReady, Status: status}},
				},
			})
		}
		return result
	}

	newClient := func(objects ...client.Object) client.Client {
		kubeScheme, err := scheme.New()
		Expect(err).ToNot(HaveOccurred())
		return fake.NewClientBuilder().WithScheme(kubeScheme).WithObjects(objects...).Build()
	}

	replicaSetOf := func(number int, replicas int32) client.Object {
		replicaSet, err := specs.ReplicaSet(deployment, versionOf(number), nil, nil, replicas)
		Expect(err).ToNot(HaveOccurred())
		return replicaSet
	}

	BeforeEach(func() {
		previous := aurora.DefaultColorizer
		aurora.DefaultColorizer = aurora.New(aurora.WithColors(false))
		DeferCleanup(func() { aurora.DefaultColorizer = previous })

		deployment = apiv1.Deployment{ID: 42, Name: "webshop", Namespace: "shop"}
		request = &apiv1.RolloutRequest{Deployment: deployment, Version: versionOf(2)}
	})

	It("reports a version with every pod ready", func(ctx SpecContext) {
		objects := []client.Object{replicaSetOf(1, 0), replicaSetOf(2, 2)}
		objects = append(objects, podsOf(2, true, true)...)

		status, err := extractDeploymentStatus(ctx, newClient(objects...), request)
		Expect(err).ToNot(HaveOccurred())
		Expect(status.Ready).To(BeTrue())
		Expect(status.ReplicaSets).To(HaveLen(2))
		Expect(status.ReplicaSets[1]).To(Equal(ReplicaSetStatus{
			Name:        "webshop-v2",
			Version:     "2",
			Desired:     2,
			Ready:       2,
			Total:       2,
			Destination: true,
		}))
	})

	It("reports a version still rolling out", func(ctx SpecContext) {
		objects := []client.Object{replicaSetOf(1, 1), replicaSetOf(2, 2)}
		objects = append(objects, podsOf(1, true)...)
		objects = append(objects, podsOf(2, true, false)...)

		var buffer bytes.Buffer
		Expect(Status(ctx, newClient(objects...), request, plugin.OutputFormatText, &buffer)).To(Succeed())
		Expect(buffer.String()).To(MatchRegexp(`webshop-v1\s+1\s+1\s+1\s+1`))
		Expect(buffer.String()).To(MatchRegexp(`webshop-v2\s+2 \(requested\)\s+2\s+1\s+2`))
		Expect(buffer.String()).To(ContainSubstring("Version 2 is not ready"))
	})

	It("reports a version which was never deployed", func(ctx SpecContext) {
		var buffer bytes.Buffer
		Expect(Status(ctx, newClient(replicaSetOf(1, 3)), request, plugin.OutputFormatYAML, &buffer)).
			To(Succeed())
		Expect(buffer.String()).To(ContainSubstring("ready: false"))
		Expect(buffer.String()).To(ContainSubstring("name: webshop-v1"))
	})
})
