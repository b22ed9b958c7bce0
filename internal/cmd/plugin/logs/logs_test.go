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
	"bytes"
	"context"
	"os"
	"path/filepath"

	corev1 "k8s.io/api/core/v1"
	metav1 "k8s.io/apimachinery/pkg/apis/meta/v1"
	"k8s.io/client-go/kubernetes/fake"

	apiv1 "github.com/kubeship/kubeship/api/v1"
	"github.com/kubeship/kubeship/pkg/specs"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
)

var _ = Describe("deployment logs", func() {
	request := &apiv1.RolloutRequest{
		Deployment: apiv1.Deployment{ID: 42, Name: "webshop", Namespace: "shop"},
		Version:    apiv1.Version{DeploymentID: 42, Version: 2},
	}

	newPod := func(name string, version int) *corev1.Pod {
		return &corev1.Pod{
			ObjectMeta: metav1.ObjectMeta{
				Namespace: "shop",
				Name:      name,
				Labels: specs.VersionSelector(request.Deployment,
					apiv1.Version{DeploymentID: 42, Version: version}),
			},
			Status: corev1.PodStatus{
				ContainerStatuses: []corev1.ContainerStatus{{
					Name:  "web",
					State: corev1.ContainerState{Running: &corev1.ContainerStateRunning{}},
				}},
			},
		}
	}

	It("builds the log options", func() {
		writer := getDeploymentWriter(nil, request, logsOptions{timestamp: true, tailLines: 10})
		Expect(writer.Version).ToNot(BeNil())
		Expect(writer.Options.Timestamps).To(BeTrue())
		Expect(*writer.Options.TailLines).To(BeEquivalentTo(10))

		writer = getDeploymentWriter(nil, request, logsOptions{tailLines: -1, allVersions: true})
		Expect(writer.Version).To(BeNil())
		Expect(writer.Options.TailLines).To(BeNil())
	})

	It("writes the logs of the requested version", func(ctx context.Context) {
		client := fake.NewClientset(newPod("webshop-v1-a", 1), newPod("webshop-v2-a", 2))
		var stdout bytes.Buffer

		Expect(saveDeploymentLogs(ctx, client, request, logsOptions{tailLines: -1}, &stdout)).To(Succeed())
		Expect(stdout.String()).To(Equal("[webshop-v2-a/web] fake logs\n"))
	})

	It("writes the logs of every version to a file", func(ctx context.Context) {
		client := fake.NewClientset(newPod("webshop-v1-a", 1), newPod("webshop-v2-a", 2))
		outputFile := filepath.Join(GinkgoT().TempDir(), "webshop.log")
		var stdout bytes.Buffer

		Expect(saveDeploymentLogs(ctx, client, request, logsOptions{
			tailLines:   -1,
			allVersions: true,
			outputFile:  outputFile,
		}, &stdout)).To(Succeed())
		Expect(stdout.String()).To(ContainSubstring("Successfully written logs"))

		content, err := os.ReadFile(outputFile)
		Expect(err).ToNot(HaveOccurred())
		Expect(string(content)).To(ContainSubstring("[webshop-v1-a/web] fake logs"))
		Expect(string(content)).To(ContainSubstring("[webshop-v2-a/web] fake logs"))
	})
})
