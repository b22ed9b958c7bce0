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

package v1

import (
	"k8s.io/apimachinery/pkg/util/validation/field"
	"k8s.io/utils/ptr"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
)

var _ = Describe("Rollout request validation", func() {
	var request *RolloutRequest

	BeforeEach(func() {
		request = &RolloutRequest{
			Deployment: Deployment{ID: 42, Name: "webshop", Namespace: "shop"},
			Version: Version{
				DeploymentID: 42,
				Version:      3,
				Containers:   []ContainerDraft{{Image: "nginx:1.27"}},
			},
			LoadBalancers: []LoadBalancer{{Name: "webshop-http", Port: 80}},
		}
	})

	It("accepts a complete request", func() {
		Expect(request.Validate()).To(BeEmpty())
	})

	It("requires a deployment name and namespace", func() {
		request.Deployment.Name = ""
		request.Deployment.Namespace = ""
		errs := request.Validate()
		Expect(errs).To(HaveLen(2))
		Expect(errs[0].Type).To(Equal(field.ErrorTypeRequired))
		Expect(errs[0].Field).To(Equal("deployment.name"))
	})

	It("refuses a deployment name which cannot prefix resource names", func() {
		request.Deployment.Name = "Web_Shop"
		Expect(request.Validate()).ToNot(BeEmpty())
	})

	It("refuses versions of another deployment", func() {
		request.Version.DeploymentID = 7
		errs := request.Validate()
		Expect(errs).To(HaveLen(1))
		Expect(errs[0].Field).To(Equal("version.deploymentId"))
	})

	It("requires a positive version with images", func() {
		request.Version.Version = 0
		request.Version.Containers = append(request.Version.Containers, ContainerDraft{Name: "sidecar"})
		errs := request.Validate()
		Expect(errs).To(HaveLen(2))
		Expect(errs[1].Field).To(Equal("version.containers[1].image"))
	})

	It("refuses duplicated container names", func() {
		request.Version.Containers = []ContainerDraft{
			{Name: "web", Image: "nginx"},
			{Image: "busybox"},
			{Name: "web", Image: "nginx"},
		}
		errs := request.Validate()
		Expect(errs).To(HaveLen(1))
		Expect(errs[0].Field).To(Equal("version.containers[2].name"))
	})

	It("refuses duplicated load balancers", func() {
		request.LoadBalancers = append(request.LoadBalancers, LoadBalancer{Name: "webshop-http", Port: 0})
		errs := request.Validate()
		Expect(errs).To(HaveLen(2))
		Expect(errs[0].Type).To(Equal(field.ErrorTypeDuplicate))
	})

	It("refuses a negative number of replicas", func() {
		request.Replicas = ptr.To[int32](-1)
		Expect(request.Validate()).To(HaveLen(1))
	})
})
