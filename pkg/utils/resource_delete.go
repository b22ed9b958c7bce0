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
	"context"

	apierrs "k8s.io/apimachinery/pkg/api/errors"
	"sigs.k8s.io/controller-runtime/pkg/client"
)

// DeleteIfExists removes an object from the API server. If the object
// doesn't exist, the error is skipped
func DeleteIfExists(ctx context.Context, cli client.Client, object client.Object, opts ...client.DeleteOption) error {
	err := cli.Delete(ctx, object, opts...)
	if apierrs.IsNotFound(err) {
		return nil
	}
	return err
}
