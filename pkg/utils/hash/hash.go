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

// Package hash computes a short, stable fingerprint of a Kubernetes object.
// It is used to detect whether a replica set adopted by a rollout was
// generated from the same pod template the engine would build today.
//
// The approach is the one used by the Kubernetes controllers:
//
// https://github.com/kubernetes/kubernetes/blob/ea07644/pkg/controller/controller_utils.go#L1189
package hash

import (
	"hash/fnv"
	"strconv"

	"github.com/davecgh/go-spew/spew"
	"k8s.io/apimachinery/pkg/util/rand"
)

// printer follows pointers and prints the values of the nested objects,
// so the hash does not change when only a pointer changes
var printer = spew.ConfigState{
	Indent:         " ",
	SortKeys:       true,
	DisableMethods: true,
	SpewKeys:       true,
}

// ComputeHash returns the fingerprint of an object, safe encoded to
// avoid bad words
func ComputeHash(object any) (string, error) {
	hasher := fnv.New32a()
	if _, err := printer.Fprintf(hasher, "%#v", object); err != nil {
		return "", err
	}

	return rand.SafeEncodeString(strconv.FormatUint(uint64(hasher.Sum32()), 10)), nil
}
