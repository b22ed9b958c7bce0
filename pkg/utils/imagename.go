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
	"regexp"
	"strings"
)

var (
	digestRegex = regexp.MustCompile(`@sha256:(?P<sha256>[a-fA-F0-9]+)$`)
	tagRegex    = regexp.MustCompile(`:(?P<tag>[^/]+)$`)
	hostRegex   = regexp.MustCompile(`^[^./:]+((\.[^./:]+)+(:[0-9]+)?|:[0-9]+)/`)
)

// DefaultRegistry is the registry used when an image name does not
// contain one
const DefaultRegistry = "docker.io"

// Reference is a parsed container image name
type Reference struct {
	Name   string
	Tag    string
	Digest string
}

// Registry returns the registry host of the reference, including the port
func (r *Reference) Registry() string {
	registry, _, found := strings.Cut(r.Name, "/")
	if !found {
		return DefaultRegistry
	}
	return registry
}

// NewReference parses the image name and returns an error if the name is invalid.
func NewReference(name string) *Reference {
	reference := &Reference{}

	if !strings.Contains(name, "/") {
		name = DefaultRegistry + "/library/" + name
	} else if !hostRegex.MatchString(name) {
		name = DefaultRegistry + "/" + name
	}

	if digestRegex.MatchString(name) {
		res := digestRegex.FindStringSubmatch(name)
		reference.Digest = res[1] // digest capture group index
		name = strings.TrimSuffix(name, res[0])
	}

	if tagRegex.MatchString(name) {
		res := tagRegex.FindStringSubmatch(name)
		reference.Tag = res[1] // tag capture group index
		name = strings.TrimSuffix(name, res[0])
	} else if reference.Digest == "" {
		reference.Tag = "latest"
	}

	// everything else is the name
	reference.Name = name

	return reference
}

// GetImageRegistry gets the registry host from a full image string.
// Example:
//
//	GetImageRegistry("nginx") == "docker.io"
//	GetImageRegistry("registry.local:5000/team/web:1.2") == "registry.local:5000"
func GetImageRegistry(imageName string) string {
	return NewReference(imageName).Registry()
}
