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
	"context"
	"sync"

	"github.com/google/uuid"

	"github.com/kubeship/kubeship/pkg/concurrency"
)

// Handle controls one task submitted to the pool. A nil Handle is valid
// and represents a task which has never been scheduled
type Handle struct {
	id   string
	name string

	cancel context.CancelFunc
	done   *concurrency.Executed

	m          sync.Mutex
	cancelled  bool
	panicValue interface{}
}

func newHandle(name string) *Handle {
	return &Handle{
		id:   uuid.NewString(),
		name: name,
		done: concurrency.NewExecuted(),
	}
}

// ID is the unique identifier of the task
func (h *Handle) ID() string {
	if h == nil {
		return ""
	}
	return h.id
}

// Name is the name given to the task when it was submitted
func (h *Handle) Name() string {
	if h == nil {
		return ""
	}
	return h.name
}

// Cancel requests the task to terminate by cancelling its context. It is
// idempotent and does not wait for the task to terminate
func (h *Handle) Cancel() {
	if h == nil {
		return
	}

	h.m.Lock()
	h.cancelled = true
	h.m.Unlock()

	h.cancel()
}

// IsCancelled is true when Cancel has been called
func (h *Handle) IsCancelled() bool {
	if h == nil {
		return false
	}

	h.m.Lock()
	defer h.m.Unlock()
	return h.cancelled
}

// IsDone checks, without blocking, whether the task terminated. This
// includes a task terminated by a panic
func (h *Handle) IsDone() bool {
	if h == nil {
		return false
	}
	return h.done.IsDone()
}

// Wait blocks until the task terminates
func (h *Handle) Wait() {
	if h == nil {
		return
	}
	h.done.Wait()
}

// Panic returns the value the task panicked with, if any
func (h *Handle) Panic() interface{} {
	if h == nil {
		return nil
	}

	h.m.Lock()
	defer h.m.Unlock()
	return h.panicValue
}

func (h *Handle) setPanic(value interface{}) {
	h.m.Lock()
	defer h.m.Unlock()
	h.panicValue = value
}
