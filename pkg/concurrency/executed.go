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

// Package concurrency contains small synchronization helpers
package concurrency

import "sync"

// Executed records that something happened once, letting any number of
// goroutines wait for it. Waiting after the execution returns immediately
type Executed struct {
	once sync.Once
	done chan struct{}
}

// NewExecuted creates a new Executed
func NewExecuted() *Executed {
	return &Executed{
		done: make(chan struct{}),
	}
}

// Wait waits for execution
func (i *Executed) Wait() {
	<-i.done
}

// Done is closed on execution
func (i *Executed) Done() <-chan struct{} {
	return i.done
}

// IsDone checks, without blocking, whether the execution already happened
func (i *Executed) IsDone() bool {
	select {
	case <-i.done:
		return true
	default:
		return false
	}
}

// Broadcast broadcasts execution to waiting goroutines. Only the first
// call has effect
func (i *Executed) Broadcast() {
	i.once.Do(func() {
		close(i.done)
	})
}
