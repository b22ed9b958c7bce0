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

// Package workerpool contains the process-wide pool running the long-lived
// background tasks of the rollout engine. Each submitted task runs on its
// own goroutine and is controlled through a Handle, which can be used to
// cancel the task or to check whether it terminated
package workerpool

import (
	"context"
	"errors"
	"fmt"
	"runtime/debug"
	"sync"

	"github.com/cloudnative-pg/machinery/pkg/log"
)

// ErrPoolClosed is returned when submitting a task to a pool which has
// been shut down
var ErrPoolClosed = errors.New("the worker pool has been shut down")

// Task is a unit of work run by the pool. The passed context is cancelled
// when the task handle is cancelled or when the pool shuts down
type Task func(ctx context.Context)

// Pool runs tasks in background. It is safe to use concurrently
type Pool struct {
	name string

	// The root context of every task
	ctx    context.Context
	cancel context.CancelFunc

	m       sync.Mutex
	closed  bool
	handles map[string]*Handle
	wg      sync.WaitGroup
}

var (
	sharedPool     *Pool
	sharedPoolOnce sync.Once
)

// Shared returns the process-wide pool
func Shared() *Pool {
	sharedPoolOnce.Do(func() {
		sharedPool = New("shared")
	})
	return sharedPool
}

// New creates a new worker pool
func New(name string) *Pool {
	ctx, cancel := context.WithCancel(context.Background())
	return &Pool{
		name:    name,
		ctx:     ctx,
		cancel:  cancel,
		handles: make(map[string]*Handle),
	}
}

// Submit schedules the execution of a task. The task does not inherit the
// cancellation of the passed context, only its logger: the caller is
// expected to use the returned Handle to control the task
func (p *Pool) Submit(ctx context.Context, name string, task Task) (*Handle, error) {
	p.m.Lock()
	defer p.m.Unlock()

	if p.closed {
		return nil, ErrPoolClosed
	}

	handle := newHandle(name)
	contextLogger := log.FromContext(ctx).WithValues("pool", p.name, "task", name, "taskId", handle.id)
	taskCtx, cancel := context.WithCancel(log.IntoContext(p.ctx, contextLogger))
	handle.cancel = cancel

	p.handles[handle.id] = handle
	p.wg.Add(1)
	recordSubmitted(p.name)

	go p.run(taskCtx, handle, task)

	return handle, nil
}

func (p *Pool) run(ctx context.Context, handle *Handle, task Task) {
	contextLogger := log.FromContext(ctx)

	recordStarted(p.name)
	defer func() {
		if r := recover(); r != nil {
			recordPanic(p.name)
			handle.setPanic(r)
			contextLogger.Error(fmt.Errorf("%v", r), "Background task panicked",
				"stack", string(debug.Stack()))
		}

		recordFinished(p.name)
		handle.cancel()
		handle.done.Broadcast()

		p.m.Lock()
		delete(p.handles, handle.id)
		p.m.Unlock()
		p.wg.Done()
	}()

	contextLogger.Debug("Background task started")
	task(ctx)
	contextLogger.Debug("Background task terminated")
}

// Len is the number of tasks which are still running
func (p *Pool) Len() int {
	p.m.Lock()
	defer p.m.Unlock()
	return len(p.handles)
}

// Shutdown cancels every running task, refuses new ones and waits for the
// running tasks to terminate or for the passed context to be done
func (p *Pool) Shutdown(ctx context.Context) error {
	p.m.Lock()
	p.closed = true
	p.m.Unlock()

	p.cancel()

	terminated := make(chan struct{})
	go func() {
		p.wg.Wait()
		close(terminated)
	}()

	select {
	case <-terminated:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
