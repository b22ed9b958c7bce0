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

// Package podlogs contains code to fetch logs from the pods of a deployment
package podlogs

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"sync"
	"time"

	"github.com/cloudnative-pg/machinery/pkg/log"
	corev1 "k8s.io/api/core/v1"
	metav1 "k8s.io/apimachinery/pkg/apis/meta/v1"
	"k8s.io/apimachinery/pkg/labels"
	"k8s.io/client-go/kubernetes"

	apiv1 "github.com/kubeship/kubeship/api/v1"
	"github.com/kubeship/kubeship/pkg/specs"
)

// DefaultFollowWaiting is the default time the deployment streaming should
// wait before searching again for new pods
const DefaultFollowWaiting time.Duration = 1 * time.Second

// DeploymentWriter represents a request to stream the logs of the pods
// of a deployment, or of one of its versions when Version is set.
//
// If the Follow Option is set to true, streaming will sit in a loop looking
// for any new / regenerated pods and will only exit when the context
// is cancelled
type DeploymentWriter struct {
	Deployment    apiv1.Deployment
	Version       *apiv1.Version
	Options       *corev1.PodLogOptions
	FollowWaiting time.Duration
	Client        kubernetes.Interface
}

func (dw *DeploymentWriter) getSelector() string {
	if dw.Version != nil {
		return labels.SelectorFromSet(specs.VersionSelector(dw.Deployment, *dw.Version)).String()
	}
	return labels.SelectorFromSet(specs.DeploymentSelector(dw.Deployment)).String()
}

func (dw *DeploymentWriter) getLogOptions(containerName string) *corev1.PodLogOptions {
	if dw.Options == nil {
		return &corev1.PodLogOptions{
			Container: containerName,
		}
	}
	options := dw.Options.DeepCopy()
	options.Container = containerName
	return options
}

func (dw *DeploymentWriter) isFollowing() bool {
	return dw.Options != nil && dw.Options.Follow
}

func (dw *DeploymentWriter) getFollowWaitingTime() time.Duration {
	if dw.FollowWaiting > 0 {
		return dw.FollowWaiting
	}
	return DefaultFollowWaiting
}

// safeWriter is an io.Writer that is safe for concurrent use. It guarantees
// that only one goroutine gets to write to the underlying writer at any given
// time
type safeWriter struct {
	m      sync.Mutex
	Writer io.Writer
}

func (w *safeWriter) Write(b []byte) (n int, err error) {
	w.m.Lock()
	defer w.m.Unlock()
	return w.Writer.Write(b)
}

// activeSet is a goroutine-safe store of active streams. It is similar
// in idea to a WaitGroup, but does not block when we check for zero, and it
// also keeps a name for each active stream to avoid duplication
type activeSet struct {
	m   sync.Mutex
	wg  sync.WaitGroup
	set map[string]bool
}

func newActiveSet() *activeSet {
	return &activeSet{
		set: make(map[string]bool),
	}
}

// add name as an active stream
func (as *activeSet) add(name string) {
	as.wg.Add(1)
	as.m.Lock()
	defer as.m.Unlock()
	as.set[name] = true
}

func (as *activeSet) has(name string) bool {
	as.m.Lock()
	defer as.m.Unlock()
	return as.set[name]
}

func (as *activeSet) drop(name string) {
	as.m.Lock()
	delete(as.set, name)
	as.m.Unlock()
	as.wg.Done()
}

func (as *activeSet) isZero() bool {
	as.m.Lock()
	defer as.m.Unlock()
	return len(as.set) == 0
}

// wait blocks until there are no active streams
func (as *activeSet) wait() {
	as.wg.Wait()
}

// SingleStream streams the logs of the deployment pods and shunts them to a
// single io.Writer. Every line is prefixed by the pod and the container
// it comes from
func (dw *DeploymentWriter) SingleStream(ctx context.Context, writer io.Writer) error {
	contextLogger := log.FromContext(ctx)
	pods := dw.Client.CoreV1().Pods(dw.Deployment.Namespace)
	streamSet := newActiveSet()
	wrappedWriter := &safeWriter{Writer: writer}

	for {
		podList, err := pods.List(ctx, metav1.ListOptions{LabelSelector: dw.getSelector()})
		if err != nil {
			return err
		}
		if len(podList.Items) == 0 && streamSet.isZero() && !dw.isFollowing() {
			contextLogger.Info("No pods to log", "namespace", dw.Deployment.Namespace, "selector", dw.getSelector())
			return nil
		}

		for _, pod := range podList.Items {
			for _, container := range pod.Status.ContainerStatuses {
				if container.State.Running == nil {
					continue
				}

				streamName := fmt.Sprintf("%s/%s", pod.Name, container.Name)
				if streamSet.has(streamName) {
					continue
				}

				streamSet.add(streamName)
				go dw.streamInGoroutine(ctx, pod.Name, container.Name, streamSet, wrappedWriter)
			}
		}

		if !dw.isFollowing() {
			streamSet.wait()
			return nil
		}

		select {
		case <-ctx.Done():
			streamSet.wait()
			return ctx.Err()
		case <-time.After(dw.getFollowWaitingTime()):
		}
	}
}

// streamInGoroutine streams the logs of a container to a writer. It is
// designed to be called as a goroutine.
//
// IMPORTANT: the output writer should be goroutine-safe
func (dw *DeploymentWriter) streamInGoroutine(
	ctx context.Context,
	podName string,
	containerName string,
	streamSet *activeSet,
	output io.Writer,
) {
	streamName := fmt.Sprintf("%s/%s", podName, containerName)
	contextLogger := log.FromContext(ctx).WithValues("stream", streamName)
	defer streamSet.drop(streamName)

	logsRequest := dw.Client.CoreV1().Pods(dw.Deployment.Namespace).GetLogs(
		podName,
		dw.getLogOptions(containerName))

	logStream, err := logsRequest.Stream(ctx)
	if err != nil {
		contextLogger.Warning("Error on streaming request", "error", err)
		return
	}
	defer func() {
		if err := logStream.Close(); err != nil {
			contextLogger.Warning("Error closing streaming request", "error", err)
		}
	}()

	scanner := bufio.NewScanner(logStream)
	scanner.Buffer(make([]byte, 0, 4096), 1024*1024)
	prefix := "[" + streamName + "] "

	for scanner.Scan() {
		if ctx.Err() != nil {
			return
		}
		if _, err := io.WriteString(output, prefix+scanner.Text()+"\n"); err != nil {
			contextLogger.Warning("Error writing log line to output", "error", err)
			return
		}
	}
}
