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

package rollout

import (
	"context"
	"fmt"
	"math"
	"time"

	"github.com/cloudnative-pg/machinery/pkg/log"
	appsv1 "k8s.io/api/apps/v1"
	corev1 "k8s.io/api/core/v1"
	apierrs "k8s.io/apimachinery/pkg/api/errors"
	"k8s.io/client-go/util/retry"
	"k8s.io/utils/ptr"
	"sigs.k8s.io/controller-runtime/pkg/client"

	apiv1 "github.com/kubeship/kubeship/api/v1"
	"github.com/kubeship/kubeship/internal/configuration"
	"github.com/kubeship/kubeship/pkg/specs"
	"github.com/kubeship/kubeship/pkg/utils"
)

// listReplicaSets lists the replica sets in the namespace of the
// deployment matching the passed labels
func listReplicaSets(
	ctx context.Context,
	cli client.Client,
	namespace string,
	selector map[string]string,
) ([]appsv1.ReplicaSet, error) {
	var replicaSetList appsv1.ReplicaSetList
	if err := cli.List(
		ctx,
		&replicaSetList,
		client.InNamespace(namespace),
		client.MatchingLabels(selector),
	); err != nil {
		return nil, fmt.Errorf("while listing replica sets: %w", err)
	}
	return replicaSetList.Items, nil
}

// selectSourceReplicaSet chooses, between the replica sets of a
// deployment, the one with the highest version which still has replicas.
// The replica sets running the destination version are never chosen.
// A nil replica set is returned when nothing is left to migrate
func selectSourceReplicaSet(items []appsv1.ReplicaSet, destinationVersion int) (*appsv1.ReplicaSet, error) {
	var selected *appsv1.ReplicaSet
	selectedVersion := 0
	seenVersions := make(map[int]string, len(items))

	for idx := range items {
		item := &items[idx]
		if utils.GetDesiredReplicas(item) == 0 {
			continue
		}

		version, err := utils.ReplicaSetVersion(item)
		if err != nil {
			return nil, err
		}
		if version == destinationVersion {
			continue
		}

		if name, found := seenVersions[version]; found {
			return nil, fmt.Errorf("%w: %s and %s have version %d",
				ErrDuplicateSourceVersion, name, item.Name, version)
		}
		seenVersions[version] = item.Name

		if selected == nil || version > selectedVersion {
			selected = item
			selectedVersion = version
		}
	}

	return selected, nil
}

// scaleReplicaSet changes the desired number of replicas of a replica
// set, retrying on conflicts with other writers
func scaleReplicaSet(
	ctx context.Context,
	cli client.Client,
	key client.ObjectKey,
	replicas int32,
) (*appsv1.ReplicaSet, error) {
	var replicaSet appsv1.ReplicaSet
	err := retry.RetryOnConflict(retry.DefaultBackoff, func() error {
		if err := cli.Get(ctx, key, &replicaSet); err != nil {
			return err
		}
		if utils.GetDesiredReplicas(&replicaSet) == replicas {
			return nil
		}
		replicaSet.Spec.Replicas = ptr.To(replicas)
		return cli.Update(ctx, &replicaSet)
	})
	if err != nil {
		return nil, fmt.Errorf("while scaling replica set %s to %d: %w", key.Name, replicas, err)
	}

	log.FromContext(ctx).Debug("Replica set scaled",
		"replicaSet", key.Name,
		"replicas", replicas)
	return &replicaSet, nil
}

// listReplicaSetPods lists the active pods selected by a replica set
func listReplicaSetPods(
	ctx context.Context,
	cli client.Client,
	replicaSet *appsv1.ReplicaSet,
) ([]corev1.Pod, error) {
	var podList corev1.PodList
	if err := cli.List(
		ctx,
		&podList,
		client.InNamespace(replicaSet.Namespace),
		client.MatchingLabels(utils.GetPodSelectorLabels(replicaSet)),
	); err != nil {
		return nil, fmt.Errorf("while listing pods of replica set %s: %w", replicaSet.Name, err)
	}
	return utils.FilterActivePods(podList.Items), nil
}

// countReplicaSetPods returns the number of ready pods and the number of
// active pods of a replica set
func countReplicaSetPods(
	ctx context.Context,
	cli client.Client,
	key client.ObjectKey,
) (ready int, total int, err error) {
	var replicaSet appsv1.ReplicaSet
	if err := cli.Get(ctx, key, &replicaSet); err != nil {
		return 0, 0, err
	}

	pods, err := listReplicaSetPods(ctx, cli, &replicaSet)
	if err != nil {
		return 0, 0, err
	}
	return utils.CountReadyPods(pods), len(pods), nil
}

// deleteReplicaSet deletes a replica set together with its pods. Objects
// which are already gone are ignored
func deleteReplicaSet(ctx context.Context, cli client.Client, replicaSet *appsv1.ReplicaSet) error {
	contextLogger := log.FromContext(ctx)

	pods, err := listReplicaSetPods(ctx, cli, replicaSet)
	if err != nil {
		return err
	}

	if err := utils.DeleteIfExists(ctx, cli, replicaSet); err != nil {
		return fmt.Errorf("while deleting replica set %s: %w", replicaSet.Name, err)
	}
	contextLogger.Info("Deleted replica set", "replicaSet", replicaSet.Name)

	for idx := range pods {
		if err := utils.DeleteIfExists(ctx, cli, &pods[idx]); err != nil {
			return fmt.Errorf("while deleting pod %s: %w", pods[idx].Name, err)
		}
		contextLogger.Debug("Deleted pod", "pod", pods[idx].Name)
	}

	return nil
}

// isTemplateOutdated is true when a replica set was built from a pod
// template different from the expected one. Replica sets missing the
// hash annotation were not created by kubeship and are never outdated
func isTemplateOutdated(current, expected *appsv1.ReplicaSet) bool {
	currentHash, ok := current.Annotations[utils.SpecHashAnnotationName]
	if !ok {
		return false
	}
	return currentHash != expected.Annotations[utils.SpecHashAnnotationName]
}

// ensurePullSecret creates the image pull secret of the namespace of the
// deployment when the version needs it and it does not exist yet
func ensurePullSecret(
	ctx context.Context,
	cli client.Client,
	deployment apiv1.Deployment,
	version apiv1.Version,
) error {
	contextLogger := log.FromContext(ctx)

	if !specs.NeedsPullSecret(version) {
		return nil
	}

	name := specs.PullSecretName(deployment.Namespace)
	var secret corev1.Secret
	err := cli.Get(ctx, client.ObjectKey{Namespace: deployment.Namespace, Name: name}, &secret)
	if err == nil {
		return nil
	}
	if !apierrs.IsNotFound(err) {
		return fmt.Errorf("while getting pull secret %s: %w", name, err)
	}

	payload, err := configuration.Current.ReadRegistryCredentials()
	if err != nil {
		return err
	}
	if len(payload) == 0 {
		contextLogger.Warning("No registry credentials configured, skipping pull secret creation",
			"secret", name)
		return nil
	}

	err = cli.Create(ctx, specs.PullSecret(name, deployment.Namespace, payload))
	if err != nil && !apierrs.IsAlreadyExists(err) {
		return fmt.Errorf("while creating pull secret %s: %w", name, err)
	}

	contextLogger.Info("Created pull secret", "secret", name)
	return nil
}

// ensureLoadBalancers creates the missing services exposing a deployment
func ensureLoadBalancers(
	ctx context.Context,
	cli client.Client,
	deployment apiv1.Deployment,
	loadBalancers []apiv1.LoadBalancer,
) error {
	for _, lb := range loadBalancers {
		service := specs.LoadBalancerService(deployment, lb)

		var existing corev1.Service
		err := cli.Get(ctx, client.ObjectKeyFromObject(service), &existing)
		if err == nil {
			continue
		}
		if !apierrs.IsNotFound(err) {
			return fmt.Errorf("while getting service %s: %w", service.Name, err)
		}

		if err := cli.Create(ctx, service); err != nil && !apierrs.IsAlreadyExists(err) {
			return fmt.Errorf("while creating service %s: %w", service.Name, err)
		}
		log.FromContext(ctx).Info("Created load balancer service", "service", service.Name)
	}
	return nil
}

// readinessTimeout is the time allowed to a replica set to have every
// expected pod ready, saturating at the longest representable duration
func readinessTimeout(expected int32, perReplica time.Duration) time.Duration {
	replicas := time.Duration(max(expected, 1))
	if perReplica > 0 && replicas > math.MaxInt64/perReplica {
		return math.MaxInt64
	}
	return replicas * perReplica
}

// waitReplicaSetReady polls the pods of a replica set until the number of
// ready pods and the number of active pods both equal the expected
// replicas. The sleep between two polls is not interrupted by the
// context, which is only passed along to the API calls
func waitReplicaSetReady(
	ctx context.Context,
	cli client.Client,
	key client.ObjectKey,
	expected int32,
	pollInterval time.Duration,
	timeout time.Duration,
) error {
	contextLogger := log.FromContext(ctx).WithValues("replicaSet", key.Name)
	deadline := time.Now().Add(timeout)

	for {
		ready, total, err := countReplicaSetPods(ctx, cli, key)
		if err != nil {
			return fmt.Errorf("while checking pods of replica set %s: %w", key.Name, err)
		}
		if ready == int(expected) && total == int(expected) {
			return nil
		}

		contextLogger.Trace("Waiting for pods to be ready",
			"ready", ready,
			"total", total,
			"expected", expected)

		if !time.Now().Before(deadline) {
			return fmt.Errorf("%w: replica set %s has %d/%d ready pods after %s",
				ErrTimeout, key.Name, ready, expected, timeout)
		}
		time.Sleep(pollInterval)
	}
}
