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

package deploy

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/avast/retry-go/v4"
	"github.com/cloudnative-pg/machinery/pkg/log"
	"sigs.k8s.io/controller-runtime/pkg/client"

	apiv1 "github.com/kubeship/kubeship/api/v1"
	"github.com/kubeship/kubeship/internal/controller/rollout"
)

// statusPollInterval is the interval between two readings of the status
// of the rollout
const statusPollInterval = 500 * time.Millisecond

var errRolloutRunning = errors.New("rollout still running")

type statusReader interface {
	Status() rollout.Status
}

// Deploy executes a rollout request and waits for it to complete. When the
// context is cancelled or the timeout expires the rollout is stopped
func Deploy(
	ctx context.Context,
	cli client.Client,
	request *apiv1.RolloutRequest,
	timeout time.Duration,
	opts ...rollout.Option,
) (rollout.Status, error) {
	contextLogger := log.FromContext(ctx).WithValues(
		"deployment", request.Deployment.Name,
		"namespace", request.Deployment.Namespace,
	)

	updater := rollout.NewUpdaterFromRequest(cli, request, opts...)
	if err := updater.Start(log.IntoContext(ctx, contextLogger)); err != nil {
		return updater.Status(), err
	}

	waitCtx := ctx
	if timeout > 0 {
		var cancel context.CancelFunc
		waitCtx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}

	status, err := waitForCompletion(waitCtx, updater, statusPollInterval)
	if err != nil {
		contextLogger.Info("Stopping the rollout", "reason", err.Error())
		updater.Stop()
		return updater.Status(), err
	}

	if status.Phase != rollout.PhaseSucceeded {
		return status, fmt.Errorf("rollout %s: %s", status.Phase, status.Reason)
	}
	return status, nil
}

// waitForCompletion polls the status of a rollout until it reaches a
// terminal phase or the context is done
func waitForCompletion(
	ctx context.Context,
	updater statusReader,
	interval time.Duration,
) (rollout.Status, error) {
	err := retry.Do(
		func() error {
			if !updater.Status().Phase.IsTerminal() {
				return errRolloutRunning
			}
			return nil
		},
		retry.Context(ctx),
		retry.Attempts(0),
		retry.Delay(interval),
		retry.DelayType(retry.FixedDelay),
		retry.LastErrorOnly(true),
		retry.RetryIf(func(err error) bool { return errors.Is(err, errRolloutRunning) }),
	)
	if err != nil && ctx.Err() != nil {
		err = ctx.Err()
	}
	return updater.Status(), err
}
