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

// Package configuration contains the configuration of the rollout engine,
// reading it from environment variables and from the ConfigMap data
package configuration

import (
	"os"
	"strings"
	"time"

	"github.com/cloudnative-pg/machinery/pkg/log"

	"github.com/kubeship/kubeship/pkg/configparser"
)

var configurationLog = log.WithName("configuration")

const (
	// DefaultPullSecretPrefix is the default prefix of the pull secrets
	// created in the deployment namespaces
	DefaultPullSecretPrefix = "kubeship-registry-" // #nosec

	// DefaultReadinessPollInterval is the default number of seconds between
	// two readiness checks of the destination replica set
	DefaultReadinessPollInterval = 1

	// DefaultReadinessTimeoutPerReplica is the default number of seconds
	// granted to every expected replica to become ready
	DefaultReadinessTimeoutPerReplica = 5 * 60

	// DefaultCheckStatusTimeout is the default number of seconds the
	// synchronous status check waits for the replicas
	DefaultCheckStatusTimeout = 5 * 60
)

// Data is the struct containing the configuration of the rollout engine.
// Usually the engine code will use the "Current" configuration.
type Data struct {
	// PullSecretPrefix is the prefix of the name of the image pull secret
	// created in the namespace of a deployment using an internal registry
	PullSecretPrefix string `json:"pullSecretPrefix" env:"PULL_SECRET_PREFIX"`

	// InternalRegistries is the list of registry hosts belonging to the
	// platform. Images coming from them need a pull secret
	InternalRegistries []string `json:"internalRegistries" env:"INTERNAL_REGISTRIES"`

	// RegistryCredentialsFile is the path of the dockerconfigjson payload
	// used to build the pull secrets
	RegistryCredentialsFile string `json:"registryCredentialsFile" env:"REGISTRY_CREDENTIALS_FILE"`

	// ReadinessPollInterval is the number of seconds between two
	// readiness checks of the destination replica set
	ReadinessPollInterval int `json:"readinessPollInterval" env:"READINESS_POLL_INTERVAL"`

	// ReadinessTimeoutPerReplica is the number of seconds every expected
	// replica adds to the readiness budget
	ReadinessTimeoutPerReplica int `json:"readinessTimeoutPerReplica" env:"READINESS_TIMEOUT_PER_REPLICA"`

	// CheckStatusTimeout is the number of seconds the synchronous status
	// check waits before giving up
	CheckStatusTimeout int `json:"checkStatusTimeout" env:"CHECK_STATUS_TIMEOUT"`

	// DeploymentRolloutDelay is the number of seconds to wait between steps
	// of different deployments
	DeploymentRolloutDelay int `json:"deploymentRolloutDelay" env:"DEPLOYMENT_ROLLOUT_DELAY"`

	// StepRolloutDelay is the number of seconds to wait between
	// steps of the same deployment
	StepRolloutDelay int `json:"stepRolloutDelay" env:"STEP_ROLLOUT_DELAY"`
}

// Current is the configuration used by the engine
var Current = NewConfiguration()

// newDefaultConfig creates a configuration holding the defaults
func newDefaultConfig() *Data {
	return &Data{
		PullSecretPrefix:           DefaultPullSecretPrefix,
		ReadinessPollInterval:      DefaultReadinessPollInterval,
		ReadinessTimeoutPerReplica: DefaultReadinessTimeoutPerReplica,
		CheckStatusTimeout:         DefaultCheckStatusTimeout,
	}
}

// NewConfiguration creates a new configuration holding the defaults
// and the values coming from the environment
func NewConfiguration() *Data {
	configuration := newDefaultConfig()
	configuration.ReadConfigMap(nil)
	return configuration
}

// ReadConfigMap reads the configuration from the environment and the passed in data map
func (config *Data) ReadConfigMap(data map[string]string) {
	configparser.ReadConfigMap(config, newDefaultConfig(), data)
}

// GetReadinessPollInterval is the interval between two readiness checks
func (config *Data) GetReadinessPollInterval() time.Duration {
	return time.Duration(config.ReadinessPollInterval) * time.Second
}

// GetReadinessTimeoutPerReplica is the readiness budget of one replica
func (config *Data) GetReadinessTimeoutPerReplica() time.Duration {
	return time.Duration(config.ReadinessTimeoutPerReplica) * time.Second
}

// GetCheckStatusTimeout is how long the synchronous status check waits
func (config *Data) GetCheckStatusTimeout() time.Duration {
	return time.Duration(config.CheckStatusTimeout) * time.Second
}

// GetDeploymentRolloutDelay is the delay between steps of different deployments
func (config *Data) GetDeploymentRolloutDelay() time.Duration {
	return time.Duration(config.DeploymentRolloutDelay) * time.Second
}

// GetStepRolloutDelay is the delay between steps of the same deployment
func (config *Data) GetStepRolloutDelay() time.Duration {
	return time.Duration(config.StepRolloutDelay) * time.Second
}

// IsInternalRegistry checks if the passed registry host belongs to the
// platform
func (config *Data) IsInternalRegistry(registry string) bool {
	for _, internal := range config.InternalRegistries {
		if internal != "" && strings.EqualFold(internal, registry) {
			return true
		}
	}
	return false
}

// ReadRegistryCredentials loads the payload of the pull secrets. An empty
// result means that no credentials were configured
func (config *Data) ReadRegistryCredentials() ([]byte, error) {
	if config.RegistryCredentialsFile == "" {
		return nil, nil
	}

	payload, err := os.ReadFile(config.RegistryCredentialsFile)
	if err != nil {
		configurationLog.Error(err, "Cannot read the registry credentials",
			"file", config.RegistryCredentialsFile)
		return nil, err
	}
	return payload, nil
}
