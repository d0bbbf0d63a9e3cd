package identity

import (
	"fmt"

	"github.com/spf13/viper"
)

// Environment keys the relay consumes. The launcher process sets these
// before the relay starts; the broker pair is provisioned out of band.
const (
	EnvEndpointURL         = "MON_ENDPOINT_URL"
	EnvEndpointCredentials = "MON_ENDPOINT_CREDENTIALS"
	EnvWorkflowUUID        = "WF_UUID"
	EnvWorkflowLabel       = "WF_LABEL"
	EnvDAGJobID            = "DAG_JOB_ID"
	EnvSchedulerJobID      = "SCHEDULER_JOB_ID"
	EnvTransformation      = "XFORMATION"
	EnvTaskID              = "TASK_ID"
)

// Identity carries the broker endpoint and the workflow/job identity
// stamped onto every record. It is immutable after Collect.
type Identity struct {
	BrokerURL   string
	Credentials string // "user:password", passed through opaquely

	WorkflowUUID   string
	WorkflowLabel  string
	DAGJobID       string
	SchedulerJobID string

	// Optional. Empty means the field is absent and renders as an
	// empty value in enriched records.
	Transformation string
	TaskID         string
}

// Collect reads identity from the environment. Any missing required
// key fails collection with an error naming the key; the relay must
// not start partially configured.
func Collect() (Identity, error) {
	v := viper.New()
	for _, key := range []string{
		EnvEndpointURL,
		EnvEndpointCredentials,
		EnvWorkflowUUID,
		EnvWorkflowLabel,
		EnvDAGJobID,
		EnvSchedulerJobID,
		EnvTransformation,
		EnvTaskID,
	} {
		if err := v.BindEnv(key); err != nil {
			return Identity{}, fmt.Errorf("identity: bind %s: %w", key, err)
		}
	}

	var id Identity
	var err error
	if id.BrokerURL, err = required(v, EnvEndpointURL); err != nil {
		return Identity{}, err
	}
	if id.Credentials, err = required(v, EnvEndpointCredentials); err != nil {
		return Identity{}, err
	}
	if id.WorkflowUUID, err = required(v, EnvWorkflowUUID); err != nil {
		return Identity{}, err
	}
	if id.WorkflowLabel, err = required(v, EnvWorkflowLabel); err != nil {
		return Identity{}, err
	}
	if id.DAGJobID, err = required(v, EnvDAGJobID); err != nil {
		return Identity{}, err
	}
	if id.SchedulerJobID, err = required(v, EnvSchedulerJobID); err != nil {
		return Identity{}, err
	}
	id.Transformation = v.GetString(EnvTransformation)
	id.TaskID = v.GetString(EnvTaskID)

	return id, nil
}

func required(v *viper.Viper, key string) (string, error) {
	val := v.GetString(key)
	if val == "" {
		return "", fmt.Errorf("identity: %s not set", key)
	}
	return val, nil
}
