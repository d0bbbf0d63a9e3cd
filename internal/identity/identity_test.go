package identity

import (
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"
)

func setFullEnv(t *testing.T) {
	t.Helper()
	t.Setenv(EnvEndpointURL, "https://broker.example.org:15671/api/exchanges/prod/monitoring/publish")
	t.Setenv(EnvEndpointCredentials, "monitor:hunter2")
	t.Setenv(EnvWorkflowUUID, "6f37a2a5-9ba2-41f4-8f1a-2f1f0b5f3c1d")
	t.Setenv(EnvWorkflowLabel, "montage")
	t.Setenv(EnvDAGJobID, "mProject_ID0000001")
	t.Setenv(EnvSchedulerJobID, "1234.0")
	t.Setenv(EnvTransformation, "mProject:3.3")
	t.Setenv(EnvTaskID, "ID0000001")
}

func TestCollect_AllKeys(t *testing.T) {
	setFullEnv(t)

	got, err := Collect()
	if err != nil {
		t.Fatalf("Collect() error = %v", err)
	}

	want := Identity{
		BrokerURL:      "https://broker.example.org:15671/api/exchanges/prod/monitoring/publish",
		Credentials:    "monitor:hunter2",
		WorkflowUUID:   "6f37a2a5-9ba2-41f4-8f1a-2f1f0b5f3c1d",
		WorkflowLabel:  "montage",
		DAGJobID:       "mProject_ID0000001",
		SchedulerJobID: "1234.0",
		Transformation: "mProject:3.3",
		TaskID:         "ID0000001",
	}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Fatalf("Collect() mismatch (-want +got):\n%s", diff)
	}
}

func TestCollect_OptionalKeysDefaultEmpty(t *testing.T) {
	setFullEnv(t)
	t.Setenv(EnvTransformation, "")
	t.Setenv(EnvTaskID, "")

	got, err := Collect()
	if err != nil {
		t.Fatalf("Collect() error = %v", err)
	}
	if got.Transformation != "" || got.TaskID != "" {
		t.Fatalf("optional fields = (%q, %q), want empty", got.Transformation, got.TaskID)
	}
}

func TestCollect_MissingRequiredKeyNamesKey(t *testing.T) {
	requiredKeys := []string{
		EnvEndpointURL,
		EnvEndpointCredentials,
		EnvWorkflowUUID,
		EnvWorkflowLabel,
		EnvDAGJobID,
		EnvSchedulerJobID,
	}

	for _, missing := range requiredKeys {
		t.Run(missing, func(t *testing.T) {
			setFullEnv(t)
			t.Setenv(missing, "")

			_, err := Collect()
			if err == nil {
				t.Fatalf("Collect() succeeded with %s unset", missing)
			}
			if !strings.Contains(err.Error(), missing) {
				t.Fatalf("Collect() error = %q, want it to name %s", err, missing)
			}
		})
	}
}
