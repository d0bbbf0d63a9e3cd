package record

import (
	"strings"
	"testing"

	"github.com/spxiwh/pegasus/internal/identity"
)

func TestValid(t *testing.T) {
	t.Parallel()

	cases := []struct {
		name string
		line string
		want bool
	}{
		{"timestamped", "ts=1472660000 pid=1234 utime=0.1", true},
		{"bare marker", "ts=", true},
		{"missing marker", "pid=1234 ts=1472660000", false},
		{"empty", "", false},
		{"whitespace prefix", " ts=1472660000", false},
	}

	for _, tc := range cases {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			if got := Valid(tc.line); got != tc.want {
				t.Fatalf("Valid(%q) = %v, want %v", tc.line, got, tc.want)
			}
		})
	}
}

func TestEnrich_AppendsSixTokensInOrder(t *testing.T) {
	t.Parallel()

	id := identity.Identity{
		WorkflowUUID:   "uuid-1",
		WorkflowLabel:  "label-1",
		DAGJobID:       "dag-1",
		SchedulerJobID: "sched-1",
		Transformation: "xform-1",
		TaskID:         "task-1",
	}
	line := "ts=1472660000 pid=1234 utime=0.1"

	got := Enrich(line, id)

	if !strings.HasPrefix(got, line+" ") {
		t.Fatalf("Enrich() = %q, want the original line verbatim as prefix", got)
	}
	suffix := strings.TrimPrefix(got, line+" ")
	want := "wf_uuid=uuid-1 wf_label=label-1 dag_job_id=dag-1 condor_job_id=sched-1 xformation=xform-1 task_id=task-1"
	if suffix != want {
		t.Fatalf("Enrich() appended %q, want %q", suffix, want)
	}
}

func TestEnrich_AbsentOptionalFieldsAreEmpty(t *testing.T) {
	t.Parallel()

	id := identity.Identity{
		WorkflowUUID:   "uuid-1",
		WorkflowLabel:  "label-1",
		DAGJobID:       "dag-1",
		SchedulerJobID: "sched-1",
	}

	got := Enrich("ts=1", id)

	if !strings.HasSuffix(got, "xformation= task_id=") {
		t.Fatalf("Enrich() = %q, want empty optional values, not a NULL placeholder", got)
	}
	if strings.Contains(got, "NULL") {
		t.Fatalf("Enrich() = %q, leaked a NULL placeholder", got)
	}
}
