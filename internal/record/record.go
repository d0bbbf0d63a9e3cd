// Package record validates raw monitoring lines and stamps them with
// workflow identity.
package record

import (
	"fmt"
	"strings"

	"github.com/spxiwh/pegasus/internal/identity"
)

// TimestampMarker is the required prefix of every monitoring line.
// Anything else is malformed and dropped before enrichment.
const TimestampMarker = "ts="

// Valid reports whether line is a well-formed monitoring record.
func Valid(line string) bool {
	return strings.HasPrefix(line, TimestampMarker)
}

// Enrich appends the six identity tokens to a validated line. The
// original line is preserved verbatim as the prefix; absent optional
// fields render as empty values. The key names and their order are
// fixed by the downstream consumer.
func Enrich(line string, id identity.Identity) string {
	return fmt.Sprintf("%s wf_uuid=%s wf_label=%s dag_job_id=%s condor_job_id=%s xformation=%s task_id=%s",
		line,
		id.WorkflowUUID,
		id.WorkflowLabel,
		id.DAGJobID,
		id.SchedulerJobID,
		id.Transformation,
		id.TaskID,
	)
}
