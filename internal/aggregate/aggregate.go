// Package aggregate buffers enriched monitoring records into bounded
// batches for forwarding.
package aggregate

import "strings"

// Delimiter terminates every record in a batch's wire text. The
// downstream consumer splits on it, so each record carries a
// trailing delimiter, including the last.
const Delimiter = ":delim1:"

// Batch is an ordered group of records forwarded in one send call.
type Batch struct {
	records []string
}

// Len returns the number of records in the batch.
func (b Batch) Len() int { return len(b.records) }

// Records returns the batch contents in arrival order.
func (b Batch) Records() []string { return b.records }

// Text renders the wire form: every record followed by the delimiter.
func (b Batch) Text() string {
	if len(b.records) == 0 {
		return ""
	}
	var sb strings.Builder
	for _, r := range b.records {
		sb.WriteString(r)
		sb.WriteString(Delimiter)
	}
	return sb.String()
}

// Buffer accumulates records until the aggregation factor is reached.
// It is not goroutine-safe: only the single relay loop may call it.
// Any caller adding concurrency must add its own locking.
type Buffer struct {
	factor  int
	records []string
}

// NewBuffer creates a buffer that fills at the given aggregation
// factor. A factor below 1 is coerced to 1.
func NewBuffer(factor int) *Buffer {
	if factor < 1 {
		factor = 1
	}
	return &Buffer{
		factor:  factor,
		records: make([]string, 0, factor),
	}
}

// Append adds one record. When the buffered count reaches the
// aggregation factor, the full batch is returned and the buffer
// resets to empty.
func (a *Buffer) Append(rec string) (Batch, bool) {
	a.records = append(a.records, rec)
	if len(a.records) < a.factor {
		return Batch{}, false
	}
	return a.take(), true
}

// Drain returns the buffered records as a final, possibly undersized
// batch. It reports false when nothing is buffered. Called only while
// the relay loop is shutting down.
func (a *Buffer) Drain() (Batch, bool) {
	if len(a.records) == 0 {
		return Batch{}, false
	}
	return a.take(), true
}

// Len returns the number of buffered records.
func (a *Buffer) Len() int { return len(a.records) }

func (a *Buffer) take() Batch {
	batch := Batch{records: a.records}
	a.records = make([]string, 0, a.factor)
	return batch
}
