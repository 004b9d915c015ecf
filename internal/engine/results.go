package engine

import (
	"errors"

	"github.com/seantiz/qdevice/internal/histogram"
	"github.com/seantiz/qdevice/internal/model"
)

// GetResults reads one view of a Done job's results into dst and returns
// the size the view needs; a nil dst is a size query. The histogram keys are
// comma-separated bitstrings ending in a NUL, the values are 8-byte counts
// in the same order. Raw returns the executor response as a string.
func (e *Engine) GetResults(j *Job, kind model.ResultKind, dst []byte) (int, error) {
	if j == nil {
		return 0, invalidf("nil job")
	}
	if !kind.Valid() {
		return 0, invalidf("unknown result kind %d", int32(kind))
	}
	if err := checkDst(dst); err != nil {
		return 0, err
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	if j.freed {
		return 0, invalidf("job %d was freed", j.id)
	}
	if j.status != model.JobDone {
		return 0, invalidf("job %d is %s, results need done", j.id, j.status)
	}

	var (
		n   int
		err error
	)
	switch kind {
	case model.ResultHistKeys:
		n, err = j.results.ReadKeys(dst)
	case model.ResultHistValues:
		n, err = j.results.ReadValues(dst)
	case model.ResultRaw:
		return putString(dst, j.raw)
	default:
		return 0, notSupportedf("result kind %d", int32(kind))
	}
	if errors.Is(err, histogram.ErrShortBuffer) {
		return n, invalidf("%v", err)
	}
	return n, err
}

// Histogram returns the results of a Done job.
func (e *Engine) Histogram(j *Job) (*histogram.Histogram, error) {
	if j == nil {
		return nil, invalidf("nil job")
	}
	e.mu.Lock()
	defer e.mu.Unlock()

	if j.freed {
		return nil, invalidf("job %d was freed", j.id)
	}
	if j.status != model.JobDone {
		return nil, invalidf("job %d is %s, results need done", j.id, j.status)
	}
	return j.results, nil
}
