package guard

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	guard_data "github.com/veritid/identity-guard/pkg/data"
	"github.com/veritid/identity-guard/pkg/data/attempt"
	"github.com/veritid/identity-guard/pkg/metrics"
	"github.com/veritid/identity-guard/pkg/retry"
	"github.com/veritid/identity-guard/pkg/retry/backoff"
)

const (
	defaultRecorderBufferSize = 1024

	recorderWriteTimeout = 5 * time.Second
)

// Recorder writes attempt records to the ledger asynchronously. Callers
// fire and forget, a write failure is never propagated as a request
// failure. When the buffer is full the newest record is dropped, losing
// an audit entry is preferable to blocking a decision.
type Recorder struct {
	log  *logrus.Entry
	data guard_data.Provider

	ch        chan *attempt.Record
	done      chan struct{}
	wg        sync.WaitGroup
	dropped   atomic.Uint64
	closed    atomic.Bool
	closeOnce sync.Once
}

func NewRecorder(data guard_data.Provider) *Recorder {
	return NewRecorderWithBufferSize(data, defaultRecorderBufferSize)
}

func NewRecorderWithBufferSize(data guard_data.Provider, bufferSize int) *Recorder {
	if bufferSize <= 0 {
		bufferSize = 1
	}

	r := &Recorder{
		log:  logrus.StandardLogger().WithField("type", "guard/recorder"),
		data: data,
		ch:   make(chan *attempt.Record, bufferSize),
		done: make(chan struct{}),
	}

	r.wg.Add(1)
	go r.run()

	return r
}

func (r *Recorder) run() {
	defer r.wg.Done()

	for {
		select {
		case record := <-r.ch:
			r.write(record)
		case <-r.done:
			for {
				select {
				case record := <-r.ch:
					r.write(record)
				default:
					return
				}
			}
		}
	}
}

func (r *Recorder) write(record *attempt.Record) {
	ctx, cancel := context.WithTimeout(context.Background(), recorderWriteTimeout)
	defer cancel()

	_, err := retry.Retry(
		func() error {
			return r.data.PutAttemptRecord(ctx, record)
		},
		retry.Limit(3),
		retry.Backoff(backoff.BinaryExponential(100*time.Millisecond), time.Second),
	)
	if err != nil {
		r.log.WithError(err).Warn("failure writing attempt record")
	}
}

// Record enqueues an attempt record for a ledger write.
func (r *Recorder) Record(ctx context.Context, record *attempt.Record) {
	if r == nil || r.closed.Load() {
		return
	}

	if len(record.Id) == 0 {
		record.Id = uuid.New().String()
	}

	if err := record.Validate(); err != nil {
		r.log.WithError(err).Warn("dropping invalid attempt record")
		return
	}

	select {
	case r.ch <- record:
	case <-r.done:
	default:
		r.dropped.Add(1)
		metrics.RecordCount(ctx, attemptRecordDroppedMetricName, 1)
	}
}

// Dropped returns the number of records lost to a full buffer.
func (r *Recorder) Dropped() uint64 {
	if r == nil {
		return 0
	}
	return r.dropped.Load()
}

// Close drains the buffer and stops the recorder.
func (r *Recorder) Close() {
	if r == nil {
		return
	}
	r.closeOnce.Do(func() {
		r.closed.Store(true)
		close(r.done)
		r.wg.Wait()
	})
}
