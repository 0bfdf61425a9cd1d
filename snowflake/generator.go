package snowflake

import (
	"fmt"
	"sync"
	"time"

	"github.com/goliatone/go-errors"
)

// Bit layout of a generated id: 41 bits of milliseconds since the epoch,
// 5 bits worker id, 5 bits process id, 12 bits sequence.
const (
	SequenceBits  = 12
	ProcessIDBits = 5
	WorkerIDBits  = 5

	ProcessShift   = SequenceBits
	WorkerShift    = SequenceBits + ProcessIDBits
	TimestampShift = SequenceBits + ProcessIDBits + WorkerIDBits

	MaxSequence  int64 = 1<<SequenceBits - 1
	MaxProcessID int64 = 1<<ProcessIDBits - 1
	MaxWorkerID  int64 = 1<<WorkerIDBits - 1
)

// DefaultEpoch is 2015-01-01T00:00:00Z in Unix milliseconds, the epoch of
// the platform ids stored next to generated ones.
const DefaultEpoch int64 = 1420070400000

// Text codes attached to generator errors.
const (
	TextCodeWorkerIDOutOfRange  = "WORKER_ID_OUT_OF_RANGE"
	TextCodeProcessIDOutOfRange = "PROCESS_ID_OUT_OF_RANGE"
	TextCodeClockMovedBackwards = "CLOCK_MOVED_BACKWARDS"
)

// Clock returns the current wall-clock time in milliseconds.
type Clock func() int64

// SystemClock reads time.Now in Unix milliseconds.
func SystemClock() int64 {
	return time.Now().UnixMilli()
}

// Option configures a Generator.
type Option func(*Generator)

// WithClock replaces the wall clock. Used by tests to drive time explicitly.
func WithClock(clock Clock) Option {
	return func(g *Generator) {
		if clock != nil {
			g.now = clock
		}
	}
}

// Generator issues unique, time ordered 64-bit ids.
//
// All mutable state is owned by the generator and only touched while mu is
// held; NextID is the only way to advance it.
type Generator struct {
	mu            sync.Mutex
	lastTimestamp int64
	sequence      int64

	epoch     int64
	workerID  int64
	processID int64
	now       Clock
}

// New creates a generator for the given epoch (Unix milliseconds) and
// worker/process pair. Both ids must be in [0, 31].
func New(epochMillis, workerID, processID int64, opts ...Option) (*Generator, error) {
	if workerID < 0 || workerID > MaxWorkerID {
		return nil, errors.New(
			fmt.Sprintf("worker id must be between 0 and %d, got %d", MaxWorkerID, workerID),
			errors.CategoryValidation,
		).WithTextCode(TextCodeWorkerIDOutOfRange)
	}

	if processID < 0 || processID > MaxProcessID {
		return nil, errors.New(
			fmt.Sprintf("process id must be between 0 and %d, got %d", MaxProcessID, processID),
			errors.CategoryValidation,
		).WithTextCode(TextCodeProcessIDOutOfRange)
	}

	g := &Generator{
		lastTimestamp: -1,
		epoch:         epochMillis,
		workerID:      workerID,
		processID:     processID,
		now:           SystemClock,
	}

	for _, opt := range opts {
		opt(g)
	}

	return g, nil
}

// MustNew is like New but panics on invalid configuration.
func MustNew(epochMillis, workerID, processID int64, opts ...Option) *Generator {
	g, err := New(epochMillis, workerID, processID, opts...)
	if err != nil {
		panic(err)
	}
	return g
}

// NextID returns the next id. It fails when the clock moved backwards since
// the previous call; callers must not retry blindly as that risks duplicates.
func (g *Generator) NextID() (int64, error) {
	g.mu.Lock()
	defer g.mu.Unlock()

	timestamp := g.now()
	if timestamp < g.lastTimestamp {
		return 0, errors.New(
			fmt.Sprintf("clock moved backwards, refusing to generate id for %d milliseconds", g.lastTimestamp-timestamp),
			errors.CategoryInternal,
		).WithTextCode(TextCodeClockMovedBackwards).
			WithSeverity(errors.SeverityCritical).
			WithMetadata(map[string]any{
				"last_timestamp": g.lastTimestamp,
				"timestamp":      timestamp,
			})
	}

	if timestamp == g.lastTimestamp {
		g.sequence = (g.sequence + 1) & MaxSequence
		if g.sequence == 0 {
			timestamp = g.awaitNextMilli(g.lastTimestamp)
		}
	} else {
		g.sequence = 0
	}

	g.lastTimestamp = timestamp

	return (timestamp-g.epoch)<<TimestampShift |
		g.workerID<<WorkerShift |
		g.processID<<ProcessShift |
		g.sequence, nil
}

// awaitNextMilli spins until the clock passes last.
func (g *Generator) awaitNextMilli(last int64) int64 {
	timestamp := g.now()
	for timestamp <= last {
		timestamp = g.now()
	}
	return timestamp
}

// WorkerID returns the configured worker id.
func (g *Generator) WorkerID() int64 { return g.workerID }

// ProcessID returns the configured process id.
func (g *Generator) ProcessID() int64 { return g.processID }

// Epoch returns the configured epoch in Unix milliseconds.
func (g *Generator) Epoch() int64 { return g.epoch }

// Parts is an id split into its components.
type Parts struct {
	Timestamp int64
	WorkerID  int64
	ProcessID int64
	Sequence  int64
}

// Decompose splits id back into its components. Timestamp is absolute
// (epoch added back).
func Decompose(id, epochMillis int64) Parts {
	return Parts{
		Timestamp: id>>TimestampShift + epochMillis,
		WorkerID:  id >> WorkerShift & MaxWorkerID,
		ProcessID: id >> ProcessShift & MaxProcessID,
		Sequence:  id & MaxSequence,
	}
}

// Time returns the creation time encoded in p.
func (p Parts) Time() time.Time {
	return time.UnixMilli(p.Timestamp)
}
