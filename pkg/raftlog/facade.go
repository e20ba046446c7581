package raftlog

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sync/atomic"

	"github.com/cuemby/raftstore/pkg/log"
	"github.com/cuemby/raftstore/pkg/metrics"
	"github.com/cuemby/raftstore/pkg/searchdb"
	"github.com/rs/zerolog"
	bolt "go.etcd.io/bbolt"
)

// IndexedRequest pairs a committed log index with the request that was
// committed at it, as used by ReplicateToStateMachine's bulk-apply path.
type IndexedRequest struct {
	Index   uint64
	Request ClientRequest
}

// Facade is the storage backend's single entry point: it composes the Log
// Store and Consensus Metadata Store (one shared bbolt environment) with
// the Snapshot Engine and the State Machine Adapter (a hot-swappable
// pkg/searchdb.Engine).
type Facade struct {
	nodeID      string
	dataDir     string
	snapshotDir string

	env *bolt.DB

	engine         atomic.Pointer[searchdb.Engine]
	nextSnapshotID atomic.Uint64

	logger zerolog.Logger
}

// Open opens (creating if necessary) a storage directory at dataDir for
// node nodeID. The directory layout matches spec.md §6: a bbolt
// environment for the log/metadata, a "snapshots" subdirectory, and a
// "db" subdirectory owned by the embedded search engine.
func Open(dataDir, nodeID string) (*Facade, error) {
	if err := os.MkdirAll(dataDir, 0755); err != nil {
		return nil, wrapErr(IO, err)
	}
	snapshotDir := filepath.Join(dataDir, "snapshots")
	if err := os.MkdirAll(snapshotDir, 0755); err != nil {
		return nil, wrapErr(IO, err)
	}

	env, err := bolt.Open(filepath.Join(dataDir, "raft.db"), 0600, nil)
	if err != nil {
		return nil, wrapErr(IO, err)
	}
	err = env.Update(func(tx *bolt.Tx) error {
		if _, err := tx.CreateBucketIfNotExists(bucketLogs); err != nil {
			return err
		}
		_, err := tx.CreateBucketIfNotExists(bucketMeta)
		return err
	})
	if err != nil {
		_ = env.Close()
		return nil, wrapErr(TransactionFailure, err)
	}

	enginePath := filepath.Join(dataDir, "db")
	eng, err := searchdb.Open(enginePath)
	if err != nil {
		_ = env.Close()
		return nil, wrapErr(IO, err)
	}

	f := &Facade{
		nodeID:      nodeID,
		dataDir:     dataDir,
		snapshotDir: snapshotDir,
		env:         env,
		logger:      log.WithComponent("raftlog.facade"),
	}
	f.engine.Store(eng)
	return f, nil
}

// Close releases the facade's resources. Callers must ensure no other
// goroutine is using the facade.
func (f *Facade) Close() error {
	if err := f.stateMachine().Close(); err != nil {
		return err
	}
	return f.env.Close()
}

func (f *Facade) stateMachine() *searchdb.Engine {
	return f.engine.Load()
}

// State reports whether this node still needs bootstrapping.
func (f *Facade) State() (NodeState, error) {
	m, err := f.GetMembershipConfig(context.Background())
	if err != nil {
		return "", err
	}
	if len(m.Members) <= 1 {
		return NodeUninitialized, nil
	}
	return NodeInitialized, nil
}

// GetMembershipConfig returns the active membership, defaulting to the
// single-node initial configuration if none has been persisted yet.
func (f *Facade) GetMembershipConfig(_ context.Context) (Membership, error) {
	var m Membership
	err := f.env.View(func(tx *bolt.Tx) error {
		existing, err := getMembership(tx)
		if err != nil {
			return err
		}
		if existing != nil {
			m = *existing
		} else {
			m = InitialMembership(f.nodeID)
		}
		return nil
	})
	return m, err
}

// GetInitialState performs the one-shot bootstrap read a consensus
// runtime does on startup. If no hard state has ever been persisted, a
// fresh one is synthesized, persisted, and returned.
func (f *Facade) GetInitialState(_ context.Context) (InitialState, error) {
	var state InitialState
	err := f.env.Update(func(tx *bolt.Tx) error {
		membership, err := getMembership(tx)
		if err != nil {
			return err
		}
		m := InitialMembership(f.nodeID)
		if membership != nil {
			m = *membership
		}

		hs, err := getHardState(tx)
		if err != nil {
			return err
		}
		if hs == nil {
			fresh := HardState{}
			if err := setHardState(tx, fresh); err != nil {
				return err
			}
			state = InitialState{HardState: fresh, Membership: m}
			return nil
		}

		last, err := lastLogEntry(tx)
		if err != nil {
			return err
		}
		var lastIndex, lastTerm uint64
		if last != nil {
			lastIndex, lastTerm = last.Index, last.Term
		}
		state = InitialState{
			LastLogIndex: lastIndex,
			LastLogTerm:  lastTerm,
			LastApplied:  getLastApplied(tx),
			HardState:    *hs,
			Membership:   m,
		}
		return nil
	})
	return state, err
}

// SaveHardState overwrites the persisted hard state.
func (f *Facade) SaveHardState(_ context.Context, hs HardState) error {
	return f.env.Update(func(tx *bolt.Tx) error {
		return setHardState(tx, hs)
	})
}

// GetLogEntries returns entries in [start, stop] inclusive; if start ==
// stop it returns the single entry (or none if missing).
func (f *Facade) GetLogEntries(_ context.Context, start, stop uint64) ([]Entry, error) {
	var entries []Entry
	err := f.env.View(func(tx *bolt.Tx) error {
		if start == stop {
			e, err := getLogEntry(tx, start)
			if err != nil {
				return err
			}
			if e != nil {
				entries = []Entry{*e}
			}
			return nil
		}
		var err error
		entries, err = rangeLogEntries(tx, start, stop)
		return err
	})
	return entries, err
}

// DeleteLogsFrom performs conflict-truncation: deletes [start, stop) when
// stop is given, else [start, +inf).
func (f *Facade) DeleteLogsFrom(_ context.Context, start uint64, stop *uint64) error {
	return f.env.Update(func(tx *bolt.Tx) error {
		return deleteLogsFrom(tx, start, stop)
	})
}

// AppendEntryToLog appends a single entry. If its payload is a
// ConfigChange, the Membership slot is updated atomically in the same
// transaction.
func (f *Facade) AppendEntryToLog(_ context.Context, entry Entry) error {
	return f.env.Update(func(tx *bolt.Tx) error {
		return putLogEntryAndMembership(tx, entry)
	})
}

// ReplicateToLog batch-appends entries with the same ConfigChange
// side-effect rule as AppendEntryToLog, committing once.
func (f *Facade) ReplicateToLog(_ context.Context, entries []Entry) error {
	return f.env.Update(func(tx *bolt.Tx) error {
		for _, e := range entries {
			if err := putLogEntryAndMembership(tx, e); err != nil {
				return err
			}
		}
		return nil
	})
}

func putLogEntryAndMembership(tx *bolt.Tx, entry Entry) error {
	if entry.Payload.Kind == PayloadConfigChange && entry.Payload.Membership != nil {
		if err := setMembership(tx, *entry.Payload.Membership); err != nil {
			return err
		}
	}
	return appendLogEntry(tx, entry)
}

// ApplyEntryToStateMachine applies the command committed at index exactly
// once, advances last-applied, and commits. Entries already covered by
// last-applied are not reapplied; this is the idempotence guard described
// in spec.md §4.3.
func (f *Facade) ApplyEntryToStateMachine(_ context.Context, index uint64, req ClientRequest) (Response, error) {
	timer := metrics.NewTimer()
	defer timer.ObserveDuration(metrics.ApplyDuration)

	f.nextSnapshotID.Store(req.Serial)

	engine := f.stateMachine()
	engine.Acquire()
	defer engine.Release()

	var skip bool
	var resp Response
	err := f.env.Update(func(tx *bolt.Tx) error {
		if index <= getLastApplied(tx) {
			skip = true
			return nil
		}
		var err error
		resp, err = applyCommand(engine, req.Message)
		if err != nil {
			return err
		}
		return setLastApplied(tx, index)
	})
	if err != nil {
		return Response{}, err
	}
	if skip {
		metrics.ApplySkippedTotal.Inc()
		f.logger.Warn().Uint64("index", index).Msg("skipping already-applied entry")
		return Response{}, nil
	}
	return resp, nil
}

// ReplicateToStateMachine bulk-applies a batch of committed entries;
// last-applied advances to the final index in the batch and the
// transaction commits once.
func (f *Facade) ReplicateToStateMachine(_ context.Context, entries []IndexedRequest) error {
	if len(entries) == 0 {
		return nil
	}
	engine := f.stateMachine()
	engine.Acquire()
	defer engine.Release()

	return f.env.Update(func(tx *bolt.Tx) error {
		lastApplied := getLastApplied(tx)
		for _, ir := range entries {
			if ir.Index <= lastApplied {
				continue
			}
			if _, err := applyCommand(engine, ir.Request.Message); err != nil {
				return err
			}
			lastApplied = ir.Index
			f.nextSnapshotID.Store(ir.Request.Serial)
		}
		return setLastApplied(tx, lastApplied)
	})
}

// Stats is a point-in-time snapshot of the facade's size, used by this
// package's Collector.
type Stats struct {
	LogLength    uint64
	LastLogIndex uint64
	LastApplied  uint64
}

// Stats reports the current log length, last log index, and last-applied
// index.
func (f *Facade) Stats(_ context.Context) (Stats, error) {
	var s Stats
	err := f.env.View(func(tx *bolt.Tx) error {
		first, ok := firstLogIndex(tx)
		last, err := lastLogEntry(tx)
		if err != nil {
			return err
		}
		if last != nil {
			s.LastLogIndex = last.Index
			if ok {
				s.LogLength = last.Index - first + 1
			}
		}
		s.LastApplied = getLastApplied(tx)
		return nil
	})
	return s, err
}

// Engine exposes the live search engine handle, for callers (the metrics
// collector, tests) that need direct access beyond the Facade's own
// operation set.
func (f *Facade) Engine() *searchdb.Engine {
	return f.stateMachine()
}

// GetCurrentSnapshot reads the Snapshot Descriptor and opens its file, or
// returns nil if no snapshot has ever been taken or installed.
func (f *Facade) GetCurrentSnapshot(_ context.Context) (*CurrentSnapshot, error) {
	var sd *SnapshotDescriptor
	err := f.env.View(func(tx *bolt.Tx) error {
		var err error
		sd, err = getSnapshotDescriptor(tx)
		return err
	})
	if err != nil {
		return nil, err
	}
	if sd == nil {
		return nil, nil
	}
	if _, err := os.Stat(sd.Path); err != nil {
		return nil, wrapErr(IO, fmt.Errorf("snapshot file missing: %w", err))
	}
	return &CurrentSnapshot{Index: sd.Index, Term: sd.Term, Membership: sd.Membership, Path: sd.Path}, nil
}
