package raftlog

import (
	"context"
	"encoding/binary"
	"encoding/json"
	"fmt"
	"io"
	"net"
	"os"
	"path/filepath"
	"sort"
	"time"

	"github.com/cuemby/raftstore/pkg/searchdb"
	"github.com/hashicorp/raft"
	bolt "go.etcd.io/bbolt"
)

// This file adapts Facade to the three interfaces github.com/hashicorp/raft
// expects a storage backend to satisfy (raft.LogStore, raft.StableStore,
// raft.SnapshotStore), plus an raft.FSM wrapper. Facade's own methods
// (GetLogEntries, AppendEntryToLog, ApplyEntryToStateMachine, ...) remain
// the primary API this package exposes; this shim exists so a real
// *raft.Raft can be driven by the same storage underneath it, exercising
// the same log and metadata buckets through a different front door.

func stableKey(key []byte) []byte {
	return append([]byte("raftstable:"), key...)
}

// Set implements raft.StableStore.
func (f *Facade) Set(key, val []byte) error {
	return f.env.Update(func(tx *bolt.Tx) error {
		return wrapErr(TransactionFailure, tx.Bucket(bucketMeta).Put(stableKey(key), val))
	})
}

// Get implements raft.StableStore.
func (f *Facade) Get(key []byte) ([]byte, error) {
	var out []byte
	err := f.env.View(func(tx *bolt.Tx) error {
		if v := tx.Bucket(bucketMeta).Get(stableKey(key)); v != nil {
			out = append([]byte(nil), v...)
		}
		return nil
	})
	return out, err
}

// SetUint64 implements raft.StableStore.
func (f *Facade) SetUint64(key []byte, val uint64) error {
	buf := make([]byte, 8)
	binary.BigEndian.PutUint64(buf, val)
	return f.Set(key, buf)
}

// GetUint64 implements raft.StableStore.
func (f *Facade) GetUint64(key []byte) (uint64, error) {
	v, err := f.Get(key)
	if err != nil || len(v) != 8 {
		return 0, err
	}
	return binary.BigEndian.Uint64(v), nil
}

// FirstIndex implements raft.LogStore.
func (f *Facade) FirstIndex() (uint64, error) {
	var idx uint64
	err := f.env.View(func(tx *bolt.Tx) error {
		if i, ok := firstLogIndex(tx); ok {
			idx = i
		}
		return nil
	})
	return idx, err
}

// LastIndex implements raft.LogStore.
func (f *Facade) LastIndex() (uint64, error) {
	var idx uint64
	err := f.env.View(func(tx *bolt.Tx) error {
		e, err := lastLogEntry(tx)
		if err != nil {
			return err
		}
		if e != nil {
			idx = e.Index
		}
		return nil
	})
	return idx, err
}

// GetLog implements raft.LogStore.
func (f *Facade) GetLog(index uint64, out *raft.Log) error {
	var entry *Entry
	err := f.env.View(func(tx *bolt.Tx) error {
		e, err := getLogEntry(tx, index)
		entry = e
		return err
	})
	if err != nil {
		return err
	}
	if entry == nil {
		return raft.ErrLogNotFound
	}
	rl, err := entryToRaftLog(*entry)
	if err != nil {
		return err
	}
	*out = *rl
	return nil
}

// StoreLog implements raft.LogStore.
func (f *Facade) StoreLog(log *raft.Log) error {
	return f.StoreLogs([]*raft.Log{log})
}

// StoreLogs implements raft.LogStore.
func (f *Facade) StoreLogs(logs []*raft.Log) error {
	return f.env.Update(func(tx *bolt.Tx) error {
		for _, rl := range logs {
			entry, err := raftLogToEntry(rl)
			if err != nil {
				return wrapErr(DeserializationError, err)
			}
			if err := putLogEntryAndMembership(tx, entry); err != nil {
				return err
			}
		}
		return nil
	})
}

// DeleteRange implements raft.LogStore. hashicorp/raft's range is
// inclusive on both ends, unlike deleteLogsFrom's half-open convention, so
// it is translated at this boundary rather than by changing
// deleteLogsFrom itself.
func (f *Facade) DeleteRange(min, max uint64) error {
	stop := max + 1
	return f.env.Update(func(tx *bolt.Tx) error {
		return deleteLogsFrom(tx, min, &stop)
	})
}

func raftLogToEntry(rl *raft.Log) (Entry, error) {
	switch rl.Type {
	case raft.LogCommand:
		var cmd Command
		if err := json.Unmarshal(rl.Data, &cmd); err != nil {
			return Entry{}, fmt.Errorf("decode raft command log: %w", err)
		}
		return NormalEntry(rl.Index, rl.Term, ClientRequest{Serial: rl.Index, Message: cmd}), nil
	case raft.LogConfiguration:
		cfg := raft.DecodeConfiguration(rl.Data)
		return ConfigChangeEntry(rl.Index, rl.Term, membershipFromConfiguration(cfg)), nil
	default:
		return BlankEntry(rl.Index, rl.Term), nil
	}
}

func entryToRaftLog(e Entry) (*raft.Log, error) {
	switch e.Payload.Kind {
	case PayloadNormal:
		if e.Payload.Request == nil {
			return nil, fmt.Errorf("normal entry at index %d missing request", e.Index)
		}
		data, err := json.Marshal(e.Payload.Request.Message)
		if err != nil {
			return nil, err
		}
		return &raft.Log{Index: e.Index, Term: e.Term, Type: raft.LogCommand, Data: data}, nil
	case PayloadConfigChange:
		if e.Payload.Membership == nil {
			return nil, fmt.Errorf("config-change entry at index %d missing membership", e.Index)
		}
		data := raft.EncodeConfiguration(configurationFromMembership(*e.Payload.Membership))
		return &raft.Log{Index: e.Index, Term: e.Term, Type: raft.LogConfiguration, Data: data}, nil
	default:
		return &raft.Log{Index: e.Index, Term: e.Term, Type: raft.LogNoop}, nil
	}
}

func membershipFromConfiguration(cfg raft.Configuration) Membership {
	m := Membership{}
	for _, srv := range cfg.Servers {
		m.Members = append(m.Members, string(srv.ID))
	}
	return m
}

func configurationFromMembership(m Membership) raft.Configuration {
	cfg := raft.Configuration{}
	for _, id := range m.Members {
		cfg.Servers = append(cfg.Servers, raft.Server{
			Suffrage: raft.Voter,
			ID:       raft.ServerID(id),
			Address:  raft.ServerAddress(id),
		})
	}
	return cfg
}

// FSM adapts Facade's state machine to raft.FSM, so a real *raft.Raft can
// drive the same search engine Facade's own ApplyEntryToStateMachine
// drives.
type FSM struct {
	facade *Facade
}

// NewFSM wraps facade as a raft.FSM.
func NewFSM(facade *Facade) *FSM {
	return &FSM{facade: facade}
}

// Apply implements raft.FSM. Non-command log entries (noop, barrier,
// configuration) are observed but produce no state machine effect here;
// hashicorp/raft itself already handles configuration entries internally.
func (m *FSM) Apply(log *raft.Log) interface{} {
	if log.Type != raft.LogCommand {
		return nil
	}
	var cmd Command
	if err := json.Unmarshal(log.Data, &cmd); err != nil {
		return err
	}
	resp, err := m.facade.ApplyEntryToStateMachine(context.Background(), log.Index, ClientRequest{Serial: log.Index, Message: cmd})
	if err != nil {
		return err
	}
	return resp
}

// Snapshot implements raft.FSM by handing back a live, reader-counted
// handle on the current search engine; Persist streams it out, Release
// returns the reader slot so a concurrent install can proceed.
func (m *FSM) Snapshot() (raft.FSMSnapshot, error) {
	engine := m.facade.stateMachine()
	engine.Acquire()
	return &fsmSnapshot{engine: engine}, nil
}

// Restore implements raft.FSM by unpacking the incoming archive into a
// fresh database directory and hot-swapping it in, the same protocol
// FinalizeSnapshotInstallation uses for the native install flow.
func (m *FSM) Restore(rc io.ReadCloser) error {
	defer rc.Close()
	newDBPath := filepath.Join(m.facade.dataDir, "db.new")
	if err := os.RemoveAll(newDBPath); err != nil {
		return err
	}
	if err := searchdb.ExtractTarGz(rc, newDBPath); err != nil {
		return err
	}
	newEngine, err := searchdb.Open(newDBPath)
	if err != nil {
		return err
	}
	old := m.facade.engine.Swap(newEngine)
	go m.facade.releaseEngine(old, newDBPath)
	return nil
}

type fsmSnapshot struct {
	engine *searchdb.Engine
}

func (s *fsmSnapshot) Persist(sink raft.SnapshotSink) error {
	if err := s.engine.WriteTarGz(sink); err != nil {
		_ = sink.Cancel()
		return err
	}
	return sink.Close()
}

func (s *fsmSnapshot) Release() {
	s.engine.Release()
}

// SnapshotStore adapts the facade's snapshot directory to raft.SnapshotStore.
// It is a separate path from DoLogCompaction/FinalizeSnapshotInstallation:
// those implement spec.md's native compaction flow directly against the
// log bucket, while this one lets hashicorp/raft's own snapshot/restore
// loop drive the same directory through its own conventions (metadata
// sidecar files, newest-first listing).
type SnapshotStore struct {
	dir string
}

// NewSnapshotStore returns a raft.SnapshotStore backed by dir.
func NewSnapshotStore(dir string) *SnapshotStore {
	return &SnapshotStore{dir: dir}
}

func (s *SnapshotStore) snapPath(id string) string { return filepath.Join(s.dir, id+".snap") }
func (s *SnapshotStore) metaPath(id string) string { return filepath.Join(s.dir, id+".meta.json") }

func (s *SnapshotStore) Create(version raft.SnapshotVersion, index, term uint64, configuration raft.Configuration, configurationIndex uint64, _ raft.Transport) (raft.SnapshotSink, error) {
	id := fmt.Sprintf("snap-%d-%d", term, index)
	f, err := os.Create(s.snapPath(id) + ".tmp")
	if err != nil {
		return nil, err
	}
	meta := raft.SnapshotMeta{
		Version:            version,
		ID:                 id,
		Index:              index,
		Term:               term,
		Configuration:      configuration,
		ConfigurationIndex: configurationIndex,
	}
	return &snapshotSink{File: f, id: id, meta: meta, store: s}, nil
}

func (s *SnapshotStore) List() ([]*raft.SnapshotMeta, error) {
	matches, err := filepath.Glob(filepath.Join(s.dir, "*.meta.json"))
	if err != nil {
		return nil, err
	}
	metas := make([]*raft.SnapshotMeta, 0, len(matches))
	for _, path := range matches {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, err
		}
		var meta raft.SnapshotMeta
		if err := json.Unmarshal(data, &meta); err != nil {
			return nil, err
		}
		m := meta
		metas = append(metas, &m)
	}
	sort.Slice(metas, func(i, j int) bool {
		if metas[i].Term != metas[j].Term {
			return metas[i].Term > metas[j].Term
		}
		return metas[i].Index > metas[j].Index
	})
	return metas, nil
}

func (s *SnapshotStore) Open(id string) (*raft.SnapshotMeta, io.ReadCloser, error) {
	data, err := os.ReadFile(s.metaPath(id))
	if err != nil {
		return nil, nil, err
	}
	var meta raft.SnapshotMeta
	if err := json.Unmarshal(data, &meta); err != nil {
		return nil, nil, err
	}
	f, err := os.Open(s.snapPath(id))
	if err != nil {
		return nil, nil, err
	}
	return &meta, f, nil
}

type snapshotSink struct {
	*os.File
	id     string
	meta   raft.SnapshotMeta
	store  *SnapshotStore
	cancel bool
}

func (s *snapshotSink) ID() string { return s.id }

func (s *snapshotSink) Close() error {
	if s.cancel {
		return nil
	}
	tmpName := s.File.Name()
	if err := s.File.Close(); err != nil {
		return err
	}
	if err := os.Rename(tmpName, s.store.snapPath(s.id)); err != nil {
		return err
	}
	data, err := json.Marshal(s.meta)
	if err != nil {
		return err
	}
	return os.WriteFile(s.store.metaPath(s.id), data, 0644)
}

func (s *snapshotSink) Cancel() error {
	s.cancel = true
	name := s.File.Name()
	_ = s.File.Close()
	return os.Remove(name)
}

// RaftOptions configures StartRaft's transport and initial membership.
type RaftOptions struct {
	// BindAddr is the TCP address the Raft transport listens and
	// advertises on.
	BindAddr string
	// Bootstrap, when true, forms a brand new single-node cluster with
	// this node as its only voter. Only ever set on a node's very first
	// start; joining an existing cluster is done by that cluster's
	// leader calling AddVoter, not by this flag.
	Bootstrap bool
}

// StartRaft constructs a *raft.Raft directly on top of facade: facade
// itself serves as the LogStore and StableStore, NewFSM(facade) as the
// FSM, and a SnapshotStore rooted at facade's own snapshot directory as
// the SnapshotStore. This is the same wiring cuemby-warren's
// Manager.Bootstrap/Join perform against raftboltdb and
// raft.NewFileSnapshotStore, pointed instead at this package's own
// storage so a real consensus runtime drives the facade directly.
func StartRaft(facade *Facade, opts RaftOptions) (*raft.Raft, error) {
	config := raft.DefaultConfig()
	config.LocalID = raft.ServerID(facade.nodeID)

	addr, err := net.ResolveTCPAddr("tcp", opts.BindAddr)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve bind address: %w", err)
	}
	transport, err := raft.NewTCPTransport(opts.BindAddr, addr, 3, 10*time.Second, os.Stderr)
	if err != nil {
		return nil, fmt.Errorf("failed to create transport: %w", err)
	}

	snapshotStore := NewSnapshotStore(facade.snapshotDir)
	fsm := NewFSM(facade)

	r, err := raft.NewRaft(config, fsm, facade, facade, snapshotStore, transport)
	if err != nil {
		return nil, fmt.Errorf("failed to create raft: %w", err)
	}

	if opts.Bootstrap {
		configuration := raft.Configuration{
			Servers: []raft.Server{
				{ID: config.LocalID, Address: transport.LocalAddr()},
			},
		}
		if err := r.BootstrapCluster(configuration).Error(); err != nil {
			return nil, fmt.Errorf("failed to bootstrap cluster: %w", err)
		}
	}

	return r, nil
}
