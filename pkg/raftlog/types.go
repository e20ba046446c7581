package raftlog

import "github.com/cuemby/raftstore/pkg/searchdb"

// PayloadKind discriminates the variant carried by a log Entry.
type PayloadKind string

const (
	PayloadBlank           PayloadKind = "blank"
	PayloadNormal          PayloadKind = "normal"
	PayloadConfigChange    PayloadKind = "config_change"
	PayloadSnapshotPointer PayloadKind = "snapshot_pointer"
)

// Payload is the tagged union of what a log Entry can carry. Exactly one
// of Request, Membership, SnapshotPointer is populated, matching Kind.
type Payload struct {
	Kind            PayloadKind      `json:"kind"`
	Request         *ClientRequest   `json:"request,omitempty"`
	Membership      *Membership      `json:"membership,omitempty"`
	SnapshotPointer *SnapshotPointer `json:"snapshot_pointer,omitempty"`
}

// SnapshotPointer is the payload of a synthetic log entry that replaces
// every entry up to and including a compacted index.
type SnapshotPointer struct {
	SnapshotID string     `json:"snapshot_id"`
	Membership Membership `json:"membership"`
}

// Entry is one record in the replicated log, addressed by Index.
type Entry struct {
	Index   uint64  `json:"index"`
	Term    uint64  `json:"term"`
	Payload Payload `json:"payload"`
}

// BlankEntry builds a no-op entry at index/term, used by consensus
// runtimes to commit a leader's own term on election.
func BlankEntry(index, term uint64) Entry {
	return Entry{Index: index, Term: term, Payload: Payload{Kind: PayloadBlank}}
}

// NormalEntry wraps a client request as a log entry.
func NormalEntry(index, term uint64, req ClientRequest) Entry {
	return Entry{Index: index, Term: term, Payload: Payload{Kind: PayloadNormal, Request: &req}}
}

// ConfigChangeEntry wraps a membership change as a log entry.
func ConfigChangeEntry(index, term uint64, membership Membership) Entry {
	return Entry{Index: index, Term: term, Payload: Payload{Kind: PayloadConfigChange, Membership: &membership}}
}

// SnapshotPointerEntry builds the synthetic entry compaction and snapshot
// install leave behind at the compacted/installed index.
func SnapshotPointerEntry(index, term uint64, snapshotID string, membership Membership) Entry {
	return Entry{
		Index: index,
		Term:  term,
		Payload: Payload{
			Kind:            PayloadSnapshotPointer,
			SnapshotPointer: &SnapshotPointer{SnapshotID: snapshotID, Membership: membership},
		},
	}
}

// HardState is the durable term/vote pair a consensus runtime persists
// before casting a vote or starting a new term.
type HardState struct {
	CurrentTerm uint64 `json:"current_term"`
	VotedFor    string `json:"voted_for,omitempty"`
}

// Membership is the active, possibly joint, voter configuration.
type Membership struct {
	Members               []string `json:"members"`
	MembersAfterConsensus []string `json:"members_after_consensus,omitempty"`
}

// InitialMembership returns the single-node configuration a brand new
// node bootstraps with.
func InitialMembership(selfID string) Membership {
	return Membership{Members: []string{selfID}}
}

// SnapshotDescriptor is the single slot describing the most recent
// snapshot taken or installed on this node.
type SnapshotDescriptor struct {
	ID         string     `json:"id"`
	Path       string     `json:"path"`
	Index      uint64     `json:"index"`
	Term       uint64     `json:"term"`
	Membership Membership `json:"membership"`
}

// InitialState is the one-shot bootstrap read a consensus runtime
// performs on startup.
type InitialState struct {
	LastLogIndex uint64
	LastLogTerm  uint64
	LastApplied  uint64
	HardState    HardState
	Membership   Membership
}

// NodeState reports whether a node still needs to be bootstrapped into a
// cluster (membership has at most one member: itself) or has already
// joined/formed one.
type NodeState string

const (
	NodeUninitialized NodeState = "uninitialized"
	NodeInitialized   NodeState = "initialized"
)

// CurrentSnapshot is a readable handle to a snapshot file plus the
// (index, term, membership) it was taken at.
type CurrentSnapshot struct {
	Index      uint64
	Term       uint64
	Membership Membership
	Path       string
}

// re-exported so callers building Command values don't need to import
// pkg/searchdb directly for the common case.
type (
	IndexInfo   = searchdb.IndexInfo
	IndexUpdate = searchdb.IndexUpdate
	Settings    = searchdb.Settings
)
