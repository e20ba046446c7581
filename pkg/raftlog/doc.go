/*
Package raftlog is the replicated storage core binding a Raft-style
consensus runtime to the embedded search database in pkg/searchdb.

It owns two distinct transactional domains, never joined in a single
transaction:

  - the Raft log and consensus metadata (hard state, membership,
    last-applied watermark, snapshot descriptor), held in one bbolt
    environment per data directory;
  - the application state machine, a pkg/searchdb.Engine pointed at its
    own directory and swapped atomically whenever a snapshot is
    installed.

Facade is the single type external callers use; it is built from a
LogStore-shaped bbolt environment (see logstore.go, metadata.go), a
snapshot engine (snapshot.go), and a state machine adapter
(statemachine.go). raftshim.go lets a Facade additionally serve as a
github.com/hashicorp/raft LogStore, StableStore, FSM, and SnapshotStore,
so an actual Raft runtime can be pointed at it directly.
*/
package raftlog
