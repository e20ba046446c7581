/*
Package searchdb implements the embedded document-index database that sits
behind the replicated storage core in pkg/raftlog.

searchdb owns exactly one bbolt environment per database directory, laid
out in buckets the same way pkg/storage laid out Warren's cluster state:
one bucket per entity (indexes, documents-per-index, tasks), JSON-encoded
values, ACID transactions courtesy of bbolt.

An Engine is meant to be opened, used, and discarded: pkg/raftlog never
mutates an Engine handle in place when installing a snapshot. It opens a
brand new Engine pointed at a freshly unpacked directory and swaps the
pointer, handing the old Engine to a background releaser that closes it
once no reader is left holding it.
*/
package searchdb
