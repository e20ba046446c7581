package raftlog

import "github.com/cuemby/raftstore/pkg/searchdb"

// CommandKind discriminates which mutation a Command carries.
type CommandKind string

const (
	CmdCreateIndex       CommandKind = "create_index"
	CmdUpdateIndex       CommandKind = "update_index"
	CmdDeleteIndex       CommandKind = "delete_index"
	CmdDocumentAddition  CommandKind = "document_addition"
	CmdDocumentsDeletion CommandKind = "documents_deletion"
	CmdClearAllDocuments CommandKind = "clear_all_documents"
	CmdSettingsUpdate    CommandKind = "settings_update"
)

// DocumentAdditionPayload carries a textual JSON array of documents, as
// produced by the service layer before it is ever seen by this package.
// Keeping it as text (rather than a pre-parsed []searchdb.Document) is
// deliberate: it is exactly what gets committed to the replicated log, so
// every replica parses it identically instead of trusting a
// leader-local decode.
type DocumentAdditionPayload struct {
	UpdateQuery string `json:"update_query,omitempty"`
	Documents   string `json:"documents"`
	Partial     bool   `json:"partial"`
}

// DocumentsDeletionPayload lists document ids to remove.
type DocumentsDeletionPayload struct {
	IDs []string `json:"ids"`
}

// Command is the tagged union of every mutation the state machine
// accepts. Exactly one of the optional fields is populated, selected by
// Kind; IndexUID names the target index for every variant.
type Command struct {
	Kind              CommandKind               `json:"kind"`
	IndexUID          string                    `json:"index_uid"`
	CreateIndex       *IndexInfo                `json:"create_index,omitempty"`
	UpdateIndexBody   *IndexUpdate              `json:"update_index,omitempty"`
	DocumentAddition  *DocumentAdditionPayload  `json:"document_addition,omitempty"`
	DocumentsDeletion *DocumentsDeletionPayload `json:"documents_deletion,omitempty"`
	SettingsUpdate    *Settings                 `json:"settings_update,omitempty"`
}

// ClientRequest is one application-level command together with the
// monotone serial used to deduplicate re-applied commands after restart.
type ClientRequest struct {
	Serial  uint64  `json:"serial"`
	Message Command `json:"message"`
}

// ResponseKind discriminates which family of result a Response carries.
type ResponseKind string

const (
	RespIndexUpdate    ResponseKind = "index_update"
	RespDeleteIndex    ResponseKind = "delete_index"
	RespUpdateResponse ResponseKind = "update_response"
)

// Response mirrors the success/failure of one applied Command. It always
// carries a stringified error on the failure side (Err != "") rather than
// a Go error, so the value itself is what must be identical across every
// replica that applies the same log entry.
type Response struct {
	Kind     ResponseKind   `json:"kind"`
	Metadata *IndexMetadata `json:"metadata,omitempty"`
	TaskID   *uint64        `json:"task_id,omitempty"`
	Err      string         `json:"error,omitempty"`
}

// IndexMetadata re-exports pkg/searchdb's metadata type for Response
// payloads.
type IndexMetadata = searchdb.IndexMetadata

// Ok reports whether the response represents success.
func (r Response) Ok() bool { return r.Err == "" }
