package raftlog

import (
	"encoding/json"
	"testing"

	"github.com/cuemby/raftstore/pkg/searchdb"
)

// TestCommandRoundTrip checks spec.md §8's round-trip property for every
// CommandKind variant: serialize, deserialize, serialize again, and
// compare the two serializations byte for byte.
func TestCommandRoundTrip(t *testing.T) {
	primaryKey := "isbn"

	cases := []struct {
		name string
		cmd  Command
	}{
		{
			name: "create_index",
			cmd: Command{
				Kind:        CmdCreateIndex,
				IndexUID:    "books",
				CreateIndex: &searchdb.IndexInfo{UID: "books", PrimaryKey: "isbn"},
			},
		},
		{
			name: "update_index",
			cmd: Command{
				Kind:            CmdUpdateIndex,
				IndexUID:        "books",
				UpdateIndexBody: &searchdb.IndexUpdate{PrimaryKey: &primaryKey},
			},
		},
		{
			name: "delete_index",
			cmd: Command{
				Kind:     CmdDeleteIndex,
				IndexUID: "books",
			},
		},
		{
			name: "document_addition",
			cmd: Command{
				Kind:     CmdDocumentAddition,
				IndexUID: "books",
				DocumentAddition: &DocumentAdditionPayload{
					UpdateQuery: "replace",
					Documents:   `[{"isbn":"1","title":"Dune"}]`,
					Partial:     true,
				},
			},
		},
		{
			name: "documents_deletion",
			cmd: Command{
				Kind:              CmdDocumentsDeletion,
				IndexUID:          "books",
				DocumentsDeletion: &DocumentsDeletionPayload{IDs: []string{"1", "2"}},
			},
		},
		{
			name: "clear_all_documents",
			cmd: Command{
				Kind:     CmdClearAllDocuments,
				IndexUID: "books",
			},
		},
		{
			name: "settings_update",
			cmd: Command{
				Kind:     CmdSettingsUpdate,
				IndexUID: "books",
				SettingsUpdate: &searchdb.Settings{
					RankingRules: []string{"words", "typo"},
					StopWords:    []string{"the", "a"},
				},
			},
		},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			first, err := json.Marshal(tc.cmd)
			if err != nil {
				t.Fatalf("Marshal() error = %v", err)
			}

			var decoded Command
			if err := json.Unmarshal(first, &decoded); err != nil {
				t.Fatalf("Unmarshal() error = %v", err)
			}

			second, err := json.Marshal(decoded)
			if err != nil {
				t.Fatalf("re-Marshal() error = %v", err)
			}

			if string(first) != string(second) {
				t.Errorf("round-trip mismatch:\n first  = %s\n second = %s", first, second)
			}
		})
	}
}

// TestResponseRoundTrip checks the same property for every ResponseKind
// variant, including the failure shape (Kind and Err set, every other
// field zero) that a rejected SettingsUpdate/DocumentAddition/etc. produces.
func TestResponseRoundTrip(t *testing.T) {
	cases := []struct {
		name string
		resp Response
	}{
		{
			name: "index_update_ok",
			resp: Response{
				Kind: RespIndexUpdate,
				Metadata: &searchdb.IndexMetadata{
					UID:        "books",
					PrimaryKey: "isbn",
				},
			},
		},
		{
			name: "index_update_err",
			resp: Response{Kind: RespIndexUpdate, Err: "index already exists: books"},
		},
		{
			name: "delete_index_ok",
			resp: Response{Kind: RespDeleteIndex},
		},
		{
			name: "delete_index_err",
			resp: Response{Kind: RespDeleteIndex, Err: "index not found: books"},
		},
		{
			name: "update_response_ok",
			resp: Response{Kind: RespUpdateResponse, TaskID: &taskIDValue},
		},
		{
			name: "update_response_err",
			resp: Response{Kind: RespUpdateResponse, Err: "document missing primary key \"isbn\""},
		},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			first, err := json.Marshal(tc.resp)
			if err != nil {
				t.Fatalf("Marshal() error = %v", err)
			}

			var decoded Response
			if err := json.Unmarshal(first, &decoded); err != nil {
				t.Fatalf("Unmarshal() error = %v", err)
			}

			second, err := json.Marshal(decoded)
			if err != nil {
				t.Fatalf("re-Marshal() error = %v", err)
			}

			if string(first) != string(second) {
				t.Errorf("round-trip mismatch:\n first  = %s\n second = %s", first, second)
			}
		})
	}
}

var taskIDValue = uint64(42)
