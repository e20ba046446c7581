package raftlog

import (
	"encoding/json"
	"fmt"

	"github.com/cuemby/raftstore/pkg/log"
	"github.com/cuemby/raftstore/pkg/searchdb"
)

// applyCommand translates one committed Command into a call on engine.
// Application-level rejections come back as a Response with Err set, never
// as a Go error. What propagates as an error is a malformed document batch
// (a DeserializationError, because that indicates a cluster-wide protocol
// break rather than a normal rejection every replica must observe
// identically), a command missing its payload or of unknown kind, and a
// storage failure from a document or settings mutation.
func applyCommand(engine *searchdb.Engine, cmd Command) (Response, error) {
	switch cmd.Kind {
	case CmdCreateIndex:
		if cmd.CreateIndex == nil {
			return Response{}, fmt.Errorf("create_index command missing payload")
		}
		meta, err := engine.CreateIndex(*cmd.CreateIndex)
		resp := Response{Kind: RespIndexUpdate}
		if err != nil {
			resp.Err = err.Error()
		} else {
			resp.Metadata = &meta
			log.WithIndexUID(meta.UID).Info().Msg("created index")
		}
		return resp, nil

	case CmdUpdateIndex:
		if cmd.UpdateIndexBody == nil {
			return Response{}, fmt.Errorf("update_index command missing payload")
		}
		meta, err := engine.UpdateIndex(cmd.IndexUID, *cmd.UpdateIndexBody)
		resp := Response{Kind: RespIndexUpdate}
		if err != nil {
			resp.Err = err.Error()
		} else {
			resp.Metadata = &meta
			log.WithIndexUID(cmd.IndexUID).Info().Msg("updated index")
		}
		return resp, nil

	case CmdDeleteIndex:
		err := engine.DeleteIndex(cmd.IndexUID)
		resp := Response{Kind: RespDeleteIndex}
		if err != nil {
			resp.Err = err.Error()
		} else {
			log.WithIndexUID(cmd.IndexUID).Info().Msg("deleted index")
		}
		return resp, nil

	case CmdDocumentAddition:
		if cmd.DocumentAddition == nil {
			return Response{}, fmt.Errorf("document_addition command missing payload")
		}
		var docs []searchdb.Document
		if err := json.Unmarshal([]byte(cmd.DocumentAddition.Documents), &docs); err != nil {
			return Response{}, wrapErr(DeserializationError, fmt.Errorf("decode document batch: %w", err))
		}
		taskID, err := engine.AddDocuments(cmd.IndexUID, docs, cmd.DocumentAddition.Partial)
		resp, err := updateResponse(taskID, err)
		if err == nil && resp.Ok() {
			log.WithIndexUID(cmd.IndexUID).Info().Msg("added documents to index")
		}
		return resp, err

	case CmdDocumentsDeletion:
		if cmd.DocumentsDeletion == nil {
			return Response{}, fmt.Errorf("documents_deletion command missing payload")
		}
		taskID, err := engine.DeleteDocuments(cmd.IndexUID, cmd.DocumentsDeletion.IDs)
		resp, err := updateResponse(taskID, err)
		if err == nil && resp.Ok() {
			log.WithIndexUID(cmd.IndexUID).Info().Msg("deleted documents from index")
		}
		return resp, err

	case CmdClearAllDocuments:
		taskID, err := engine.ClearAllDocuments(cmd.IndexUID)
		resp, err := updateResponse(taskID, err)
		if err == nil && resp.Ok() {
			log.WithIndexUID(cmd.IndexUID).Info().Msg("cleared all documents in index")
		}
		return resp, err

	case CmdSettingsUpdate:
		if cmd.SettingsUpdate == nil {
			return Response{}, fmt.Errorf("settings_update command missing payload")
		}
		taskID, err := engine.UpdateSettings(cmd.IndexUID, *cmd.SettingsUpdate)
		resp, err := updateResponse(taskID, err)
		if err == nil && resp.Ok() {
			log.WithIndexUID(cmd.IndexUID).Info().Msg("updated settings for index")
		}
		return resp, err

	default:
		return Response{}, fmt.Errorf("unknown command kind: %s", cmd.Kind)
	}
}

// updateResponse builds the UpdateResponse family's Response from an
// AddDocuments/DeleteDocuments/ClearAllDocuments/UpdateSettings result. A taskFailedError
// means the task was durably recorded as failed; it is an application
// error, not an infrastructure one, so it is flattened into Response.Err
// rather than returned.
func updateResponse(taskID uint64, err error) (Response, error) {
	resp := Response{Kind: RespUpdateResponse}
	if err != nil {
		if !searchdb.IsApplicationError(err) {
			return Response{}, err
		}
		resp.Err = err.Error()
		return resp, nil
	}
	resp.TaskID = &taskID
	log.WithTaskID(taskID).Debug().Msg("recorded task")
	return resp, nil
}
