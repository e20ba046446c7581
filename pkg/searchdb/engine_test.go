package searchdb

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
)

func openTestEngine(t *testing.T) *Engine {
	t.Helper()
	e, err := Open(filepath.Join(t.TempDir(), "db"))
	if err != nil {
		t.Fatalf("Open() error = %v", err)
	}
	t.Cleanup(func() { _ = e.Close() })
	return e
}

func TestCreateIndex(t *testing.T) {
	tests := []struct {
		name    string
		info    IndexInfo
		wantErr bool
	}{
		{name: "fresh index", info: IndexInfo{UID: "movies", PrimaryKey: "id"}, wantErr: false},
		{name: "no primary key", info: IndexInfo{UID: "books"}, wantErr: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			e := openTestEngine(t)
			meta, err := e.CreateIndex(tt.info)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			assert.NoError(t, err)
			assert.Equal(t, tt.info.UID, meta.UID)
			assert.False(t, meta.CreatedAt.IsZero())
		})
	}
}

func TestCreateIndex_Duplicate(t *testing.T) {
	e := openTestEngine(t)
	_, err := e.CreateIndex(IndexInfo{UID: "movies"})
	assert.NoError(t, err)

	_, err = e.CreateIndex(IndexInfo{UID: "movies"})
	assert.Error(t, err)
}

func TestDeleteIndex_RemovesDocuments(t *testing.T) {
	e := openTestEngine(t)
	_, err := e.CreateIndex(IndexInfo{UID: "movies", PrimaryKey: "id"})
	assert.NoError(t, err)

	_, err = e.AddDocuments("movies", []Document{{"id": "1", "title": "Arrival"}}, false)
	assert.NoError(t, err)

	assert.NoError(t, e.DeleteIndex("movies"))

	_, found, err := e.GetIndex("movies")
	assert.NoError(t, err)
	assert.False(t, found)

	_, err = e.ListDocuments("movies")
	assert.Error(t, err)
}

func TestAddDocuments_PartialMerge(t *testing.T) {
	e := openTestEngine(t)
	_, err := e.CreateIndex(IndexInfo{UID: "movies", PrimaryKey: "id"})
	assert.NoError(t, err)

	_, err = e.AddDocuments("movies", []Document{{"id": "1", "title": "Arrival", "year": 2016}}, false)
	assert.NoError(t, err)

	_, err = e.AddDocuments("movies", []Document{{"id": "1", "year": 2017}}, true)
	assert.NoError(t, err)

	doc, found, err := e.GetDocument("movies", "1")
	assert.NoError(t, err)
	assert.True(t, found)
	assert.Equal(t, "Arrival", doc["title"])
	assert.EqualValues(t, 2017, doc["year"])
}

func TestAddDocuments_MissingPrimaryKeyIsApplicationError(t *testing.T) {
	e := openTestEngine(t)
	_, err := e.CreateIndex(IndexInfo{UID: "movies", PrimaryKey: "id"})
	assert.NoError(t, err)

	taskID, err := e.AddDocuments("movies", []Document{{"title": "Arrival"}}, false)
	assert.Error(t, err)
	assert.True(t, IsApplicationError(err))

	task, found, ferr := e.GetTask(taskID)
	assert.NoError(t, ferr)
	assert.True(t, found)
	assert.Equal(t, TaskFailed, task.Status)
}

func TestAddDocuments_UnknownIndexIsApplicationError(t *testing.T) {
	e := openTestEngine(t)

	_, err := e.AddDocuments("nope", []Document{{"id": "1"}}, false)
	assert.Error(t, err)
	assert.True(t, IsApplicationError(err))
}

func TestClearAllDocuments(t *testing.T) {
	e := openTestEngine(t)
	_, err := e.CreateIndex(IndexInfo{UID: "movies", PrimaryKey: "id"})
	assert.NoError(t, err)
	_, err = e.AddDocuments("movies", []Document{{"id": "1"}, {"id": "2"}}, false)
	assert.NoError(t, err)

	taskID, err := e.ClearAllDocuments("movies")
	assert.NoError(t, err)

	docs, err := e.ListDocuments("movies")
	assert.NoError(t, err)
	assert.Empty(t, docs)

	task, found, err := e.GetTask(taskID)
	assert.NoError(t, err)
	assert.True(t, found)
	assert.Equal(t, TaskSucceeded, task.Status)
}

func TestUpdateSettings_MergesOnlySetFields(t *testing.T) {
	e := openTestEngine(t)
	_, err := e.CreateIndex(IndexInfo{UID: "movies"})
	assert.NoError(t, err)

	_, err = e.UpdateSettings("movies", Settings{RankingRules: []string{"words", "typo"}})
	assert.NoError(t, err)

	taskID, err := e.UpdateSettings("movies", Settings{StopWords: []string{"the", "a"}})
	assert.NoError(t, err)

	got, err := e.GetSettings("movies")
	assert.NoError(t, err)
	assert.Equal(t, []string{"words", "typo"}, got.RankingRules)
	assert.Equal(t, []string{"the", "a"}, got.StopWords)

	task, found, err := e.GetTask(taskID)
	assert.NoError(t, err)
	assert.True(t, found)
	assert.Equal(t, TaskSucceeded, task.Status)
}

func TestReaderAcquireRelease(t *testing.T) {
	e := openTestEngine(t)
	assert.EqualValues(t, 0, e.ReaderCount())
	e.Acquire()
	e.Acquire()
	assert.EqualValues(t, 2, e.ReaderCount())
	e.Release()
	assert.EqualValues(t, 1, e.ReaderCount())
	e.Release()
	assert.EqualValues(t, 0, e.ReaderCount())
}

func TestWriteTarGzExtractTarGzRoundTrip(t *testing.T) {
	e := openTestEngine(t)
	_, err := e.CreateIndex(IndexInfo{UID: "movies", PrimaryKey: "id"})
	assert.NoError(t, err)
	_, err = e.AddDocuments("movies", []Document{{"id": "1", "title": "Arrival"}}, false)
	assert.NoError(t, err)

	tmp := t.TempDir()
	archivePath := filepath.Join(tmp, "snap.tar.gz")
	f, err := os.Create(archivePath)
	assert.NoError(t, err)
	assert.NoError(t, e.WriteTarGz(f))
	assert.NoError(t, f.Close())

	destDir := filepath.Join(tmp, "restored")
	src, err := os.Open(archivePath)
	assert.NoError(t, err)
	assert.NoError(t, ExtractTarGz(src, destDir))
	assert.NoError(t, src.Close())

	restored, err := Open(destDir)
	assert.NoError(t, err)
	defer restored.Close()

	doc, found, err := restored.GetDocument("movies", "1")
	assert.NoError(t, err)
	assert.True(t, found)
	assert.Equal(t, "Arrival", doc["title"])
}
