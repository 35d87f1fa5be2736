package storage

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/codebuildervaibhav/whisper-transcriber/internal/types"
)

func nullLogger() *logrus.Logger {
	log, _ := test.NewNullLogger()
	return log
}

func newTempStore(t *testing.T, maxBytes int64) *TempStore {
	t.Helper()
	store, err := NewTempStore(filepath.Join(t.TempDir(), "temp"), maxBytes, nil, nullLogger())
	require.NoError(t, err)
	return store
}

func dirEntries(t *testing.T, dir string) int {
	t.Helper()
	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	return len(entries)
}

func TestTempStoreSave(t *testing.T) {
	store := newTempStore(t, 16)

	path, err := store.Save(strings.NewReader("0123456789abcdef"), "Voice Memo.WAV")
	require.NoError(t, err)
	assert.Equal(t, ".wav", filepath.Ext(path))
	assert.Equal(t, store.Dir(), filepath.Dir(path))

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, "0123456789abcdef", string(data))
}

func TestTempStoreRejectsOversizedUpload(t *testing.T) {
	store := newTempStore(t, 16)

	_, err := store.Save(bytes.NewReader(make([]byte, 17)), "big.mp3")
	assert.ErrorIs(t, err, ErrTooLarge)
	assert.Zero(t, dirEntries(t, store.Dir()), "partial upload discarded")
}

func TestTempStoreRejectsUnsupportedFormat(t *testing.T) {
	store := newTempStore(t, 16)

	for _, name := range []string{"notes.txt", "noext", "archive.zip"} {
		_, err := store.Save(strings.NewReader("x"), name)
		assert.ErrorIs(t, err, ErrUnsupportedFormat, name)
	}
	assert.Zero(t, dirEntries(t, store.Dir()))
	assert.True(t, store.Accepts("clip.MP4"))
}

func TestTempStoreRemoveIsIdempotent(t *testing.T) {
	store := newTempStore(t, 16)
	path, err := store.Save(strings.NewReader("x"), "a.wav")
	require.NoError(t, err)

	require.NoError(t, store.Remove(path))
	require.NoError(t, store.Remove(path))
	assert.NoFileExists(t, path)
}

func sampleResult() *types.TranscriptionResult {
	return &types.TranscriptionResult{
		Transcript: "Hello from the other side.",
		Language:   "en",
		Device:     "cpu",
		SizeMB:     0.5,
		Duration:   10,
		WordCount:  5,
		Segments:   []types.Segment{{Start: 0, End: 10, Text: " Hello from the other side."}},
	}
}

func TestLocalStorageSaveTranscript(t *testing.T) {
	dir := t.TempDir()
	ls, err := NewLocalStorage(dir, "medium")
	require.NoError(t, err)
	ls.now = func() time.Time { return time.Date(2025, 1, 23, 14, 30, 22, 0, time.UTC) }

	path, err := ls.SaveTranscript("job-1", "podcast episode.mp3", sampleResult())
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(dir, "2025", "01", "23", "20250123_143022_podcast_episode.txt"), path)

	text, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, "Hello from the other side.", string(text))

	raw, err := os.ReadFile(strings.TrimSuffix(path, ".txt") + "_meta.json")
	require.NoError(t, err)
	var meta map[string]interface{}
	require.NoError(t, json.Unmarshal(raw, &meta))
	assert.Equal(t, "job-1", meta["job_id"])
	assert.Equal(t, "medium", meta["model_used"])
	assert.Equal(t, "en", meta["language"])
}

func TestSanitizeFilename(t *testing.T) {
	cases := []struct{ in, want string }{
		{"podcast.mp3", "podcast"},
		{"podcast episode.mp3", "podcast_episode"},
		{"../../etc/passwd", "etc_passwd"},
		{`a:b*c?d"e<f>g|h.wav`, "a_b_c_d_e_f_g_h"},
		{"", "untitled"},
		{"...", "untitled"},
		{strings.Repeat("x", 150) + ".wav", strings.Repeat("x", 100)},
	}
	for _, tc := range cases {
		assert.Equal(t, tc.want, sanitizeFilename(tc.in), tc.in)
	}
}

func newMetadataDB(t *testing.T) *MetadataDB {
	t.Helper()
	db, err := NewMetadataDB(filepath.Join(t.TempDir(), "metadata.db"))
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	return db
}

func TestMetadataDBSaveAndGet(t *testing.T) {
	db := newMetadataDB(t)
	ctx := context.Background()

	rec := types.TranscriptRecord{
		JobID:       "job-1",
		RequestName: "standup",
		SourceType:  types.SourceUpload,
		LocalPath:   "/out/standup.txt",
		Language:    "en",
		CreatedAt:   time.Date(2025, 1, 23, 14, 30, 22, 0, time.UTC),
		Duration:    12.5,
		WordCount:   42,
	}
	require.NoError(t, db.SaveTranscript(ctx, rec))

	got, err := db.GetTranscript(ctx, "job-1")
	require.NoError(t, err)
	assert.Equal(t, rec.RequestName, got.RequestName)
	assert.Equal(t, rec.LocalPath, got.LocalPath)
	assert.Equal(t, rec.Language, got.Language)
	assert.Equal(t, rec.WordCount, got.WordCount)
	assert.InDelta(t, rec.Duration, got.Duration, 0.001)
	assert.True(t, rec.CreatedAt.Equal(got.CreatedAt))
	assert.Empty(t, got.GDriveURL)

	assert.Error(t, db.SaveTranscript(ctx, rec), "job ids are unique")

	_, err = db.GetTranscript(ctx, "missing")
	assert.ErrorIs(t, err, ErrTranscriptNotFound)
}

func TestMetadataDBListNewestFirst(t *testing.T) {
	db := newMetadataDB(t)
	ctx := context.Background()

	empty, err := db.ListTranscripts(ctx, 10)
	require.NoError(t, err)
	assert.Empty(t, empty)

	base := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	for i, id := range []string{"old", "mid", "new"} {
		require.NoError(t, db.SaveTranscript(ctx, types.TranscriptRecord{
			JobID:       id,
			RequestName: id,
			SourceType:  types.SourceUpload,
			LocalPath:   "/out/" + id,
			CreatedAt:   base.Add(time.Duration(i) * time.Hour),
		}))
	}

	list, err := db.ListTranscripts(ctx, 2)
	require.NoError(t, err)
	require.Len(t, list, 2)
	assert.Equal(t, "new", list[0].JobID)
	assert.Equal(t, "mid", list[1].JobID)
}

type fakeDrive struct {
	mu    sync.Mutex
	calls int
	fails int
}

func (d *fakeDrive) Upload(ctx context.Context, jobID, requestName string, result *types.TranscriptionResult) (string, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.calls++
	if d.calls <= d.fails {
		return "", errors.New("drive unavailable")
	}
	return driveFileURL("file-" + jobID), nil
}

func newTestArchive(t *testing.T, drive DriveUploader) (*Archive, *MetadataDB) {
	t.Helper()
	ls, err := NewLocalStorage(t.TempDir(), "small")
	require.NoError(t, err)
	db := newMetadataDB(t)
	a := NewArchive(ls, drive, db, nullLogger())
	a.backoff = func(int) time.Duration { return time.Millisecond }
	return a, db
}

func TestArchiveRetriesDriveUpload(t *testing.T) {
	drive := &fakeDrive{fails: 2}
	a, db := newTestArchive(t, drive)

	require.NoError(t, a.Archive(context.Background(), "job-9", "call", types.SourceUpload, sampleResult()))
	assert.Equal(t, 3, drive.calls)

	rec, err := db.GetTranscript(context.Background(), "job-9")
	require.NoError(t, err)
	assert.Equal(t, "https://drive.google.com/file/d/file-job-9/view", rec.GDriveURL)
	assert.FileExists(t, rec.LocalPath)
}

func TestArchiveFallsBackToLocalOnly(t *testing.T) {
	drive := &fakeDrive{fails: 10}
	a, db := newTestArchive(t, drive)

	require.NoError(t, a.Archive(context.Background(), "job-3", "call", types.SourceUpload, sampleResult()))
	assert.Equal(t, driveAttempts, drive.calls)

	rec, err := db.GetTranscript(context.Background(), "job-3")
	require.NoError(t, err)
	assert.Empty(t, rec.GDriveURL)
	assert.FileExists(t, rec.LocalPath)
}

func TestArchiveWithoutOptionalSinks(t *testing.T) {
	ls, err := NewLocalStorage(t.TempDir(), "small")
	require.NoError(t, err)
	a := NewArchive(ls, nil, nil, nullLogger())
	assert.NoError(t, a.Archive(context.Background(), "job-4", "memo", types.SourceCLI, sampleResult()))
}

func TestDriveHelpers(t *testing.T) {
	assert.Equal(t, []string{"2025", "01", "09"}, dateFolderNames(time.Date(2025, 1, 9, 0, 0, 0, 0, time.UTC)))
	assert.Equal(t,
		"name='Transcripts' and mimeType='application/vnd.google-apps.folder' and trashed=false",
		folderQuery("Transcripts", ""))
	assert.Equal(t,
		`name='Bob\'s' and mimeType='application/vnd.google-apps.folder' and trashed=false and 'p1' in parents`,
		folderQuery("Bob's", "p1"))
}

func TestTokenFromFile(t *testing.T) {
	dir := t.TempDir()

	_, err := tokenFromFile(filepath.Join(dir, "missing.json"))
	assert.Error(t, err)

	empty := filepath.Join(dir, "empty.json")
	require.NoError(t, os.WriteFile(empty, []byte(`{}`), 0o600))
	_, err = tokenFromFile(empty)
	assert.Error(t, err)

	valid := filepath.Join(dir, "token.json")
	require.NoError(t, os.WriteFile(valid, []byte(`{"access_token":"a","refresh_token":"r"}`), 0o600))
	tok, err := tokenFromFile(valid)
	require.NoError(t, err)
	assert.Equal(t, "r", tok.RefreshToken)
}
