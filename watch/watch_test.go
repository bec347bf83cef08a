package watch

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
)

func TestNewErrors(t *testing.T) {
	noop := func(context.Context, []string) {}

	_, err := New(nil, 0, noop, nil)
	assert.ErrorIs(t, err, ErrNoInputs)

	_, err = New([]string{"wards.shp"}, 0, nil, nil)
	assert.Error(t, err)
}

func TestRelevant(t *testing.T) {
	dir := t.TempDir()
	w, err := New([]string{filepath.Join(dir, "NI_Wards.shp")}, time.Second, func(context.Context, []string) {}, nil)
	require.NoError(t, err)
	defer w.fsw.Close()

	tests := []struct {
		name string
		op   fsnotify.Op
		want bool
	}{
		{"NI_Wards.dbf", fsnotify.Write, true},
		{"NI_Wards.shp", fsnotify.Create, true},
		{"NI_Wards.PRJ", fsnotify.Rename, true},
		{"NI_Wards.cpg", fsnotify.Chmod, false},
		{"NI_Wards.dbf", fsnotify.Remove, false},
		{"NI_Wards.qmd", fsnotify.Write, false},
		{"Counties.shp", fsnotify.Write, false},
	}
	for _, tt := range tests {
		t.Run(tt.name+"/"+tt.op.String(), func(t *testing.T) {
			ev := fsnotify.Event{Name: filepath.Join(dir, tt.name), Op: tt.op}
			assert.Equal(t, tt.want, w.relevant(ev))
		})
	}
}

func TestNewDefaults(t *testing.T) {
	dir := t.TempDir()
	w, err := New([]string{
		filepath.Join(dir, "a", "Counties.shp"),
		filepath.Join(dir, "a", "NI_Wards.shp"),
		filepath.Join(dir, "b", "Extra.shp"),
	}, 0, func(context.Context, []string) {}, nil)
	require.NoError(t, err)
	defer w.fsw.Close()

	assert.Equal(t, DefaultDebounce, w.debounce)
	assert.Equal(t, []string{filepath.Join(dir, "a"), filepath.Join(dir, "b")}, w.dirs)
	assert.Len(t, w.targets, 3*len(Sidecars))
}

func TestRunDebouncesChanges(t *testing.T) {
	defer goleak.VerifyNone(t)

	dir := t.TempDir()
	calls := make(chan []string, 4)
	w, err := New([]string{filepath.Join(dir, "NI_Wards.shp")}, 100*time.Millisecond,
		func(_ context.Context, changed []string) { calls <- changed }, nil)
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- w.Run(ctx) }()

	// Give the watcher time to register the directory.
	time.Sleep(100 * time.Millisecond)

	for i := 0; i < 3; i++ {
		require.NoError(t, os.WriteFile(filepath.Join(dir, "NI_Wards.dbf"), []byte{byte(i)}, 0644))
	}
	require.NoError(t, os.WriteFile(filepath.Join(dir, "NI_Wards.prj"), []byte("GEOGCS"), 0644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "notes.txt"), []byte("ignored"), 0644))

	select {
	case changed := <-calls:
		assert.Equal(t, []string{
			filepath.Join(dir, "NI_Wards.dbf"),
			filepath.Join(dir, "NI_Wards.prj"),
		}, changed)
	case <-time.After(5 * time.Second):
		t.Fatal("change callback was not called")
	}

	select {
	case extra := <-calls:
		t.Fatalf("unexpected second callback: %v", extra)
	case <-time.After(300 * time.Millisecond):
	}

	cancel()
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("Run did not return after cancel")
	}
}

func TestRunMissingDirectory(t *testing.T) {
	defer goleak.VerifyNone(t)

	missing := filepath.Join(t.TempDir(), "gone", "NI_Wards.shp")
	w, err := New([]string{missing}, 0, func(context.Context, []string) {}, nil)
	require.NoError(t, err)

	assert.Error(t, w.Run(context.Background()))
}
