package watcher

import (
	"context"
	"log/slog"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/fsnotify/fsnotify"
)

func TestClassify(t *testing.T) {
	tests := []struct {
		op   fsnotify.Op
		want Operation
	}{
		{fsnotify.Remove, OpDelete},
		{fsnotify.Rename, OpDelete},
		{fsnotify.Create, OpCreate},
		{fsnotify.Write, OpModify},
		{fsnotify.Chmod, OpModify},
		{fsnotify.Remove | fsnotify.Write, OpDelete},
		{fsnotify.Rename | fsnotify.Create, OpDelete},
		{fsnotify.Create | fsnotify.Write, OpCreate},
	}

	for _, tt := range tests {
		t.Run(tt.op.String(), func(t *testing.T) {
			if got := classify(tt.op); got != tt.want {
				t.Errorf("classify(%v) = %v, want %v", tt.op, got, tt.want)
			}
		})
	}
}

func TestOperationString(t *testing.T) {
	for op, want := range map[Operation]string{
		OpCreate:      "create",
		OpModify:      "modify",
		OpDelete:      "delete",
		Operation(99): "unknown",
	} {
		if got := op.String(); got != want {
			t.Errorf("Operation(%d).String() = %q, want %q", op, got, want)
		}
	}
}

func TestResolve(t *testing.T) {
	complete := fileState{main: true, complete: true}
	partial := fileState{main: true}
	gone := fileState{}

	tests := []struct {
		name   string
		set    fileSet
		state  fileState
		want   Operation
		wantOK bool
	}{
		{"new file set", fileSet{created: true}, complete, OpCreate, true},
		{"rewritten in place", fileSet{}, complete, OpModify, true},
		{"deleted and copied back", fileSet{created: true, removed: true}, complete, OpCreate, true},
		{"removed", fileSet{removed: true}, gone, OpDelete, true},
		{"stray companion without shp", fileSet{created: true}, gone, 0, false},
		{"attribute table still missing", fileSet{created: true}, partial, 0, false},
		{"attribute table removed", fileSet{removed: true}, partial, 0, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := resolve(&tt.set, tt.state)
			if ok != tt.wantOK || (ok && got != tt.want) {
				t.Errorf("resolve() = %v, %v; want %v, %v", got, ok, tt.want, tt.wantOK)
			}
		})
	}
}

func TestPresence(t *testing.T) {
	dir := t.TempDir()
	shp := filepath.Join(dir, "ROADS.SHP")

	if st := presence(shp); st.main || st.complete {
		t.Errorf("empty dir: %+v", st)
	}

	write(t, shp)
	if st := presence(shp); !st.main || st.complete {
		t.Errorf("shp only: %+v", st)
	}

	write(t, filepath.Join(dir, "ROADS.DBF"))
	if st := presence(shp); !st.complete {
		t.Errorf("shp and dbf: %+v, want complete", st)
	}
}

func newTestWatcher(t *testing.T, dir string) <-chan Event {
	t.Helper()

	events := make(chan Event, 8)
	w, err := New(Config{Paths: []string{dir}, Quiet: 50 * time.Millisecond},
		func(_ context.Context, e Event) error {
			events <- e
			return nil
		},
		slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelError})),
	)
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	if err := w.Start(ctx); err != nil {
		t.Fatalf("Start() error = %v", err)
	}
	t.Cleanup(func() {
		cancel()
		_ = w.Stop()
	})
	return events
}

func TestWatcherCoalescesFileSet(t *testing.T) {
	dir := t.TempDir()
	events := newTestWatcher(t, dir)

	for _, name := range []string{"roads.shp", "roads.shx", "roads.dbf", "notes.txt"} {
		write(t, filepath.Join(dir, name))
	}

	e := expectEvent(t, events)
	if filepath.Base(e.Path) != "roads.shp" || e.Operation != OpCreate {
		t.Errorf("event = %+v, want create of roads.shp", e)
	}
	expectNoEvent(t, events)

	if err := os.Remove(filepath.Join(dir, "roads.shp")); err != nil {
		t.Fatal(err)
	}
	e = expectEvent(t, events)
	if e.Operation != OpDelete {
		t.Errorf("event = %+v, want delete", e)
	}
}

func TestWatcherWaitsForAttributeTable(t *testing.T) {
	dir := t.TempDir()
	events := newTestWatcher(t, dir)

	write(t, filepath.Join(dir, "coast.shp"))
	expectNoEvent(t, events)

	write(t, filepath.Join(dir, "coast.dbf"))
	e := expectEvent(t, events)
	if filepath.Base(e.Path) != "coast.shp" {
		t.Errorf("event = %+v, want coast.shp", e)
	}
}

func TestWatcherFollowsNewDirectories(t *testing.T) {
	dir := t.TempDir()
	events := newTestWatcher(t, dir)

	sub := filepath.Join(dir, "zones")
	if err := os.Mkdir(sub, 0o755); err != nil {
		t.Fatal(err)
	}
	// Give the watcher time to add the new directory.
	time.Sleep(100 * time.Millisecond)

	write(t, filepath.Join(sub, "landuse.shp"))
	write(t, filepath.Join(sub, "landuse.dbf"))

	e := expectEvent(t, events)
	if e.Path != filepath.Join(sub, "landuse.shp") {
		t.Errorf("event path = %q", e.Path)
	}
}

func write(t *testing.T, path string) {
	t.Helper()
	if err := os.WriteFile(path, []byte("x"), 0o644); err != nil {
		t.Fatal(err)
	}
}

func expectEvent(t *testing.T, events <-chan Event) Event {
	t.Helper()
	select {
	case e := <-events:
		return e
	case <-time.After(2 * time.Second):
		t.Fatal("no event within two seconds")
		return Event{}
	}
}

func expectNoEvent(t *testing.T, events <-chan Event) {
	t.Helper()
	select {
	case e := <-events:
		t.Errorf("unexpected event %+v", e)
	case <-time.After(300 * time.Millisecond):
	}
}
