package workspace

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"testing"
	"time"

	"backend-trailscope/internal/activity"
	"backend-trailscope/internal/auth"
	"backend-trailscope/internal/decode"
	"backend-trailscope/internal/ledger"
	"backend-trailscope/internal/selection"
	"backend-trailscope/internal/stream"
	"backend-trailscope/internal/testutil"
	"backend-trailscope/internal/view"

	"github.com/google/go-cmp/cmp"
	"github.com/pashagolub/pgxmock/v3"
)

func newTestService(hub *stream.Hub, ledgerSvc *ledger.Service) *Service {
	if ledgerSvc == nil {
		ledgerSvc = ledger.NewService(nil)
	}
	return NewService(decode.DefaultRegistry(), auth.NewService("secret"), ledgerSvc, hub, 25)
}

func createWorkspace(t *testing.T, svc *Service) string {
	t.Helper()

	created, err := svc.Create()
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if created.WorkspaceID == "" || created.Token == "" {
		t.Fatalf("expected workspace id and token")
	}
	return created.WorkspaceID
}

func rangeOf(start, end float64) view.RangeEvent {
	return view.RangeEvent{Start: &start, End: &end}
}

func TestUploadAndState(t *testing.T) {
	svc := newTestService(nil, nil)
	id := createWorkspace(t, svc)

	info, err := svc.Upload(context.Background(), id, "ride.json", testutil.ExportJSON(t, testutil.ScenarioA()))
	if err != nil {
		t.Fatalf("upload: %v", err)
	}
	if info.Format != "json" || info.Records != 100 || info.GPSPoints != 100 || !info.Active {
		t.Fatalf("unexpected file info %+v", info)
	}
	if diff := cmp.Diff([]string{"heart_rate", "power"}, info.Fields); diff != "" {
		t.Fatalf("fields mismatch:\n%s", diff)
	}

	state, err := svc.State(id)
	if err != nil {
		t.Fatalf("state: %v", err)
	}
	if !state.View.Selection.Full || state.View.Summary.Title != "Activity Summary" {
		t.Fatalf("expected full view after load")
	}
	if len(state.Chart.Series) != 2 || len(state.Trace.Points) != 100 {
		t.Fatalf("unexpected chart or trace")
	}
	if diff := cmp.Diff([]string{"HR", "Power"}, state.Labels); diff != "" {
		t.Fatalf("labels mismatch:\n%s", diff)
	}
}

func TestInteractionBeforeUpload(t *testing.T) {
	svc := newTestService(nil, nil)
	id := createWorkspace(t, svc)

	if _, err := svc.State(id); !errors.Is(err, ErrNoSnapshot) {
		t.Fatalf("expected ErrNoSnapshot from State, got %v", err)
	}
	if _, err := svc.Select(id, rangeOf(0, 1)); !errors.Is(err, ErrNoSnapshot) {
		t.Fatalf("expected ErrNoSnapshot from Select, got %v", err)
	}
	if _, err := svc.Hover(id, 0); !errors.Is(err, ErrNoSnapshot) {
		t.Fatalf("expected ErrNoSnapshot from Hover, got %v", err)
	}
	if _, err := svc.Explorer(id, view.DatasetRecords, 1); !errors.Is(err, ErrNoSnapshot) {
		t.Fatalf("expected ErrNoSnapshot from Explorer, got %v", err)
	}
}

func TestUnknownWorkspace(t *testing.T) {
	svc := newTestService(nil, nil)

	if _, err := svc.Upload(context.Background(), "missing", "a.json", []byte("{}")); !errors.Is(err, ErrWorkspaceNotFound) {
		t.Fatalf("expected ErrWorkspaceNotFound, got %v", err)
	}
	if _, err := svc.Files("missing"); !errors.Is(err, ErrWorkspaceNotFound) {
		t.Fatalf("expected ErrWorkspaceNotFound, got %v", err)
	}
	if _, err := svc.Uploads(context.Background(), "missing", 5); !errors.Is(err, ErrWorkspaceNotFound) {
		t.Fatalf("expected ErrWorkspaceNotFound, got %v", err)
	}
}

func TestUploadFailureKeepsPrevious(t *testing.T) {
	svc := newTestService(nil, nil)
	id := createWorkspace(t, svc)

	if _, err := svc.Upload(context.Background(), id, "good.json", testutil.ExportJSON(t, testutil.ScenarioA())); err != nil {
		t.Fatalf("upload: %v", err)
	}
	if _, err := svc.Select(id, rangeOf(10, 20)); err != nil {
		t.Fatalf("select: %v", err)
	}

	_, err := svc.Upload(context.Background(), id, "broken.json", []byte(`{"records":`))
	var decodeErr *decode.Error
	if !errors.As(err, &decodeErr) {
		t.Fatalf("expected decode error, got %v", err)
	}

	_, err = svc.Upload(context.Background(), id, "shape.json", []byte(`{"laps":[]}`))
	if !errors.Is(err, activity.ErrMissingRecords) {
		t.Fatalf("expected ErrMissingRecords, got %v", err)
	}

	state, err := svc.State(id)
	if err != nil {
		t.Fatalf("state: %v", err)
	}
	if state.File.Name != "good.json" || state.View.Summary.Records != 11 {
		t.Fatalf("previous file or selection lost: %s with %d records", state.File.Name, state.View.Summary.Records)
	}
	files, _ := svc.Files(id)
	if len(files) != 1 {
		t.Fatalf("failed uploads must not be listed, got %d files", len(files))
	}
}

func TestSelectAndReset(t *testing.T) {
	svc := newTestService(nil, nil)
	id := createWorkspace(t, svc)
	if _, err := svc.Upload(context.Background(), id, "ride.json", testutil.ExportJSON(t, testutil.ScenarioA())); err != nil {
		t.Fatalf("upload: %v", err)
	}

	u, err := svc.Select(id, rangeOf(10, 20))
	if err != nil || !u.Changed || u.Summary.Records != 11 {
		t.Fatalf("unexpected select result %+v err %v", u.Summary, err)
	}

	u, err = svc.Select(id, rangeOf(200, 300))
	if err != nil || u.Changed || u.Summary.Records != 11 {
		t.Fatalf("empty range should keep the previous view, got %+v err %v", u.Summary, err)
	}

	if _, err := svc.Select(id, rangeOf(30, 10)); !errors.Is(err, selection.ErrInvalidRange) {
		t.Fatalf("expected ErrInvalidRange, got %v", err)
	}

	u, err = svc.Reset(id)
	if err != nil || !u.Selection.Full {
		t.Fatalf("expected reset to FULL, got %+v err %v", u.Selection, err)
	}

	c, err := svc.Hover(id, 42)
	if err != nil || !c.Visible {
		t.Fatalf("expected visible cursor, got %+v err %v", c, err)
	}
}

func TestFilesNaturalOrderAndActivate(t *testing.T) {
	svc := newTestService(nil, nil)
	id := createWorkspace(t, svc)

	data := testutil.ExportJSON(t, testutil.ScenarioA())
	for _, name := range []string{"ride10.json", "ride2.json"} {
		if _, err := svc.Upload(context.Background(), id, name, data); err != nil {
			t.Fatalf("upload %s: %v", name, err)
		}
	}

	files, err := svc.Files(id)
	if err != nil {
		t.Fatalf("files: %v", err)
	}
	if len(files) != 2 || files[0].Name != "ride2.json" || files[1].Name != "ride10.json" {
		t.Fatalf("unexpected order %v", files)
	}
	if !files[0].Active || files[1].Active {
		t.Fatalf("last upload should be active")
	}

	if _, err := svc.Select(id, rangeOf(10, 20)); err != nil {
		t.Fatalf("select: %v", err)
	}

	state, err := svc.Activate(id, "ride10.json")
	if err != nil {
		t.Fatalf("activate: %v", err)
	}
	if state.File.Name != "ride10.json" || !state.View.Selection.Full {
		t.Fatalf("switched file should show its own selection")
	}

	state, err = svc.Activate(id, "ride2.json")
	if err != nil {
		t.Fatalf("activate: %v", err)
	}
	if state.View.Selection.Full {
		t.Fatalf("selection of ride2.json should survive the switch")
	}

	if _, err := svc.Activate(id, "nope.fit"); !errors.Is(err, ErrFileNotFound) {
		t.Fatalf("expected ErrFileNotFound, got %v", err)
	}
}

func TestUploadWritesLedger(t *testing.T) {
	mock, err := pgxmock.NewPool(pgxmock.QueryMatcherOption(pgxmock.QueryMatcherRegexp))
	if err != nil {
		t.Fatalf("mock pool: %v", err)
	}
	defer mock.Close()

	svc := newTestService(nil, ledger.NewService(mock))
	id := createWorkspace(t, svc)
	data := testutil.ExportJSON(t, testutil.ScenarioA())

	mock.ExpectQuery(`INSERT INTO ingest_log`).
		WithArgs(pgxmock.AnyArg(), id, "ride.json", "json", int64(len(data)), 100, 100, ledger.StatusOK, "").
		WillReturnRows(pgxmock.NewRows([]string{"created_at"}).AddRow(time.Now()))
	mock.ExpectQuery(`INSERT INTO ingest_log`).
		WithArgs(pgxmock.AnyArg(), id, "empty.gpx", "gpx", int64(0), 0, 0, ledger.StatusFailed, pgxmock.AnyArg()).
		WillReturnError(errors.New("db down"))

	if _, err := svc.Upload(context.Background(), id, "ride.json", data); err != nil {
		t.Fatalf("upload: %v", err)
	}
	if _, err := svc.Upload(context.Background(), id, "empty.gpx", nil); !errors.Is(err, decode.ErrEmpty) {
		t.Fatalf("expected ErrEmpty, got %v", err)
	}

	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unmet expectations: %v", err)
	}
}

func TestUploadBroadcasts(t *testing.T) {
	hub := stream.NewHub(nil)
	svc := newTestService(hub, nil)
	id := createWorkspace(t, svc)

	client := hub.Register(id)
	defer hub.Unregister(client)

	next := func() Message {
		t.Helper()
		select {
		case payload := <-client.Send:
			var msg Message
			if err := json.Unmarshal(payload, &msg); err != nil {
				t.Fatalf("decode message: %v", err)
			}
			return msg
		case <-time.After(time.Second):
			t.Fatalf("timeout waiting for message")
		}
		return Message{}
	}

	if _, err := svc.Upload(context.Background(), id, "ride.json", testutil.ExportJSON(t, testutil.ScenarioA())); err != nil {
		t.Fatalf("upload: %v", err)
	}
	if msg := next(); msg.Type != MessageLoaded || msg.File != "ride.json" || msg.Seq != 1 {
		t.Fatalf("unexpected message %+v", msg)
	}

	if _, err := svc.Select(id, rangeOf(200, 300)); err != nil {
		t.Fatalf("select: %v", err)
	}
	if _, err := svc.Select(id, rangeOf(1, 2)); err != nil {
		t.Fatalf("select: %v", err)
	}
	msg := next()
	if msg.Type != MessageSelection || msg.Seq != 2 || msg.View == nil || msg.View.Summary.Records != 2 {
		t.Fatalf("expected only the accepted selection to be broadcast, got %+v", msg)
	}
}

func TestConcurrentInteraction(t *testing.T) {
	svc := newTestService(nil, nil)
	id := createWorkspace(t, svc)
	data := testutil.ExportJSON(t, testutil.ScenarioA())
	if _, err := svc.Upload(context.Background(), id, "ride.json", data); err != nil {
		t.Fatalf("upload: %v", err)
	}

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, _ = svc.Select(id, rangeOf(float64(i), float64(i+10)))
			_, _ = svc.Hover(id, i)
			_, _ = svc.State(id)
			if i%4 == 0 {
				_, _ = svc.Upload(context.Background(), id, "ride.json", data)
			}
		}(i)
	}
	wg.Wait()

	state, err := svc.State(id)
	if err != nil {
		t.Fatalf("state: %v", err)
	}
	if state.File.Records != 100 {
		t.Fatalf("unexpected state after concurrent use")
	}
}

func TestConcurrentSelectLatestSeqMatchesState(t *testing.T) {
	hub := stream.NewHub(nil)
	svc := newTestService(hub, nil)
	id := createWorkspace(t, svc)
	if _, err := svc.Upload(context.Background(), id, "ride.json", testutil.ExportJSON(t, testutil.ScenarioA())); err != nil {
		t.Fatalf("upload: %v", err)
	}

	client := hub.Register(id)
	defer hub.Unregister(client)

	var wg sync.WaitGroup
	for i := 0; i < 16; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, _ = svc.Select(id, rangeOf(float64(i), float64(i+20)))
		}(i)
	}
	wg.Wait()

	seen := map[uint64]bool{}
	var latest Message
	for len(seen) < 16 {
		select {
		case payload := <-client.Send:
			var msg Message
			if err := json.Unmarshal(payload, &msg); err != nil {
				t.Fatalf("decode message: %v", err)
			}
			if seen[msg.Seq] {
				t.Fatalf("duplicate seq %d", msg.Seq)
			}
			seen[msg.Seq] = true
			if msg.Seq > latest.Seq {
				latest = msg
			}
		case <-time.After(time.Second):
			t.Fatalf("timeout after %d messages", len(seen))
		}
	}

	state, err := svc.State(id)
	if err != nil {
		t.Fatalf("state: %v", err)
	}
	if latest.Seq != 17 || latest.View == nil {
		t.Fatalf("expected seq 17 to be the last message, got %+v", latest)
	}
	if diff := cmp.Diff(state.View.Selection, latest.View.Selection); diff != "" {
		t.Fatalf("latest message does not match state (-state +msg):\n%s", diff)
	}
}

func TestExpiredWorkspacesAreSwept(t *testing.T) {
	svc := newTestService(nil, nil)
	clock := time.Date(2024, 5, 1, 8, 0, 0, 0, time.UTC)
	svc.now = func() time.Time { return clock }

	old := createWorkspace(t, svc)
	clock = clock.Add(svc.ttl - time.Minute)
	fresh := createWorkspace(t, svc)

	if _, err := svc.Files(old); err != nil {
		t.Fatalf("workspace should still be live: %v", err)
	}

	clock = clock.Add(2 * time.Minute)
	if _, err := svc.Files(old); !errors.Is(err, ErrWorkspaceNotFound) {
		t.Fatalf("expected expired workspace to be gone, got %v", err)
	}
	if n := svc.Sweep(); n != 1 {
		t.Fatalf("expected one workspace removed, got %d", n)
	}
	if _, err := svc.Files(fresh); err != nil {
		t.Fatalf("fresh workspace removed: %v", err)
	}
	if len(svc.workspaces) != 1 {
		t.Fatalf("expected one workspace left, got %d", len(svc.workspaces))
	}
}

func TestRunJanitorSweepsUntilCancelled(t *testing.T) {
	svc := newTestService(nil, nil)
	clock := time.Now()
	var mu sync.Mutex
	svc.now = func() time.Time {
		mu.Lock()
		defer mu.Unlock()
		return clock
	}
	id := createWorkspace(t, svc)

	mu.Lock()
	clock = clock.Add(svc.ttl)
	mu.Unlock()

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		svc.RunJanitor(ctx, time.Millisecond)
		close(done)
	}()

	deadline := time.After(time.Second)
	for {
		svc.mu.RLock()
		_, ok := svc.workspaces[id]
		svc.mu.RUnlock()
		if !ok {
			break
		}
		select {
		case <-deadline:
			t.Fatalf("janitor never removed the workspace")
		case <-time.After(5 * time.Millisecond):
		}
	}

	cancel()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatalf("janitor did not stop")
	}
}
