package workspace

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"sync"
	"time"

	"backend-trailscope/internal/activity"
	"backend-trailscope/internal/auth"
	"backend-trailscope/internal/decode"
	"backend-trailscope/internal/ledger"
	"backend-trailscope/internal/stream"
	"backend-trailscope/internal/view"

	"github.com/google/uuid"
	"github.com/maruel/natural"
)

var (
	ErrWorkspaceNotFound = errors.New("workspace not found")
	ErrFileNotFound      = errors.New("file not found")
	// ErrNoSnapshot gates interaction until a file has been decoded.
	ErrNoSnapshot = errors.New("no activity loaded")
)

type Service struct {
	registry *decode.Registry
	tokens   *auth.Service
	ledger   *ledger.Service
	hub      *stream.Hub
	pageSize int
	ttl      time.Duration
	now      func() time.Time

	mu         sync.RWMutex
	workspaces map[string]*workspace
}

type workspace struct {
	id        string
	createdAt time.Time

	mu     sync.Mutex
	files  map[string]*loadedFile
	active string
	seq    uint64
}

type loadedFile struct {
	views    *view.Synchronizer
	size     int
	loadedAt time.Time
}

func NewService(registry *decode.Registry, tokens *auth.Service, ledgerSvc *ledger.Service, hub *stream.Hub, pageSize int) *Service {
	return &Service{
		registry:   registry,
		tokens:     tokens,
		ledger:     ledgerSvc,
		hub:        hub,
		pageSize:   pageSize,
		ttl:        tokens.TTL(),
		now:        time.Now,
		workspaces: map[string]*workspace{},
	}
}

func (s *Service) Create() (Created, error) {
	ws := &workspace{
		id:        uuid.NewString(),
		createdAt: s.now(),
		files:     map[string]*loadedFile{},
	}

	tokens, err := s.tokens.Issue(ws.id)
	if err != nil {
		return Created{}, err
	}

	s.mu.Lock()
	s.workspaces[ws.id] = ws
	s.mu.Unlock()

	slog.Info("workspace created", "workspace_id", ws.id)
	return Created{WorkspaceID: ws.id, CreatedAt: ws.createdAt, TokenResponse: tokens}, nil
}

// Upload decodes and installs one file. Decoding runs outside the workspace
// lock; on failure the previously active file stays in place.
func (s *Service) Upload(ctx context.Context, workspaceID, name string, data []byte) (FileInfo, error) {
	ws, err := s.lookup(workspaceID)
	if err != nil {
		return FileInfo{}, err
	}

	entry := ledger.Entry{WorkspaceID: workspaceID, FileName: name, SizeBytes: int64(len(data))}

	snap, err := s.load(name, data)
	if err != nil {
		var decodeErr *decode.Error
		if errors.As(err, &decodeErr) {
			entry.Format = decodeErr.Format
		}
		entry.Status = ledger.StatusFailed
		entry.Error = err.Error()
		s.record(ctx, entry)
		slog.Warn("upload rejected", "workspace_id", workspaceID, "file", name, "error", err)
		return FileInfo{}, err
	}

	lf := &loadedFile{views: view.NewSynchronizer(snap), size: len(data), loadedAt: time.Now()}

	ws.mu.Lock()
	ws.files[name] = lf
	ws.active = name
	info := lf.info(true)
	update := lf.views.Current()
	msg := ws.message(MessageLoaded, name, &update)
	ws.mu.Unlock()

	entry.Format = snap.Format
	entry.Records = len(snap.Records)
	entry.GPSPoints = len(snap.GPS)
	entry.Status = ledger.StatusOK
	s.record(ctx, entry)

	slog.Info("file loaded",
		"workspace_id", workspaceID,
		"file", name,
		"format", snap.Format,
		"records", len(snap.Records),
		"gps_points", len(snap.GPS),
		"fields", len(snap.Fields),
	)
	s.publish(msg)
	return info, nil
}

// Files lists loaded files in natural name order.
func (s *Service) Files(workspaceID string) ([]FileInfo, error) {
	ws, err := s.lookup(workspaceID)
	if err != nil {
		return nil, err
	}

	ws.mu.Lock()
	defer ws.mu.Unlock()

	files := make([]FileInfo, 0, len(ws.files))
	for name, lf := range ws.files {
		files = append(files, lf.info(name == ws.active))
	}
	sort.Slice(files, func(i, j int) bool { return natural.Less(files[i].Name, files[j].Name) })
	return files, nil
}

// Activate switches the active file. Each file keeps its own selection.
func (s *Service) Activate(workspaceID, name string) (State, error) {
	ws, err := s.lookup(workspaceID)
	if err != nil {
		return State{}, err
	}

	ws.mu.Lock()
	lf, ok := ws.files[name]
	if !ok {
		ws.mu.Unlock()
		return State{}, fmt.Errorf("%w: %s", ErrFileNotFound, name)
	}
	ws.active = name
	state := lf.state()
	update := state.View
	msg := ws.message(MessageActivated, name, &update)
	ws.mu.Unlock()

	s.publish(msg)
	return state, nil
}

func (s *Service) State(workspaceID string) (State, error) {
	var state State
	err := s.withActive(workspaceID, func(_ *workspace, lf *loadedFile) error {
		state = lf.state()
		return nil
	})
	return state, err
}

// Select applies a range event to the active file. A nil bound resets.
func (s *Service) Select(workspaceID string, ev view.RangeEvent) (view.Update, error) {
	var (
		update view.Update
		msg    *Message
	)
	err := s.withActive(workspaceID, func(ws *workspace, lf *loadedFile) error {
		var err error
		update, err = lf.views.Apply(ev)
		if err != nil || !update.Changed {
			return err
		}
		m := ws.message(MessageSelection, ws.active, &update)
		msg = &m
		return nil
	})
	if err != nil {
		return update, err
	}
	if msg != nil {
		s.publish(*msg)
	}
	return update, nil
}

func (s *Service) Reset(workspaceID string) (view.Update, error) {
	return s.Select(workspaceID, view.RangeEvent{})
}

func (s *Service) Hover(workspaceID string, index int) (view.Cursor, error) {
	var cursor view.Cursor
	err := s.withActive(workspaceID, func(_ *workspace, lf *loadedFile) error {
		cursor = lf.views.Hover(view.HoverEvent{Index: index})
		return nil
	})
	return cursor, err
}

func (s *Service) Explorer(workspaceID, dataset string, page int) (view.ExplorerPage, error) {
	var out view.ExplorerPage
	err := s.withActive(workspaceID, func(_ *workspace, lf *loadedFile) error {
		var err error
		out, err = view.Explorer(lf.views.Snapshot(), dataset, page, s.pageSize)
		return err
	})
	return out, err
}

// Uploads returns the ingest history of a workspace, newest first.
func (s *Service) Uploads(ctx context.Context, workspaceID string, limit int) ([]ledger.Entry, error) {
	if _, err := s.lookup(workspaceID); err != nil {
		return nil, err
	}
	return s.ledger.Recent(ctx, workspaceID, limit)
}

func (s *Service) load(name string, data []byte) (*activity.Snapshot, error) {
	raw, err := s.registry.Decode(name, data)
	if err != nil {
		return nil, err
	}
	return activity.Normalize(name, raw)
}

func (s *Service) lookup(workspaceID string) (*workspace, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	ws, ok := s.workspaces[workspaceID]
	if !ok || s.expired(ws) {
		return nil, ErrWorkspaceNotFound
	}
	return ws, nil
}

// A workspace lives as long as the token issued with it.
func (s *Service) expired(ws *workspace) bool {
	return s.now().Sub(ws.createdAt) >= s.ttl
}

// Sweep drops expired workspaces and their snapshots.
func (s *Service) Sweep() int {
	s.mu.Lock()
	defer s.mu.Unlock()

	removed := 0
	for id, ws := range s.workspaces {
		if s.expired(ws) {
			delete(s.workspaces, id)
			removed++
		}
	}
	return removed
}

// RunJanitor sweeps every interval until ctx is done.
func (s *Service) RunJanitor(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if n := s.Sweep(); n > 0 {
				slog.Info("expired workspaces removed", "count", n)
			}
		}
	}
}

func (s *Service) withActive(workspaceID string, fn func(ws *workspace, lf *loadedFile) error) error {
	ws, err := s.lookup(workspaceID)
	if err != nil {
		return err
	}

	ws.mu.Lock()
	defer ws.mu.Unlock()

	lf, ok := ws.files[ws.active]
	if !ok {
		return ErrNoSnapshot
	}
	return fn(ws, lf)
}

// message stamps the next sequence number. Callers hold ws.mu.
func (ws *workspace) message(typ, file string, update *view.Update) Message {
	ws.seq++
	return Message{Type: typ, WorkspaceID: ws.id, Seq: ws.seq, File: file, View: update}
}

func (s *Service) record(ctx context.Context, entry ledger.Entry) {
	if _, err := s.ledger.RecordIngest(ctx, entry); err != nil {
		slog.Warn("ingest ledger write failed", "workspace_id", entry.WorkspaceID, "file", entry.FileName, "error", err)
	}
}

func (s *Service) publish(msg Message) {
	if s.hub == nil {
		return
	}
	payload, err := json.Marshal(msg)
	if err != nil {
		slog.Error("encode stream message", "type", msg.Type, "error", err)
		return
	}
	s.hub.Broadcast(msg.WorkspaceID, payload)
}

func (lf *loadedFile) info(active bool) FileInfo {
	snap := lf.views.Snapshot()
	return FileInfo{
		Name:      snap.Name,
		Format:    snap.Format,
		SizeBytes: lf.size,
		Records:   len(snap.Records),
		GPSPoints: len(snap.GPS),
		Fields:    snap.Fields,
		Start:     snap.Start,
		End:       snap.End,
		Bounds:    snap.Bounds,
		Active:    active,
		LoadedAt:  lf.loadedAt,
	}
}

func (lf *loadedFile) state() State {
	snap := lf.views.Snapshot()
	labels := make([]string, 0, len(snap.Fields))
	for _, f := range snap.Fields {
		labels = append(labels, view.FormatLabel(f))
	}
	return State{
		File:   lf.info(true),
		Labels: labels,
		Chart:  view.Chart(snap),
		Trace:  view.Trace(snap),
		Laps:   view.Laps(snap),
		View:   lf.views.Current(),
	}
}
