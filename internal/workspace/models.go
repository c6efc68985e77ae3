package workspace

import (
	"time"

	"backend-trailscope/internal/activity"
	"backend-trailscope/internal/auth"
	"backend-trailscope/internal/shared/geo"
	"backend-trailscope/internal/view"
)

type Created struct {
	WorkspaceID string    `json:"workspace_id"`
	CreatedAt   time.Time `json:"created_at"`
	auth.TokenResponse
}

type FileInfo struct {
	Name      string           `json:"name"`
	Format    string           `json:"format"`
	SizeBytes int              `json:"size_bytes"`
	Records   int              `json:"records"`
	GPSPoints int              `json:"gps_points"`
	Fields    []string         `json:"fields"`
	Start     activity.Seconds `json:"start"`
	End       activity.Seconds `json:"end"`
	Bounds    *geo.Bounds      `json:"bounds,omitempty"`
	Active    bool             `json:"active"`
	LoadedAt  time.Time        `json:"loaded_at"`
}

// State is everything the front-end needs to redraw after a load or a file
// switch.
type State struct {
	File   FileInfo          `json:"file"`
	Labels []string          `json:"labels"`
	Chart  view.ChartPayload `json:"chart"`
	Trace  view.TracePayload `json:"trace"`
	Laps   view.LapsPayload  `json:"laps"`
	View   view.Update       `json:"view"`
}

type UploadResult struct {
	Name  string    `json:"name"`
	OK    bool      `json:"ok"`
	Error string    `json:"error,omitempty"`
	File  *FileInfo `json:"file,omitempty"`
}

const (
	MessageLoaded    = "loaded"
	MessageActivated = "activated"
	MessageSelection = "selection"
)

// Message is what connected sockets receive. Seq grows by one per message
// within a workspace; clients drop anything older than what they applied.
type Message struct {
	Type        string       `json:"type"`
	WorkspaceID string       `json:"workspace_id"`
	Seq         uint64       `json:"seq"`
	File        string       `json:"file"`
	View        *view.Update `json:"view,omitempty"`
}
