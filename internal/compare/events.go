package compare

import (
	"context"
	"encoding/json"

	"github.com/rotisserie/eris"

	"github.com/nodescope/area-compare/internal/chart"
	"github.com/nodescope/area-compare/internal/model"
	"github.com/nodescope/area-compare/internal/sampler"
)

// EventType names a user action.
type EventType string

const (
	EventLoadCity    EventType = "load_city"
	EventToggleArea  EventType = "toggle_area"
	EventCompare     EventType = "compare"
	EventToggleChart EventType = "toggle_chart"
	EventReset       EventType = "reset"
)

// ErrUnknownEvent is returned by Dispatch for an unrecognized event type.
var ErrUnknownEvent = eris.New("unknown event")

// Event is one user action as it arrives over the wire.
type Event struct {
	Type    EventType      `json:"type"`
	City    string         `json:"city,omitempty"`
	AreaID  string         `json:"area_id,omitempty"`
	Profile *model.Profile `json:"profile,omitempty"`
}

// AreaView is a loaded area as shown to the user.
type AreaView struct {
	ID       string `json:"id"`
	Name     string `json:"name,omitempty"`
	Color    string `json:"color"`
	Selected bool   `json:"selected"`
}

// Snapshot is a read-only copy of the session.
type Snapshot struct {
	State         State               `json:"state"`
	City          string              `json:"city,omitempty"`
	Areas         []AreaView          `json:"areas"`
	Selection     []string            `json:"selection"`
	RunID         string              `json:"run_id,omitempty"`
	Progress      []sampler.Progress  `json:"progress"`
	ActiveChart   chart.Kind          `json:"active_chart"`
	Series        []model.ChartSeries `json:"series"`
	Notifications []Notification      `json:"notifications"`
}

// MarshalJSON encodes the snapshot; progress strings are added for display.
func (s Snapshot) MarshalJSON() ([]byte, error) {
	type plain Snapshot
	labels := make([]string, len(s.Progress))
	for i, p := range s.Progress {
		labels[i] = p.String()
	}
	return json.Marshal(struct {
		plain
		ProgressLabels []string `json:"progress_labels"`
	}{plain(s), labels})
}

// Snapshot returns the current session view.
func (c *Controller) Snapshot() Snapshot {
	c.mu.Lock()
	defer c.mu.Unlock()

	snap := Snapshot{
		State:         c.state,
		City:          c.city,
		Areas:         make([]AreaView, 0, len(c.order)),
		Selection:     c.selection.IDs(),
		ActiveChart:   c.active,
		Series:        model.CloneSeries(c.series),
		Notifications: c.notes.list(),
	}
	snap.Progress = append([]sampler.Progress(nil), c.progress[:]...)
	for _, id := range c.order {
		a := c.areas[id]
		snap.Areas = append(snap.Areas, AreaView{
			ID:       a.ID,
			Name:     a.Name,
			Color:    a.Color,
			Selected: c.selection.Contains(id),
		})
	}
	if c.run != nil {
		snap.RunID = c.run.id
	}
	return snap
}

// Dispatch applies ev and returns the resulting snapshot. Compare events
// start the run and return immediately; poll Snapshot for progress.
func (c *Controller) Dispatch(ctx context.Context, ev Event) (Snapshot, error) {
	var err error
	switch ev.Type {
	case EventLoadCity:
		_, err = c.LoadCity(ctx, ev.City)
	case EventToggleArea:
		_, err = c.ToggleArea(ev.AreaID)
	case EventCompare:
		profile := c.opts.Profile
		if ev.Profile != nil {
			profile = *ev.Profile
		}
		_, err = c.StartCompare(ctx, profile)
	case EventToggleChart:
		c.ToggleChartType()
	case EventReset:
		c.Reset()
	default:
		err = eris.Wrapf(ErrUnknownEvent, "compare: event %q", ev.Type)
	}
	return c.Snapshot(), err
}
