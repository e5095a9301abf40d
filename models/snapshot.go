package models

import "time"

// CycleState is the poll cycle state machine: Loading -> Success | Failed.
type CycleState string

const (
	StateLoading CycleState = "loading"
	StateSuccess CycleState = "success"
	StateFailed  CycleState = "failed"
)

// View tells presentation which placeholder or content to render.
type View string

const (
	ViewLoading     View = "loading"
	ViewReady       View = "ready"
	ViewNoActivity  View = "no_activity"
	ViewUnavailable View = "unavailable"
)

// Summary holds the aggregates derived locally from a sale list.
type Summary struct {
	TodaysVolumeEth   float64 `json:"todays_volume_eth"`
	TodaysSalesCount  int     `json:"todays_sales_count"`
	UniqueBuyers      int     `json:"unique_buyers"`
	BiggestSale       *Sale   `json:"biggest_sale"`
	FromToday         bool    `json:"from_today"`
	DisplayVolumeEth  float64 `json:"display_volume_eth"`
	DisplaySalesCount int64   `json:"display_sales_count"`
	DisplayBuyers     int64   `json:"display_buyers"`
}

// Snapshot is the total record handed to presentation for one cycle.
type Snapshot struct {
	CycleID     string     `json:"cycle_id"`
	State       CycleState `json:"state"`
	Stats       Stats      `json:"stats"`
	Sales       []Sale     `json:"sales"`
	Summary     Summary    `json:"summary"`
	Error       string     `json:"error,omitempty"`
	StartedAt   time.Time  `json:"started_at"`
	CompletedAt time.Time  `json:"completed_at,omitempty"`
}

// View maps the cycle outcome to what presentation should show. An empty but
// successful cycle is "no_activity", never "unavailable".
func (s Snapshot) View() View {
	switch s.State {
	case StateSuccess:
		if len(s.Sales) == 0 {
			return ViewNoActivity
		}
		return ViewReady
	case StateFailed:
		return ViewUnavailable
	default:
		return ViewLoading
	}
}

// LoadingSnapshot is published when a cycle starts.
func LoadingSnapshot(cycleID string, startedAt time.Time) Snapshot {
	return Snapshot{
		CycleID:   cycleID,
		State:     StateLoading,
		Stats:     ZeroStats(),
		Sales:     []Sale{},
		StartedAt: startedAt,
	}
}

// FailedSnapshot is the fixed zero/empty record of a failed cycle.
func FailedSnapshot(cycleID string, startedAt, completedAt time.Time, err error) Snapshot {
	msg := ""
	if err != nil {
		msg = err.Error()
	}
	return Snapshot{
		CycleID:     cycleID,
		State:       StateFailed,
		Stats:       ZeroStats(),
		Sales:       []Sale{},
		Summary:     Summary{},
		Error:       msg,
		StartedAt:   startedAt,
		CompletedAt: completedAt,
	}
}
