package service

import (
	"time"

	perr "sarbatch/internal/platform/errors"
	ptime "sarbatch/internal/platform/time"
	"sarbatch/internal/services/scheduler/domain"
)

// SiteView is the JSON shape of one site outcome
type SiteView struct {
	SiteID      string     `json:"site_id"`
	Status      string     `json:"status"`
	Cutoff      *time.Time `json:"cutoff,omitempty"`
	Candidates  int        `json:"candidates"`
	Unprocessed int        `json:"unprocessed"`
	Accepted    int        `json:"accepted"`
	Failed      int        `json:"failed"`
	Attempts    int        `json:"attempts,omitempty"`
	ElapsedMS   int64      `json:"elapsed_ms"`
	Reason      string     `json:"reason,omitempty"`
	Code        string     `json:"code,omitempty"`
}

// RunView is the JSON shape of a run
type RunView struct {
	RunID    string        `json:"run_id"`
	Source   string        `json:"source"` // memory | ledger
	Started  *time.Time    `json:"started,omitempty"`
	Finished *time.Time    `json:"finished,omitempty"`
	Totals   domain.Totals `json:"totals"`
	Sites    []SiteView    `json:"sites"`
}

func ts(t time.Time) *time.Time { return ptime.Ptr(t.UTC()) }

// FromReport converts an in-memory report
func FromReport(r domain.Report) RunView {
	v := RunView{
		RunID:    r.RunID,
		Source:   "memory",
		Started:  ts(r.Started),
		Finished: ts(r.Finished),
		Totals:   r.Totals(),
		Sites:    make([]SiteView, 0, len(r.Results)),
	}
	for _, res := range r.Results {
		sv := SiteView{
			SiteID:      res.SiteID,
			Status:      res.Status(),
			Cutoff:      ts(res.Cutoff),
			Candidates:  res.Candidates,
			Unprocessed: res.Unprocessed,
			Accepted:    res.Accepted,
			Failed:      res.Failed,
			Attempts:    res.Attempts,
			ElapsedMS:   res.Elapsed.Milliseconds(),
			Reason:      detail(res),
		}
		if res.Err != nil {
			sv.Code = perr.CodeOf(res.Err).String()
		}
		if sv.Reason == "-" {
			sv.Reason = ""
		}
		v.Sites = append(v.Sites, sv)
	}
	return v
}

// FromLedger converts ledger rows. Rows still running count as neither ok nor failed
func FromLedger(runID string, rows []domain.SiteRun) RunView {
	v := RunView{RunID: runID, Source: "ledger", Sites: make([]SiteView, 0, len(rows))}
	var started, finished time.Time
	for _, row := range rows {
		if started.IsZero() || row.Started.Before(started) {
			started = row.Started
		}
		if row.Finished.After(finished) {
			finished = row.Finished
		}
		v.Totals.Sites++
		switch row.Status {
		case domain.StatusOK:
			v.Totals.OK++
		case domain.StatusSkipped:
			v.Totals.Skipped++
		case domain.StatusError:
			v.Totals.Failed++
		}
		v.Totals.Accepted += row.Accepted
		v.Totals.SceneFailures += row.Failed
		v.Sites = append(v.Sites, SiteView{
			SiteID:      row.SiteID,
			Status:      row.Status,
			Cutoff:      ts(row.Cutoff),
			Candidates:  row.Candidates,
			Unprocessed: row.Unprocessed,
			Accepted:    row.Accepted,
			Failed:      row.Failed,
			ElapsedMS:   row.ElapsedMS,
			Reason:      row.Error,
		})
	}
	v.Started, v.Finished = ts(started), ts(finished)
	return v
}
