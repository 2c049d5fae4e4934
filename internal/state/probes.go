package state

import (
	"context"
	"database/sql"
	"floatfetch/internal/edge"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// ProbeRecord is one stored edge measurement.
type ProbeRecord struct {
	RunID    string
	Host     string
	Label    string
	Latency  time.Duration
	Err      string
	Selected bool
	ProbedAt time.Time
}

// Reachable reports whether the probe succeeded.
func (r ProbeRecord) Reachable() bool {
	return r.Err == ""
}

// RecordProbes stores one probing run. selectedHost marks the winner and may
// be empty. It returns the run id shared by the rows.
func RecordProbes(ctx context.Context, measurements []edge.Measurement, selectedHost string, at time.Time) (string, error) {
	runID := uuid.New().String()
	err := withTx(ctx, func(tx *sql.Tx) error {
		stmt, err := tx.PrepareContext(ctx, `
			INSERT INTO edge_probes (run_id, host, label, latency_ms, error, selected, probed_at)
			VALUES (?, ?, ?, ?, ?, ?, ?)`)
		if err != nil {
			return fmt.Errorf("prepare insert: %w", err)
		}
		defer stmt.Close()

		for _, m := range measurements {
			var latency sql.NullInt64
			var errText sql.NullString
			if m.Err != nil {
				errText = sql.NullString{String: m.Err.Error(), Valid: true}
			} else {
				latency = sql.NullInt64{Int64: m.Latency.Milliseconds(), Valid: true}
			}
			selected := 0
			if m.Err == nil && m.Candidate.Host == selectedHost {
				selected = 1
			}
			if _, err := stmt.ExecContext(ctx, runID, m.Candidate.Host, m.Candidate.Label, latency, errText, selected, at.Unix()); err != nil {
				return fmt.Errorf("insert probe %s: %w", m.Candidate.Host, err)
			}
		}
		return nil
	})
	if err != nil {
		return "", err
	}
	return runID, nil
}

// RecentProbes returns up to limit probes, newest first.
func RecentProbes(ctx context.Context, limit int) ([]ProbeRecord, error) {
	d, err := GetDB()
	if err != nil {
		return nil, err
	}
	if limit <= 0 {
		limit = 50
	}

	rows, err := d.QueryContext(ctx, `
		SELECT run_id, host, label, latency_ms, error, selected, probed_at
		FROM edge_probes
		ORDER BY probed_at DESC, id DESC
		LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("query probes: %w", err)
	}
	defer rows.Close()

	var records []ProbeRecord
	for rows.Next() {
		var (
			r        ProbeRecord
			label    sql.NullString
			latency  sql.NullInt64
			errText  sql.NullString
			selected int
			probedAt int64
		)
		if err := rows.Scan(&r.RunID, &r.Host, &label, &latency, &errText, &selected, &probedAt); err != nil {
			return nil, fmt.Errorf("scan probe: %w", err)
		}
		r.Label = label.String
		r.Latency = time.Duration(latency.Int64) * time.Millisecond
		r.Err = errText.String
		r.Selected = selected == 1
		r.ProbedAt = time.Unix(probedAt, 0)
		records = append(records, r)
	}
	return records, rows.Err()
}

// PruneProbes deletes probes older than before and returns how many went.
func PruneProbes(ctx context.Context, before time.Time) (int64, error) {
	var n int64
	err := withTx(ctx, func(tx *sql.Tx) error {
		res, err := tx.ExecContext(ctx, `DELETE FROM edge_probes WHERE probed_at < ?`, before.Unix())
		if err != nil {
			return fmt.Errorf("prune probes: %w", err)
		}
		n, err = res.RowsAffected()
		return err
	})
	return n, err
}
