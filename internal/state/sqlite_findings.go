package state

import (
	"fmt"
	"log/slog"
	"time"

	"github.com/leapstack-labs/leapfuzz/pkg/core"
)

// RecordFinding stores an oracle divergence. ID and CreatedAt are filled in
// when empty.
func (s *SQLiteStore) RecordFinding(f *core.Finding) error {
	if s.db == nil {
		return fmt.Errorf("database not opened")
	}
	if f.ID == "" {
		f.ID = generateID()
	}
	if f.CreatedAt.IsZero() {
		f.CreatedAt = time.Now().UTC()
	}

	s.logger.Debug("recording finding",
		slog.String("run_id", f.RunID),
		slog.String("oracle", f.Oracle),
		slog.Int64("step", f.Step))

	_, err := s.db.Exec(
		`INSERT INTO findings (id, run_id, step, oracle, first_sql, second_sql, first_digest, second_digest, detail, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		f.ID, f.RunID, f.Step, f.Oracle, f.FirstSQL, f.SecondSQL,
		f.FirstDigest, f.SecondDigest, f.Detail, f.CreatedAt.UnixNano(),
	)
	if err != nil {
		return fmt.Errorf("failed to record finding: %w", err)
	}
	return nil
}

// ListFindings returns the findings of a run in step order.
func (s *SQLiteStore) ListFindings(runID string) ([]*core.Finding, error) {
	if s.db == nil {
		return nil, fmt.Errorf("database not opened")
	}

	rows, err := s.db.Query(
		`SELECT id, run_id, step, oracle, first_sql, second_sql, first_digest, second_digest, detail, created_at
		 FROM findings WHERE run_id = ? ORDER BY step, rowid`,
		runID,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to list findings: %w", err)
	}
	defer rows.Close()

	var findings []*core.Finding
	for rows.Next() {
		var (
			f         core.Finding
			createdAt int64
		)
		if err := rows.Scan(&f.ID, &f.RunID, &f.Step, &f.Oracle, &f.FirstSQL, &f.SecondSQL,
			&f.FirstDigest, &f.SecondDigest, &f.Detail, &createdAt); err != nil {
			return nil, fmt.Errorf("failed to scan finding: %w", err)
		}
		f.CreatedAt = time.Unix(0, createdAt).UTC()
		findings = append(findings, &f)
	}
	return findings, rows.Err()
}
