package store

import (
	"database/sql"
	"time"
)

// RecordJob inserts a new ledger row. CreatedAt is stamped when unset.
func (db *DB) RecordJob(j *Job) error {
	if j.CreatedAt == 0 {
		j.CreatedAt = time.Now().UnixMilli()
	}
	_, err := db.Exec(`
		INSERT INTO jobs (id, job_id, status, chat_count, message_count, archive_bytes, results_url, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		j.ID, j.JobID, j.Status, j.ChatCount, j.MessageCount, j.ArchiveBytes, j.ResultsURL, j.CreatedAt)
	return err
}

// ListJobs returns the most recent runs first.
func (db *DB) ListJobs(limit int) ([]Job, error) {
	if limit <= 0 {
		limit = 20
	}
	rows, err := db.Query(`
		SELECT id, job_id, status, chat_count, message_count, archive_bytes, results_url, created_at
		FROM jobs
		ORDER BY created_at DESC, id
		LIMIT ?`, limit)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()

	var jobs []Job
	for rows.Next() {
		var j Job
		if err := rows.Scan(&j.ID, &j.JobID, &j.Status, &j.ChatCount, &j.MessageCount, &j.ArchiveBytes, &j.ResultsURL, &j.CreatedAt); err != nil {
			return nil, err
		}
		jobs = append(jobs, j)
	}
	return jobs, rows.Err()
}

// GetJob returns a single run by local id, or nil when absent.
func (db *DB) GetJob(id string) (*Job, error) {
	var j Job
	err := db.QueryRow(`
		SELECT id, job_id, status, chat_count, message_count, archive_bytes, results_url, created_at
		FROM jobs
		WHERE id = ?`, id).
		Scan(&j.ID, &j.JobID, &j.Status, &j.ChatCount, &j.MessageCount, &j.ArchiveBytes, &j.ResultsURL, &j.CreatedAt)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &j, nil
}

// UpdateJobStatus moves a run to a new status.
func (db *DB) UpdateJobStatus(id, status string) error {
	_, err := db.Exec(`UPDATE jobs SET status = ? WHERE id = ?`, status, id)
	return err
}
