package database

import (
	"context"
	"fmt"
	"strings"

	"github.com/rmasand0/Terraform-Feature-Lag-Tracker/app/cloud"
	"github.com/rmasand0/Terraform-Feature-Lag-Tracker/app/tracker"
)

var _ RecordRepository = (*recordRepository)(nil)

// recordRepository mirrors the snapshot into SQLite for the API.
type recordRepository struct {
	db *DB
}

func NewRecordRepository(db *DB) RecordRepository {
	return &recordRepository{db: db}
}

// Save replaces the mirrored records, keeping the given order.
func (r *recordRepository) Save(ctx context.Context, records []tracker.Record) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, `DELETE FROM records`); err != nil {
		return fmt.Errorf("failed to clear records: %w", err)
	}

	stmt, err := tx.PrepareContext(ctx, `
		INSERT INTO records (cloud, feature, id, service, link, status, version, lag, date, position)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`)
	if err != nil {
		return fmt.Errorf("failed to prepare statement: %w", err)
	}
	defer stmt.Close()

	for i, record := range records {
		_, err := stmt.ExecContext(ctx, record.Cloud.String(), record.Feature, record.ID, record.Service,
			record.Link, record.Status, record.Version, record.Lag, record.Date, i)
		if err != nil {
			return fmt.Errorf("failed to insert record %s: %w", record.ID, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit records: %w", err)
	}
	return nil
}

func (r *recordRepository) Load(ctx context.Context) ([]tracker.Record, error) {
	return r.GetRecords(ctx, RecordFilter{})
}

func (r *recordRepository) GetRecords(ctx context.Context, filter RecordFilter) ([]tracker.Record, error) {
	var (
		where []string
		args  []any
	)
	if filter.Cloud != "" {
		where = append(where, "cloud = ?")
		args = append(args, filter.Cloud)
	}
	if filter.Status != "" {
		where = append(where, "status = ?")
		args = append(args, filter.Status)
	}

	query := `SELECT id, cloud, service, feature, link, status, version, lag, date FROM records`
	if len(where) > 0 {
		query += " WHERE " + strings.Join(where, " AND ")
	}
	query += " ORDER BY position"
	if filter.Limit > 0 {
		query += " LIMIT ?"
		args = append(args, filter.Limit)
	}

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query records: %w", err)
	}
	defer rows.Close()

	records := []tracker.Record{}
	for rows.Next() {
		var (
			record    tracker.Record
			cloudName string
		)
		err := rows.Scan(&record.ID, &cloudName, &record.Service, &record.Feature, &record.Link,
			&record.Status, &record.Version, &record.Lag, &record.Date)
		if err != nil {
			return nil, fmt.Errorf("failed to scan record: %w", err)
		}
		if record.Cloud, err = cloud.Parse(cloudName); err != nil {
			return nil, fmt.Errorf("failed to scan record %s: %w", record.ID, err)
		}
		records = append(records, record)
	}
	return records, rows.Err()
}

// GetRecordStats aggregates records per cloud, ordered by cloud name.
func (r *recordRepository) GetRecordStats(ctx context.Context) ([]CloudStats, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT cloud,
			COUNT(*),
			COALESCE(SUM(CASE WHEN status = ? THEN 1 ELSE 0 END), 0),
			COALESCE(AVG(CASE WHEN status = ? THEN lag END), 0)
		FROM records
		GROUP BY cloud
		ORDER BY cloud
	`, tracker.Supported.String(), tracker.Supported.String())
	if err != nil {
		return nil, fmt.Errorf("failed to query record stats: %w", err)
	}
	defer rows.Close()

	stats := []CloudStats{}
	for rows.Next() {
		var s CloudStats
		if err := rows.Scan(&s.Cloud, &s.Total, &s.Supported, &s.AverageLag); err != nil {
			return nil, fmt.Errorf("failed to scan record stats: %w", err)
		}
		s.NotSupported = s.Total - s.Supported
		stats = append(stats, s)
	}
	return stats, rows.Err()
}
