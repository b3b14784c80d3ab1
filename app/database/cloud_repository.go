package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"
)

var _ CloudRepository = (*cloudRepository)(nil)

type cloudRepository struct {
	db *DB
}

func NewCloudRepository(db *DB) CloudRepository {
	return &cloudRepository{db: db}
}

// UpsertCloud registers a cloud or updates its repository, keeping its
// fetch schedule.
func (r *cloudRepository) UpsertCloud(ctx context.Context, name, repository string) error {
	now := formatTime(timeNow())
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO clouds (name, repository, created_at, updated_at)
		VALUES (?, ?, ?, ?)
		ON CONFLICT (name) DO UPDATE SET
			repository = excluded.repository,
			updated_at = excluded.updated_at
	`, name, repository, now, now)
	if err != nil {
		return fmt.Errorf("failed to upsert cloud: %w", err)
	}
	return nil
}

func (r *cloudRepository) UpdateFetchTimes(ctx context.Context, name string, fetchedAt, nextFetch time.Time) error {
	result, err := r.db.ExecContext(ctx, `
		UPDATE clouds
		SET last_fetched_at = ?, next_fetch_at = ?, updated_at = ?
		WHERE name = ?
	`, formatTime(fetchedAt), formatTime(nextFetch), formatTime(timeNow()), name)
	if err != nil {
		return fmt.Errorf("failed to update fetch times: %w", err)
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get affected rows: %w", err)
	}
	if affected == 0 {
		return fmt.Errorf("cloud '%s' not found", name)
	}
	return nil
}

// GetCloud returns nil, nil when the cloud is not registered.
func (r *cloudRepository) GetCloud(ctx context.Context, name string) (*Cloud, error) {
	row := r.db.QueryRowContext(ctx, `
		SELECT name, repository, last_fetched_at, next_fetch_at, created_at, updated_at
		FROM clouds
		WHERE name = ?
	`, name)

	cloud, err := scanCloud(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get cloud: %w", err)
	}
	return cloud, nil
}

func (r *cloudRepository) GetClouds(ctx context.Context) ([]Cloud, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT name, repository, last_fetched_at, next_fetch_at, created_at, updated_at
		FROM clouds
		ORDER BY name
	`)
	if err != nil {
		return nil, fmt.Errorf("failed to query clouds: %w", err)
	}
	defer rows.Close()

	var clouds []Cloud
	for rows.Next() {
		cloud, err := scanCloud(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan cloud: %w", err)
		}
		clouds = append(clouds, *cloud)
	}
	return clouds, rows.Err()
}

type scanner interface {
	Scan(dest ...any) error
}

func scanCloud(s scanner) (*Cloud, error) {
	var (
		cloud                  Cloud
		lastFetched, nextFetch sql.NullString
		createdAt, updatedAt   string
	)
	if err := s.Scan(&cloud.Name, &cloud.Repository, &lastFetched, &nextFetch, &createdAt, &updatedAt); err != nil {
		return nil, err
	}

	var err error
	if cloud.LastFetchedAt, err = parseNullTime(lastFetched); err != nil {
		return nil, err
	}
	if cloud.NextFetchAt, err = parseNullTime(nextFetch); err != nil {
		return nil, err
	}
	if cloud.CreatedAt, err = parseTime(createdAt); err != nil {
		return nil, err
	}
	if cloud.UpdatedAt, err = parseTime(updatedAt); err != nil {
		return nil, err
	}
	return &cloud, nil
}

func parseNullTime(s sql.NullString) (*time.Time, error) {
	if !s.Valid {
		return nil, nil
	}
	t, err := parseTime(s.String)
	if err != nil {
		return nil, err
	}
	return &t, nil
}
