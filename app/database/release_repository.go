package database

import (
	"context"
	"fmt"
	"strings"
)

var _ ReleaseRepository = (*releaseRepository)(nil)

type releaseRepository struct {
	db *DB
}

func NewReleaseRepository(db *DB) ReleaseRepository {
	return &releaseRepository{db: db}
}

// UpsertReleases caches releases by (repository, version) and reports how
// many were not cached before. Release notes can be edited after
// publication, so bodies are refreshed.
func (r *releaseRepository) UpsertReleases(ctx context.Context, releases []Release) (int, error) {
	if len(releases) == 0 {
		return 0, nil
	}

	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	repositories := releaseRepositories(releases)

	before, err := countReleases(ctx, tx, repositories)
	if err != nil {
		return 0, err
	}

	stmt, err := tx.PrepareContext(ctx, `
		INSERT INTO releases (repository, version, published_at, body, fetched_at)
		VALUES (?, ?, ?, ?, ?)
		ON CONFLICT (repository, version) DO UPDATE SET
			published_at = excluded.published_at,
			body = excluded.body,
			fetched_at = excluded.fetched_at
	`)
	if err != nil {
		return 0, fmt.Errorf("failed to prepare statement: %w", err)
	}
	defer stmt.Close()

	now := formatTime(timeNow())
	for _, release := range releases {
		if _, err := stmt.ExecContext(ctx, release.Repository, release.Version, release.PublishedAt, release.Body, now); err != nil {
			return 0, fmt.Errorf("failed to upsert release %s: %w", release.Version, err)
		}
	}

	after, err := countReleases(ctx, tx, repositories)
	if err != nil {
		return 0, err
	}

	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("failed to commit releases: %w", err)
	}
	return after - before, nil
}

func (r *releaseRepository) GetReleases(ctx context.Context, repository string) ([]Release, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT repository, version, published_at, body
		FROM releases
		WHERE repository = ?
		ORDER BY published_at, version
	`, repository)
	if err != nil {
		return nil, fmt.Errorf("failed to query releases: %w", err)
	}
	defer rows.Close()

	var releases []Release
	for rows.Next() {
		var release Release
		if err := rows.Scan(&release.Repository, &release.Version, &release.PublishedAt, &release.Body); err != nil {
			return nil, fmt.Errorf("failed to scan release: %w", err)
		}
		releases = append(releases, release)
	}
	return releases, rows.Err()
}

func (r *releaseRepository) GetReleaseCount(ctx context.Context, repository string) (int, error) {
	return countReleases(ctx, r.db, []string{repository})
}

func releaseRepositories(releases []Release) []string {
	seen := make(map[string]struct{})
	var repositories []string
	for _, release := range releases {
		if _, ok := seen[release.Repository]; ok {
			continue
		}
		seen[release.Repository] = struct{}{}
		repositories = append(repositories, release.Repository)
	}
	return repositories
}

// countReleases counts the cached releases of the given repositories only,
// so concurrent upserts of other repositories do not skew the difference.
func countReleases(ctx context.Context, q queryRower, repositories []string) (int, error) {
	args := make([]any, len(repositories))
	for i, repository := range repositories {
		args[i] = repository
	}
	placeholders := strings.TrimSuffix(strings.Repeat("?, ", len(repositories)), ", ")

	var count int
	err := q.QueryRowContext(ctx, `SELECT COUNT(*) FROM releases WHERE repository IN (`+placeholders+`)`, args...).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("failed to count releases: %w", err)
	}
	return count, nil
}
