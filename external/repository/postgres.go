package repository

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/pitchlab/matchclip/internal/repository"
)

type PostgresRepository struct {
	pool *pgxpool.Pool
}

func NewPostgresRepository(pool *pgxpool.Pool) repository.Repository {
	return &PostgresRepository{pool: pool}
}

var matchColumns = map[string]bool{
	"home_score": true,
	"away_score": true,
	"status":     true,
}

var incidentColumns = map[string]bool{
	"video_id":        true,
	"event_type":      true,
	"minute":          true,
	"second":          true,
	"description":     true,
	"approval_status": true,
	"clip_url":        true,
}

var videoColumns = map[string]bool{
	"url":              true,
	"duration_seconds": true,
}

// buildUpdate renders a dynamic SET clause from a whitelisted field map.
// Keys are sorted so the statement text is stable for a given field set.
func buildUpdate(table string, allowed map[string]bool, fields map[string]any) (string, []any, error) {
	keys := make([]string, 0, len(fields))
	for k := range fields {
		if !allowed[k] {
			return "", nil, fmt.Errorf("column %s is not updatable on %s", k, table)
		}
		keys = append(keys, k)
	}
	if len(keys) == 0 {
		return "", nil, fmt.Errorf("no fields to update on %s", table)
	}
	sort.Strings(keys)

	query := fmt.Sprintf("UPDATE %s SET ", table)
	args := make([]any, 0, len(keys)+1)
	for i, k := range keys {
		if i > 0 {
			query += ", "
		}
		query += fmt.Sprintf("%s = $%d", k, i+1)
		args = append(args, fields[k])
	}
	query += fmt.Sprintf(", updated_at = NOW() WHERE id = $%d", len(keys)+1)
	return query, args, nil
}

func (r *PostgresRepository) CreateMatch(ctx context.Context, input repository.CreateMatchInput) (*repository.Match, error) {
	row := r.pool.QueryRow(ctx,
		`INSERT INTO matches (home_team, away_team)
		 VALUES ($1, $2)
		 RETURNING id, home_team, away_team, home_score, away_score, status, transcript, created_at, updated_at`,
		input.HomeTeam, input.AwayTeam)
	var m repository.Match
	err := row.Scan(&m.ID, &m.HomeTeam, &m.AwayTeam, &m.HomeScore, &m.AwayScore, &m.Status, &m.Transcript, &m.CreatedAt, &m.UpdatedAt)
	if err != nil {
		return nil, err
	}
	return &m, nil
}

func (r *PostgresRepository) GetMatch(ctx context.Context, matchID string) (*repository.Match, error) {
	row := r.pool.QueryRow(ctx,
		`SELECT id, home_team, away_team, home_score, away_score, status, transcript, created_at, updated_at
		 FROM matches WHERE id = $1`,
		matchID)
	var m repository.Match
	err := row.Scan(&m.ID, &m.HomeTeam, &m.AwayTeam, &m.HomeScore, &m.AwayScore, &m.Status, &m.Transcript, &m.CreatedAt, &m.UpdatedAt)
	if err != nil {
		if err == pgx.ErrNoRows {
			return nil, nil
		}
		return nil, err
	}
	return &m, nil
}

func (r *PostgresRepository) UpdateMatchFields(ctx context.Context, matchID string, fields map[string]any) error {
	query, args, err := buildUpdate("matches", matchColumns, fields)
	if err != nil {
		return err
	}
	_, err = r.pool.Exec(ctx, query, append(args, matchID)...)
	return err
}

func (r *PostgresRepository) SaveMatchTranscript(ctx context.Context, matchID, transcript string) error {
	_, err := r.pool.Exec(ctx,
		`UPDATE matches SET transcript = $2, updated_at = NOW() WHERE id = $1`,
		matchID, transcript)
	return err
}

func (r *PostgresRepository) CreateIncident(ctx context.Context, input repository.CreateIncidentInput) (*repository.Incident, error) {
	metadata, err := json.Marshal(input.Metadata)
	if err != nil {
		return nil, err
	}
	var videoID any
	if input.VideoID != "" {
		videoID = input.VideoID
	}
	row := r.pool.QueryRow(ctx,
		`INSERT INTO incidents (id, match_id, video_id, event_type, minute, second, description, approval_status, metadata)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		 RETURNING id, match_id, COALESCE(video_id::text, ''), event_type, minute, second, description, approval_status, clip_url, metadata, created_at, updated_at`,
		input.ID, input.MatchID, videoID, input.EventType, input.Minute, input.Second, input.Description, string(input.ApprovalStatus), metadata)
	return scanIncident(row)
}

func (r *PostgresRepository) UpdateIncidentFields(ctx context.Context, incidentID string, fields map[string]any) error {
	query, args, err := buildUpdate("incidents", incidentColumns, fields)
	if err != nil {
		return err
	}
	_, err = r.pool.Exec(ctx, query, append(args, incidentID)...)
	return err
}

func (r *PostgresRepository) DeleteIncident(ctx context.Context, incidentID string) error {
	_, err := r.pool.Exec(ctx, `DELETE FROM incidents WHERE id = $1`, incidentID)
	return err
}

func (r *PostgresRepository) ListIncidentsByMatch(ctx context.Context, matchID string) ([]repository.Incident, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT id, match_id, COALESCE(video_id::text, ''), event_type, minute, second, description, approval_status, clip_url, metadata, created_at, updated_at
		 FROM incidents WHERE match_id = $1 ORDER BY minute ASC, second ASC`,
		matchID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var list []repository.Incident
	for rows.Next() {
		inc, err := scanIncident(rows)
		if err != nil {
			return nil, err
		}
		list = append(list, *inc)
	}
	return list, rows.Err()
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanIncident(row rowScanner) (*repository.Incident, error) {
	var inc repository.Incident
	var metadata []byte
	err := row.Scan(&inc.ID, &inc.MatchID, &inc.VideoID, &inc.EventType, &inc.Minute, &inc.Second, &inc.Description, &inc.ApprovalStatus, &inc.ClipURL, &metadata, &inc.CreatedAt, &inc.UpdatedAt)
	if err != nil {
		return nil, err
	}
	if len(metadata) > 0 {
		if err := json.Unmarshal(metadata, &inc.Metadata); err != nil {
			return nil, fmt.Errorf("incident %s has malformed metadata: %w", inc.ID, err)
		}
	}
	return &inc, nil
}

func (r *PostgresRepository) CreateVideo(ctx context.Context, input repository.CreateVideoInput) (*repository.Video, error) {
	row := r.pool.QueryRow(ctx,
		`INSERT INTO videos (match_id, url, duration_seconds)
		 VALUES ($1, $2, $3)
		 RETURNING id, match_id, url, duration_seconds, created_at, updated_at`,
		input.MatchID, input.URL, input.DurationSeconds)
	var v repository.Video
	err := row.Scan(&v.ID, &v.MatchID, &v.URL, &v.DurationSeconds, &v.CreatedAt, &v.UpdatedAt)
	if err != nil {
		return nil, err
	}
	return &v, nil
}

func (r *PostgresRepository) UpdateVideoFields(ctx context.Context, videoID string, fields map[string]any) error {
	query, args, err := buildUpdate("videos", videoColumns, fields)
	if err != nil {
		return err
	}
	_, err = r.pool.Exec(ctx, query, append(args, videoID)...)
	return err
}

func (r *PostgresRepository) GetVideoByMatch(ctx context.Context, matchID string) (*repository.Video, error) {
	row := r.pool.QueryRow(ctx,
		`SELECT id, match_id, url, duration_seconds, created_at, updated_at
		 FROM videos WHERE match_id = $1 ORDER BY created_at DESC LIMIT 1`,
		matchID)
	var v repository.Video
	err := row.Scan(&v.ID, &v.MatchID, &v.URL, &v.DurationSeconds, &v.CreatedAt, &v.UpdatedAt)
	if err != nil {
		if err == pgx.ErrNoRows {
			return nil, nil
		}
		return nil, err
	}
	return &v, nil
}

func (r *PostgresRepository) CreateReport(ctx context.Context, input repository.CreateReportInput) (*repository.Report, error) {
	row := r.pool.QueryRow(ctx,
		`INSERT INTO reports (match_id, incident_count, clip_count, duration_seconds, transcript_words)
		 VALUES ($1, $2, $3, $4, $5)
		 RETURNING id, match_id, incident_count, clip_count, duration_seconds, transcript_words, created_at`,
		input.MatchID, input.IncidentCount, input.ClipCount, input.DurationSeconds, input.TranscriptWords)
	var rep repository.Report
	err := row.Scan(&rep.ID, &rep.MatchID, &rep.IncidentCount, &rep.ClipCount, &rep.DurationSeconds, &rep.TranscriptWords, &rep.CreatedAt)
	if err != nil {
		return nil, err
	}
	return &rep, nil
}
