package repository

import (
	"context"
	"strings"

	"github.com/jackc/pgx/v5/pgxpool"
)

var migrationStatements = []string{
	`DO $$ BEGIN CREATE TYPE match_status AS ENUM ('scheduled', 'live', 'completed'); EXCEPTION WHEN duplicate_object THEN NULL; END $$`,
	`DO $$ BEGIN CREATE TYPE approval_status AS ENUM ('pending', 'approved', 'rejected'); EXCEPTION WHEN duplicate_object THEN NULL; END $$`,
	`CREATE TABLE IF NOT EXISTS matches (
		id UUID PRIMARY KEY DEFAULT gen_random_uuid(),
		home_team TEXT NOT NULL,
		away_team TEXT NOT NULL,
		home_score INTEGER NOT NULL DEFAULT 0,
		away_score INTEGER NOT NULL DEFAULT 0,
		status match_status NOT NULL DEFAULT 'scheduled',
		transcript TEXT NOT NULL DEFAULT '',
		created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
		updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
	)`,
	`CREATE INDEX IF NOT EXISTS idx_matches_live ON matches (status) WHERE status = 'live'`,
	`CREATE TABLE IF NOT EXISTS videos (
		id UUID PRIMARY KEY DEFAULT gen_random_uuid(),
		match_id UUID NOT NULL REFERENCES matches(id) ON DELETE CASCADE,
		url TEXT NOT NULL,
		duration_seconds DOUBLE PRECISION NOT NULL DEFAULT 0,
		created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
		updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
	)`,
	`CREATE INDEX IF NOT EXISTS idx_videos_match ON videos (match_id)`,
	`CREATE TABLE IF NOT EXISTS incidents (
		id TEXT PRIMARY KEY,
		match_id UUID NOT NULL REFERENCES matches(id) ON DELETE CASCADE,
		video_id UUID REFERENCES videos(id) ON DELETE SET NULL,
		event_type TEXT NOT NULL,
		minute INTEGER NOT NULL DEFAULT 0,
		second INTEGER NOT NULL DEFAULT 0,
		description TEXT NOT NULL DEFAULT '',
		approval_status approval_status NOT NULL DEFAULT 'pending',
		clip_url TEXT NOT NULL DEFAULT '',
		metadata JSONB NOT NULL DEFAULT '{}',
		created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
		updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
	)`,
	`CREATE INDEX IF NOT EXISTS idx_incidents_match ON incidents (match_id, minute, second)`,
	`CREATE TABLE IF NOT EXISTS reports (
		id UUID PRIMARY KEY DEFAULT gen_random_uuid(),
		match_id UUID NOT NULL REFERENCES matches(id) ON DELETE CASCADE,
		incident_count INTEGER NOT NULL DEFAULT 0,
		clip_count INTEGER NOT NULL DEFAULT 0,
		duration_seconds DOUBLE PRECISION NOT NULL DEFAULT 0,
		transcript_words INTEGER NOT NULL DEFAULT 0,
		created_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
	)`,
	`CREATE INDEX IF NOT EXISTS idx_reports_match ON reports (match_id)`,
}

func RunMigration(ctx context.Context, pool *pgxpool.Pool) error {
	for _, s := range migrationStatements {
		stmt := strings.TrimSpace(s)
		if stmt == "" {
			continue
		}
		if _, err := pool.Exec(ctx, stmt); err != nil {
			return err
		}
	}
	return nil
}
