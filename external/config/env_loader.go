package config

import (
	"fmt"

	"github.com/caarlos0/env/v11"
	internalconfig "github.com/pitchlab/matchclip/internal/config"
)

type envConfig struct {
	Env                        string  `env:"ENV" envDefault:"production"`
	ListenAddr                 string  `env:"LISTEN_ADDR" envDefault:":8080"`
	DatabaseURL                string  `env:"DATABASE_URL,required"`
	GoogleCloudProjectID       string  `env:"GOOGLE_CLOUD_PROJECT_ID,required"`
	GoogleCloudCredentialsJSON string  `env:"GOOGLE_CLOUD_CREDENTIALS_JSON,required"`
	GoogleCloudSpeechLocation  string  `env:"GOOGLE_CLOUD_SPEECH_LOCATION" envDefault:"europe-west4"`
	GoogleCloudSpeechModel     string  `env:"GOOGLE_CLOUD_SPEECH_MODEL" envDefault:"chirp_3"`
	TranscribeLanguage         string  `env:"TRANSCRIBE_LANGUAGE,required"`
	ExtractorURL               string  `env:"EXTRACTOR_URL,required"`
	ExtractorAPIKey            string  `env:"EXTRACTOR_API_KEY"`
	StorageURL                 string  `env:"STORAGE_URL,required"`
	NotifyWebhookURL           string  `env:"NOTIFY_WEBHOOK_URL"`
	FFmpegPath                 string  `env:"FFMPEG_PATH" envDefault:"ffmpeg"`
	ChunkIntervalSec           int     `env:"CHUNK_INTERVAL_SEC" envDefault:"5"`
	TranscribeIntervalSec      int     `env:"TRANSCRIBE_INTERVAL_SEC" envDefault:"10"`
	TranscriptAutosaveSec      int     `env:"TRANSCRIPT_AUTOSAVE_SEC" envDefault:"60"`
	SegmentDurationMs          int     `env:"SEGMENT_DURATION_MS" envDefault:"300000"`
	SegmentOverlapMs           int     `env:"SEGMENT_OVERLAP_MS" envDefault:"60000"`
	MaxRetainedSegments        int     `env:"MAX_RETAINED_SEGMENTS" envDefault:"3"`
	RollingWindowChunks        int     `env:"ROLLING_WINDOW_CHUNKS" envDefault:"6"`
	ClipPrerollSec             int     `env:"CLIP_PREROLL_SEC" envDefault:"5"`
	ClipPostrollSec            int     `env:"CLIP_POSTROLL_SEC" envDefault:"5"`
	ClipMaxAttempts            int     `env:"CLIP_MAX_ATTEMPTS" envDefault:"3"`
	ClipMinSourceBytes         int     `env:"CLIP_MIN_SOURCE_BYTES" envDefault:"4096"`
	GoalConfidenceThreshold    float64 `env:"GOAL_CONFIDENCE_THRESHOLD" envDefault:"0.7"`
}

func Load() (*internalconfig.Config, error) {
	var raw envConfig
	if err := env.Parse(&raw); err != nil {
		return nil, fmt.Errorf("environment variables are invalid or missing: %w", err)
	}

	cfg := &internalconfig.Config{
		Env:                        raw.Env,
		ListenAddr:                 raw.ListenAddr,
		DatabaseURL:                raw.DatabaseURL,
		GoogleCloudProjectID:       raw.GoogleCloudProjectID,
		GoogleCloudCredentialsJSON: raw.GoogleCloudCredentialsJSON,
		GoogleCloudSpeechLocation:  raw.GoogleCloudSpeechLocation,
		GoogleCloudSpeechModel:     raw.GoogleCloudSpeechModel,
		TranscribeLanguage:         raw.TranscribeLanguage,
		ExtractorURL:               raw.ExtractorURL,
		ExtractorAPIKey:            raw.ExtractorAPIKey,
		StorageURL:                 raw.StorageURL,
		NotifyWebhookURL:           raw.NotifyWebhookURL,
		FFmpegPath:                 raw.FFmpegPath,
		ChunkIntervalSec:           raw.ChunkIntervalSec,
		TranscribeIntervalSec:      raw.TranscribeIntervalSec,
		TranscriptAutosaveSec:      raw.TranscriptAutosaveSec,
		SegmentDurationMs:          raw.SegmentDurationMs,
		SegmentOverlapMs:           raw.SegmentOverlapMs,
		MaxRetainedSegments:        raw.MaxRetainedSegments,
		RollingWindowChunks:        raw.RollingWindowChunks,
		ClipPrerollSec:             raw.ClipPrerollSec,
		ClipPostrollSec:            raw.ClipPostrollSec,
		ClipMaxAttempts:            raw.ClipMaxAttempts,
		ClipMinSourceBytes:         raw.ClipMinSourceBytes,
		GoalConfidenceThreshold:    raw.GoalConfidenceThreshold,
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}
