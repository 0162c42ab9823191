package config

import (
	"fmt"
)

type Config struct {
	Env                        string
	ListenAddr                 string
	DatabaseURL                string
	GoogleCloudProjectID       string
	GoogleCloudCredentialsJSON string
	GoogleCloudSpeechLocation  string
	GoogleCloudSpeechModel     string
	TranscribeLanguage         string
	ExtractorURL               string
	ExtractorAPIKey            string
	StorageURL                 string
	NotifyWebhookURL           string
	FFmpegPath                 string
	ChunkIntervalSec           int
	TranscribeIntervalSec      int
	TranscriptAutosaveSec      int
	SegmentDurationMs          int
	SegmentOverlapMs           int
	MaxRetainedSegments        int
	RollingWindowChunks        int
	ClipPrerollSec             int
	ClipPostrollSec            int
	ClipMaxAttempts            int
	ClipMinSourceBytes         int
	GoalConfidenceThreshold    float64
}

func (c *Config) Validate() error {
	for _, req := range c.requiredFieldChecks() {
		if req.value == "" {
			return fmt.Errorf("%s is required", req.name)
		}
	}
	for _, pos := range c.positiveFieldChecks() {
		if pos.value <= 0 {
			return fmt.Errorf("%s must be positive, got %d", pos.name, pos.value)
		}
	}
	if c.SegmentOverlapMs >= c.SegmentDurationMs {
		return fmt.Errorf("SEGMENT_OVERLAP_MS (%d) must be less than SEGMENT_DURATION_MS (%d)", c.SegmentOverlapMs, c.SegmentDurationMs)
	}
	if c.GoalConfidenceThreshold < 0 || c.GoalConfidenceThreshold > 1 {
		return fmt.Errorf("GOAL_CONFIDENCE_THRESHOLD must be within [0,1], got %v", c.GoalConfidenceThreshold)
	}
	return nil
}

type requiredEnvField struct {
	name  string
	value string
}

func (c *Config) requiredFieldChecks() []requiredEnvField {
	return []requiredEnvField{
		{name: "DATABASE_URL", value: c.DatabaseURL},
		{name: "GOOGLE_CLOUD_PROJECT_ID", value: c.GoogleCloudProjectID},
		{name: "GOOGLE_CLOUD_CREDENTIALS_JSON", value: c.GoogleCloudCredentialsJSON},
		{name: "TRANSCRIBE_LANGUAGE", value: c.TranscribeLanguage},
		{name: "EXTRACTOR_URL", value: c.ExtractorURL},
		{name: "STORAGE_URL", value: c.StorageURL},
	}
}

type positiveEnvField struct {
	name  string
	value int
}

func (c *Config) positiveFieldChecks() []positiveEnvField {
	return []positiveEnvField{
		{name: "CHUNK_INTERVAL_SEC", value: c.ChunkIntervalSec},
		{name: "TRANSCRIBE_INTERVAL_SEC", value: c.TranscribeIntervalSec},
		{name: "TRANSCRIPT_AUTOSAVE_SEC", value: c.TranscriptAutosaveSec},
		{name: "SEGMENT_DURATION_MS", value: c.SegmentDurationMs},
		{name: "SEGMENT_OVERLAP_MS", value: c.SegmentOverlapMs},
		{name: "MAX_RETAINED_SEGMENTS", value: c.MaxRetainedSegments},
		{name: "ROLLING_WINDOW_CHUNKS", value: c.RollingWindowChunks},
		{name: "CLIP_PREROLL_SEC", value: c.ClipPrerollSec},
		{name: "CLIP_POSTROLL_SEC", value: c.ClipPostrollSec},
		{name: "CLIP_MAX_ATTEMPTS", value: c.ClipMaxAttempts},
		{name: "CLIP_MIN_SOURCE_BYTES", value: c.ClipMinSourceBytes},
	}
}

func (c *Config) IsDevelopment() bool {
	return c.Env == "development"
}
