// Copyright (c) 2023-2025 RapidaAI
// Author: Prashant Srivastav <prashant@rapida.ai>
//
// Licensed under GPL-2.0 with Rapida Additional Terms.
// See LICENSE.md or contact sales@rapida.ai for commercial usage.

package internal_entity

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"gorm.io/gorm"

	internal_type "github.com/rapidaai/demostudio/api/studio-api/internal/type"
	"github.com/rapidaai/demostudio/pkg/commons"
	"github.com/rapidaai/demostudio/pkg/connectors"
)

// Recording is the persisted session metadata row. It is written at
// finalize time, before any enrichment is attempted, so the raw captured
// state survives regardless of how the pipeline degrades. Pipeline runtime
// state itself is deliberately not persisted: a process restart abandons
// in-flight sessions.
type Recording struct {
	Id          uint64    `json:"id" gorm:"primaryKey;autoIncrement"`
	SessionID   string    `json:"sessionId" gorm:"column:session_id;type:varchar(64);not null;uniqueIndex"`
	UserID      string    `json:"userId" gorm:"column:user_id;type:varchar(64);index"`
	Status      string    `json:"status" gorm:"column:status;type:varchar(20);not null;default:finalized"`
	StartTime   int64     `json:"startTime" gorm:"column:start_time"`
	EndTime     int64     `json:"endTime" gorm:"column:end_time"`
	SourceURL   string    `json:"sourceUrl" gorm:"column:source_url;type:text"`
	ViewportW   int       `json:"viewportWidth" gorm:"column:viewport_w"`
	ViewportH   int       `json:"viewportHeight" gorm:"column:viewport_h"`
	EventCount  int       `json:"eventCount" gorm:"column:event_count"`
	EventsJSON  string    `json:"-" gorm:"column:events_json;type:text"`
	VideoRef    string    `json:"videoRef" gorm:"column:video_ref;type:text"`
	AudioRef    string    `json:"audioRef" gorm:"column:audio_ref;type:text"`
	Transcript  string    `json:"transcript" gorm:"column:transcript;type:text"`
	CreatedDate time.Time `json:"createdDate" gorm:"type:timestamp;not null;<-:create"`
	UpdatedDate time.Time `json:"updatedDate" gorm:"type:timestamp"`
}

func (Recording) TableName() string {
	return "recordings"
}

func (r *Recording) BeforeCreate(tx *gorm.DB) error {
	if r.CreatedDate.IsZero() {
		r.CreatedDate = time.Now()
	}
	return nil
}

// SetEvents serializes the raw captured events onto the row.
func (r *Recording) SetEvents(events []internal_type.InteractionEvent) error {
	raw, err := json.Marshal(events)
	if err != nil {
		return fmt.Errorf("failed to serialize events for session %s: %w", r.SessionID, err)
	}
	r.EventsJSON = string(raw)
	r.EventCount = len(events)
	return nil
}

// Store provides save and lookup of recording metadata.
type Store interface {
	Save(ctx context.Context, rec *Recording) error
	Get(ctx context.Context, sessionID string) (*Recording, error)
	UpdateStatus(ctx context.Context, sessionID, status string) error
	SetArtifacts(ctx context.Context, sessionID, videoRef, audioRef string) error
	SetTranscript(ctx context.Context, sessionID, transcript string) error
}

type databaseStore struct {
	database connectors.DatabaseConnector
	logger   commons.Logger
}

func NewStore(database connectors.DatabaseConnector, logger commons.Logger) (Store, error) {
	if err := database.Migrate(&Recording{}); err != nil {
		return nil, fmt.Errorf("failed to migrate recordings table: %w", err)
	}
	return &databaseStore{database: database, logger: logger}, nil
}

func (s *databaseStore) Save(ctx context.Context, rec *Recording) error {
	if rec.Status == "" {
		rec.Status = internal_type.SessionFinalized
	}
	db := s.database.DB(ctx)
	if err := db.Create(rec).Error; err != nil {
		return fmt.Errorf("failed to save recording %s: %w", rec.SessionID, err)
	}
	s.logger.Infof("saved recording metadata: sessionId=%s, events=%d", rec.SessionID, rec.EventCount)
	return nil
}

func (s *databaseStore) Get(ctx context.Context, sessionID string) (*Recording, error) {
	db := s.database.DB(ctx)
	var rec Recording
	if err := db.Where("session_id = ?", sessionID).First(&rec).Error; err != nil {
		return nil, fmt.Errorf("recording not found: %s: %w", sessionID, err)
	}
	return &rec, nil
}

func (s *databaseStore) UpdateStatus(ctx context.Context, sessionID, status string) error {
	db := s.database.DB(ctx)
	result := db.Model(&Recording{}).
		Where("session_id = ?", sessionID).
		Updates(map[string]interface{}{
			"status":       status,
			"updated_date": time.Now(),
		})
	if result.Error != nil {
		return fmt.Errorf("failed to update recording %s status: %w", sessionID, result.Error)
	}
	return nil
}

func (s *databaseStore) SetArtifacts(ctx context.Context, sessionID, videoRef, audioRef string) error {
	db := s.database.DB(ctx)
	result := db.Model(&Recording{}).
		Where("session_id = ?", sessionID).
		Updates(map[string]interface{}{
			"video_ref":    videoRef,
			"audio_ref":    audioRef,
			"updated_date": time.Now(),
		})
	if result.Error != nil {
		return fmt.Errorf("failed to update recording %s artifacts: %w", sessionID, result.Error)
	}
	return nil
}

func (s *databaseStore) SetTranscript(ctx context.Context, sessionID, transcript string) error {
	db := s.database.DB(ctx)
	result := db.Model(&Recording{}).
		Where("session_id = ?", sessionID).
		Updates(map[string]interface{}{
			"transcript":   transcript,
			"updated_date": time.Now(),
		})
	if result.Error != nil {
		return fmt.Errorf("failed to update recording %s transcript: %w", sessionID, result.Error)
	}
	return nil
}
