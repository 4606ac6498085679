package models

import (
	"time"

	"github.com/google/uuid"
)

// ConversionJob converts one uploaded PDF into a slide deck.
// It shares the OutputStatus vocabulary with base outputs.
type ConversionJob struct {
	ID                    uuid.UUID    `json:"id"`
	UserID                string       `json:"user_id"`
	TenantID              *uuid.UUID   `json:"tenant_id,omitempty"`
	Status                OutputStatus `json:"status"`
	InputFilename         string       `json:"input_filename"`
	InputPath             string       `json:"input_path"`
	InputSizeBytes        int64        `json:"input_size_bytes"`
	ExtractedText         *string      `json:"-"`
	OutputFilename        *string      `json:"output_filename,omitempty"`
	OutputPath            *string      `json:"output_path,omitempty"`
	OutputSizeBytes       *int64       `json:"output_size_bytes,omitempty"`
	ErrorMessage          *string      `json:"error_message,omitempty"`
	ProcessingStartedAt   *time.Time   `json:"processing_started_at,omitempty"`
	ProcessingCompletedAt *time.Time   `json:"processing_completed_at,omitempty"`
	CreatedAt             time.Time    `json:"created_at"`
	UpdatedAt             time.Time    `json:"updated_at"`
}
