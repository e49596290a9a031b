// Package memory_service provides bounded per-user short-term memory:
// a conversation history log and a file-analysis log, both capped with
// evict-oldest-on-overflow semantics.
package memory_service

import (
	"time"
)

// Role identifies the author of a conversation turn.
type Role string

// Conversation turn roles.
const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

// MediaKind identifies the type of an uploaded file.
type MediaKind string

// Supported media kinds.
const (
	MediaPDF   MediaKind = "pdf"
	MediaImage MediaKind = "image"
)

// Turn is a single conversation turn. Immutable once created.
type Turn struct {
	Role      Role      `json:"role"`
	Text      string    `json:"text"`
	Timestamp time.Time `json:"timestamp"`
}

// FileRecord holds the derived analysis of one uploaded file.
// Immutable once created. IDs are unique and strictly increasing for
// the lifetime of the process.
type FileRecord struct {
	ID           int64     `json:"id"`
	Filename     string    `json:"filename"`
	MediaKind    MediaKind `json:"media_kind"`
	AnalysisText string    `json:"analysis_text"`
	Timestamp    time.Time `json:"timestamp"`
}

// userMemory is the per-user state owned by the Service. History and
// files are append-only; only eviction removes entries.
type userMemory struct {
	history   []Turn
	files     []FileRecord
	firstSeen time.Time
}
