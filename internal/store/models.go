package store

import (
	"time"

	"ctxtree/internal/transcript"
)

// Session is the cached aggregate for one session of a project.
type Session struct {
	Project             string    `json:"project"`
	SessionID           string    `json:"session_id"`
	SourceFile          string    `json:"source_file"`
	FirstTimestamp      time.Time `json:"first_timestamp"`
	LastTimestamp       time.Time `json:"last_timestamp"`
	MessageCount        int       `json:"message_count"`
	InputTokens         int       `json:"input_tokens"`
	OutputTokens        int       `json:"output_tokens"`
	CacheCreationTokens int       `json:"cache_creation_tokens"`
	CacheReadTokens     int       `json:"cache_read_tokens"`
	EstimatedTokens     int       `json:"estimated_tokens"`
	FirstUserMessage    string    `json:"first_user_message"`
	Summary             string    `json:"summary"`
	CWD                 string    `json:"cwd"`
}

func (s Session) TotalTokens() int {
	return s.InputTokens + s.OutputTokens + s.CacheCreationTokens + s.CacheReadTokens
}

// merge folds the part of the same session cached from another file into s.
// other must not start before s.
func (s *Session) merge(other Session) {
	if other.FirstTimestamp.Before(s.FirstTimestamp) {
		s.FirstTimestamp = other.FirstTimestamp
	}
	if !other.LastTimestamp.Before(s.LastTimestamp) {
		s.LastTimestamp = other.LastTimestamp
		s.SourceFile = other.SourceFile
	}
	s.MessageCount += other.MessageCount
	s.InputTokens += other.InputTokens
	s.OutputTokens += other.OutputTokens
	s.CacheCreationTokens += other.CacheCreationTokens
	s.CacheReadTokens += other.CacheReadTokens
	s.EstimatedTokens += other.EstimatedTokens
	if s.FirstUserMessage == "" {
		s.FirstUserMessage = other.FirstUserMessage
	}
	if s.CWD == "" {
		s.CWD = other.CWD
	}
	if other.Summary != "" {
		s.Summary = other.Summary
	}
}

func SessionFromAggregate(project, sourceFile string, a transcript.SessionAggregate) Session {
	return Session{
		Project:             project,
		SessionID:           a.SessionID,
		SourceFile:          sourceFile,
		FirstTimestamp:      a.FirstTimestamp,
		LastTimestamp:       a.LastTimestamp,
		MessageCount:        a.MessageCount,
		InputTokens:         a.InputTokens,
		OutputTokens:        a.OutputTokens,
		CacheCreationTokens: a.CacheCreationTokens,
		CacheReadTokens:     a.CacheReadTokens,
		EstimatedTokens:     a.EstimatedTokens,
		FirstUserMessage:    a.FirstUserMessage,
		Summary:             a.Summary,
		CWD:                 a.CWD,
	}
}

// File records the state of a source file when its sessions were cached.
type File struct {
	Path     string    `json:"path"`
	Project  string    `json:"project"`
	ModTime  time.Time `json:"mod_time"`
	Size     int64     `json:"size"`
	CachedAt time.Time `json:"cached_at"`
}
