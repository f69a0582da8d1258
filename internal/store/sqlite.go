package store

import (
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"slices"
	"time"

	_ "modernc.org/sqlite"
)

type Store struct {
	db  *sql.DB
	dir string
}

func New(cacheDir string) (*Store, error) {
	if err := os.MkdirAll(cacheDir, 0755); err != nil {
		return nil, fmt.Errorf("create cache dir: %w", err)
	}

	dbPath := filepath.Join(cacheDir, "cache.db")
	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	s := &Store{db: db, dir: cacheDir}
	if err := s.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("migrate: %w", err)
	}
	return s, nil
}

func (s *Store) Close() error {
	return s.db.Close()
}

// schemaVersion is bumped whenever a table's key changes. Older caches are
// dropped and rebuilt from the transcripts.
const schemaVersion = 2

func (s *Store) migrate() error {
	var version int
	if err := s.db.QueryRow("PRAGMA user_version").Scan(&version); err != nil {
		return err
	}
	if version < schemaVersion {
		if _, err := s.db.Exec("DROP TABLE IF EXISTS sessions; DROP TABLE IF EXISTS files;"); err != nil {
			return err
		}
	}

	schema := `
	CREATE TABLE IF NOT EXISTS files (
		path      TEXT PRIMARY KEY,
		project   TEXT NOT NULL,
		mod_time  INTEGER NOT NULL,
		size      INTEGER NOT NULL,
		cached_at DATETIME NOT NULL
	);

	CREATE TABLE IF NOT EXISTS sessions (
		project               TEXT NOT NULL,
		session_id            TEXT NOT NULL,
		source_file           TEXT NOT NULL REFERENCES files(path),
		first_timestamp       DATETIME NOT NULL,
		last_timestamp        DATETIME NOT NULL,
		message_count         INTEGER NOT NULL DEFAULT 0,
		input_tokens          INTEGER NOT NULL DEFAULT 0,
		output_tokens         INTEGER NOT NULL DEFAULT 0,
		cache_creation_tokens INTEGER NOT NULL DEFAULT 0,
		cache_read_tokens     INTEGER NOT NULL DEFAULT 0,
		estimated_tokens      INTEGER NOT NULL DEFAULT 0,
		first_user_message    TEXT NOT NULL DEFAULT '',
		summary               TEXT NOT NULL DEFAULT '',
		cwd                   TEXT NOT NULL DEFAULT '',
		PRIMARY KEY (project, session_id, source_file)
	);

	CREATE INDEX IF NOT EXISTS idx_sessions_source ON sessions(source_file);
	CREATE INDEX IF NOT EXISTS idx_files_project ON files(project);
	`
	if _, err := s.db.Exec(schema); err != nil {
		return err
	}
	_, err := s.db.Exec(fmt.Sprintf("PRAGMA user_version = %d", schemaVersion))
	return err
}

// FileFresh reports whether path was cached with the same mtime and size.
func (s *Store) FileFresh(path string, modTime time.Time, size int64) (bool, error) {
	var cachedMod, cachedSize int64
	err := s.db.QueryRow("SELECT mod_time, size FROM files WHERE path = ?", path).Scan(&cachedMod, &cachedSize)
	if err == sql.ErrNoRows {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("query file: %w", err)
	}
	return cachedMod == modTime.UnixNano() && cachedSize == size, nil
}

// SaveFile replaces every session cached from f.Path with sessions.
func (s *Store) SaveFile(f File, sessions []Session) error {
	tx, err := s.db.Begin()
	if err != nil {
		return fmt.Errorf("begin: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.Exec("DELETE FROM sessions WHERE source_file = ?", f.Path); err != nil {
		return fmt.Errorf("delete sessions: %w", err)
	}
	_, err = tx.Exec(
		"INSERT OR REPLACE INTO files (path, project, mod_time, size, cached_at) VALUES (?, ?, ?, ?, ?)",
		f.Path, f.Project, f.ModTime.UnixNano(), f.Size, time.Now().UTC(),
	)
	if err != nil {
		return fmt.Errorf("insert file: %w", err)
	}

	for _, sess := range sessions {
		_, err := tx.Exec(
			`INSERT OR REPLACE INTO sessions (
				project, session_id, source_file, first_timestamp, last_timestamp,
				message_count, input_tokens, output_tokens, cache_creation_tokens,
				cache_read_tokens, estimated_tokens, first_user_message, summary, cwd
			) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
			sess.Project, sess.SessionID, f.Path, sess.FirstTimestamp.UTC(), sess.LastTimestamp.UTC(),
			sess.MessageCount, sess.InputTokens, sess.OutputTokens, sess.CacheCreationTokens,
			sess.CacheReadTokens, sess.EstimatedTokens, sess.FirstUserMessage, sess.Summary, sess.CWD,
		)
		if err != nil {
			return fmt.Errorf("insert session: %w", err)
		}
	}
	return tx.Commit()
}

// ListSessions returns the project's sessions, most recent first. A session
// resumed across several files is merged into one: counts and tokens are
// summed, the opening message and cwd come from the earliest file and
// SourceFile names the file with the latest activity.
func (s *Store) ListSessions(project string) ([]Session, error) {
	rows, err := s.db.Query(
		`SELECT project, session_id, source_file, first_timestamp, last_timestamp,
			message_count, input_tokens, output_tokens, cache_creation_tokens,
			cache_read_tokens, estimated_tokens, first_user_message, summary, cwd
		 FROM sessions WHERE project = ? ORDER BY first_timestamp, source_file`,
		project,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var sessions []Session
	byID := map[string]int{}
	for rows.Next() {
		var sess Session
		if err := rows.Scan(
			&sess.Project, &sess.SessionID, &sess.SourceFile, &sess.FirstTimestamp, &sess.LastTimestamp,
			&sess.MessageCount, &sess.InputTokens, &sess.OutputTokens, &sess.CacheCreationTokens,
			&sess.CacheReadTokens, &sess.EstimatedTokens, &sess.FirstUserMessage, &sess.Summary, &sess.CWD,
		); err != nil {
			return nil, err
		}
		if i, ok := byID[sess.SessionID]; ok {
			sessions[i].merge(sess)
			continue
		}
		byID[sess.SessionID] = len(sessions)
		sessions = append(sessions, sess)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	slices.SortStableFunc(sessions, func(a, b Session) int {
		return b.LastTimestamp.Compare(a.LastTimestamp)
	})
	return sessions, nil
}

// PruneFiles forgets cached files of project that are not in keep.
func (s *Store) PruneFiles(project string, keep []string) (int, error) {
	keepSet := make(map[string]bool, len(keep))
	for _, p := range keep {
		keepSet[p] = true
	}

	rows, err := s.db.Query("SELECT path FROM files WHERE project = ?", project)
	if err != nil {
		return 0, err
	}
	var stale []string
	for rows.Next() {
		var p string
		if err := rows.Scan(&p); err != nil {
			rows.Close()
			return 0, err
		}
		if !keepSet[p] {
			stale = append(stale, p)
		}
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return 0, err
	}

	for _, p := range stale {
		if _, err := s.db.Exec("DELETE FROM sessions WHERE source_file = ?", p); err != nil {
			return 0, fmt.Errorf("delete sessions: %w", err)
		}
		if _, err := s.db.Exec("DELETE FROM files WHERE path = ?", p); err != nil {
			return 0, fmt.Errorf("delete file: %w", err)
		}
	}
	return len(stale), nil
}

// ClearProject drops everything cached for project and returns the number of
// sessions forgotten.
func (s *Store) ClearProject(project string) (int, error) {
	var n int
	if err := s.db.QueryRow("SELECT COUNT(DISTINCT session_id) FROM sessions WHERE project = ?", project).Scan(&n); err != nil {
		return 0, fmt.Errorf("count sessions: %w", err)
	}
	if _, err := s.db.Exec("DELETE FROM sessions WHERE project = ?", project); err != nil {
		return 0, fmt.Errorf("delete sessions: %w", err)
	}
	if _, err := s.db.Exec("DELETE FROM files WHERE project = ?", project); err != nil {
		return 0, fmt.Errorf("delete files: %w", err)
	}
	return n, nil
}
