package audit

import (
	"context"
	"crypto/sha256"
	"database/sql"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"sync"
	"time"
	"unicode/utf8"

	"github.com/pario-ai/switchboard/pkg/models"
	_ "modernc.org/sqlite"
)

// Logger writes and queries query audit entries in a dedicated SQLite database.
type Logger struct {
	db      *sql.DB
	cfg     models.AuditConfig
	done    chan struct{}
	wg      sync.WaitGroup
	include map[string]bool
	now     func() time.Time
}

// New opens the audit SQLite database and creates the schema.
func New(cfg models.AuditConfig) (*Logger, error) {
	db, err := sql.Open("sqlite", cfg.DBPath+"?_pragma=busy_timeout(5000)&_pragma=journal_mode(WAL)")
	if err != nil {
		return nil, fmt.Errorf("open audit db: %w", err)
	}

	if err := migrate(db); err != nil {
		db.Close()
		return nil, fmt.Errorf("migrate audit db: %w", err)
	}

	inc := make(map[string]bool)
	for _, v := range cfg.Include {
		inc[v] = true
	}

	l := &Logger{
		db:      db,
		cfg:     cfg,
		done:    make(chan struct{}),
		include: inc,
		now:     time.Now,
	}

	l.wg.Add(1)
	go l.retentionLoop()

	return l, nil
}

func migrate(db *sql.DB) error {
	_, err := db.Exec(`CREATE TABLE IF NOT EXISTS query_log (
		request_id  TEXT PRIMARY KEY,
		user_hash   TEXT NOT NULL,
		user_prefix TEXT NOT NULL,
		query       TEXT,
		sources     TEXT NOT NULL,
		cache_key   TEXT,
		cache_layer TEXT NOT NULL,
		error_kind  TEXT,
		error       TEXT,
		answer      TEXT,
		confidence  REAL,
		latency_ms  INTEGER,
		created_at  INTEGER NOT NULL
	)`)
	if err != nil {
		return err
	}
	_, err = db.Exec(`CREATE INDEX IF NOT EXISTS idx_query_log_created ON query_log(created_at)`)
	if err != nil {
		return err
	}
	_, err = db.Exec(`CREATE INDEX IF NOT EXISTS idx_query_log_prefix ON query_log(user_prefix)`)
	return err
}

// Log inserts an audit entry. Query and answer text are kept only when listed
// in the include configuration.
func (l *Logger) Log(ctx context.Context, entry models.AuditEntry) error {
	if l == nil || l.db == nil {
		return nil
	}

	query := entry.Query
	answer := entry.Answer
	if !l.include["queries"] {
		query = ""
	}
	if !l.include["answers"] {
		answer = ""
	}
	if l.cfg.MaxBodySize > 0 {
		query = truncate(query, l.cfg.MaxBodySize)
		answer = truncate(answer, l.cfg.MaxBodySize)
	}

	sources := entry.Sources
	if sources == nil {
		sources = []string{}
	}
	sourcesJSON, err := json.Marshal(sources)
	if err != nil {
		return fmt.Errorf("encode sources: %w", err)
	}

	created := entry.CreatedAt
	if created.IsZero() {
		created = l.now()
	}

	_, err = l.db.ExecContext(ctx,
		`INSERT OR REPLACE INTO query_log
		(request_id, user_hash, user_prefix, query, sources, cache_key, cache_layer,
		 error_kind, error, answer, confidence, latency_ms, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		entry.RequestID, entry.UserHash, entry.UserPrefix,
		query, string(sourcesJSON), entry.CacheKey, string(entry.CacheLayer),
		entry.ErrorKind, entry.Error, answer, entry.Confidence,
		entry.LatencyMs, created.UnixMilli(),
	)
	return err
}

// truncate cuts s to at most n bytes without splitting a rune.
func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	for n > 0 && !utf8.RuneStart(s[n]) {
		n--
	}
	return s[:n]
}

// Query returns audit entries matching the given options, newest first.
func (l *Logger) Query(ctx context.Context, opts models.AuditQueryOpts) ([]models.AuditEntry, error) {
	q := `SELECT request_id, user_hash, user_prefix, query, sources, cache_key, cache_layer,
		error_kind, error, answer, confidence, latency_ms, created_at
		FROM query_log WHERE 1=1`
	var args []any

	if opts.RequestID != "" {
		q += " AND request_id = ?"
		args = append(args, opts.RequestID)
	}
	if opts.Source != "" {
		q += " AND EXISTS (SELECT 1 FROM json_each(query_log.sources) WHERE json_each.value = ?)"
		args = append(args, opts.Source)
	}
	if !opts.Since.IsZero() {
		q += " AND created_at >= ?"
		args = append(args, opts.Since.UnixMilli())
	}
	if opts.UserPrefix != "" {
		q += " AND user_prefix = ?"
		args = append(args, opts.UserPrefix)
	}

	q += " ORDER BY created_at DESC"

	limit := opts.Limit
	if limit <= 0 {
		limit = 100
	}
	q += " LIMIT ?"
	args = append(args, limit)

	rows, err := l.db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, fmt.Errorf("query audit: %w", err)
	}
	defer rows.Close()

	var entries []models.AuditEntry
	for rows.Next() {
		var e models.AuditEntry
		var query, cacheKey, errKind, errText, answer sql.NullString
		var sources, layer string
		var confidence sql.NullFloat64
		var latency sql.NullInt64
		var created int64
		if err := rows.Scan(
			&e.RequestID, &e.UserHash, &e.UserPrefix, &query, &sources, &cacheKey, &layer,
			&errKind, &errText, &answer, &confidence, &latency, &created,
		); err != nil {
			return nil, fmt.Errorf("scan audit row: %w", err)
		}
		e.Query = query.String
		e.CacheKey = cacheKey.String
		e.CacheLayer = models.CacheLayer(layer)
		e.ErrorKind = errKind.String
		e.Error = errText.String
		e.Answer = answer.String
		e.Confidence = confidence.Float64
		e.LatencyMs = latency.Int64
		e.CreatedAt = time.UnixMilli(created).UTC()
		if err := json.Unmarshal([]byte(sources), &e.Sources); err != nil {
			return nil, fmt.Errorf("decode sources for %s: %w", e.RequestID, err)
		}
		entries = append(entries, e)
	}
	return entries, rows.Err()
}

// Stats returns request and error counts grouped by day and cache layer.
func (l *Logger) Stats(ctx context.Context) ([]models.AuditStat, error) {
	rows, err := l.db.QueryContext(ctx,
		`SELECT date(created_at / 1000, 'unixepoch') AS day, cache_layer,
		        count(*) AS cnt,
		        sum(CASE WHEN error_kind IS NOT NULL AND error_kind != '' THEN 1 ELSE 0 END) AS errs
		 FROM query_log GROUP BY day, cache_layer ORDER BY day DESC, cache_layer`)
	if err != nil {
		return nil, fmt.Errorf("audit stats: %w", err)
	}
	defer rows.Close()

	var stats []models.AuditStat
	for rows.Next() {
		var s models.AuditStat
		var day sql.NullString
		var layer string
		if err := rows.Scan(&day, &layer, &s.Count, &s.Errors); err != nil {
			return nil, fmt.Errorf("scan audit stat: %w", err)
		}
		s.Day = day.String
		s.Layer = models.CacheLayer(layer)
		stats = append(stats, s)
	}
	return stats, rows.Err()
}

// Cleanup deletes entries older than the configured retention period.
// A non-positive retention keeps everything.
func (l *Logger) Cleanup(ctx context.Context) (int64, error) {
	if l.cfg.RetentionDays <= 0 {
		return 0, nil
	}
	cutoff := l.now().AddDate(0, 0, -l.cfg.RetentionDays)
	res, err := l.db.ExecContext(ctx,
		`DELETE FROM query_log WHERE created_at < ?`, cutoff.UnixMilli())
	if err != nil {
		return 0, fmt.Errorf("audit cleanup: %w", err)
	}
	return res.RowsAffected()
}

// Close stops the retention goroutine and closes the database.
func (l *Logger) Close() error {
	close(l.done)
	l.wg.Wait()
	return l.db.Close()
}

func (l *Logger) retentionLoop() {
	defer l.wg.Done()
	if l.cfg.RetentionDays <= 0 {
		<-l.done
		return
	}
	ticker := time.NewTicker(time.Hour)
	defer ticker.Stop()
	for {
		select {
		case <-l.done:
			return
		case <-ticker.C:
			_, _ = l.Cleanup(context.Background())
		}
	}
}

// HashIdentifier returns the SHA-256 hex hash of a user identifier and its
// first 8 hex characters, which serve as the searchable prefix. The raw
// identifier is never stored.
func HashIdentifier(id string) (hash, prefix string) {
	h := sha256.Sum256([]byte(id))
	hash = hex.EncodeToString(h[:])
	return hash, hash[:8]
}
