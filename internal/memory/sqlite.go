package memory

import (
	"context"
	"database/sql"
	"encoding/binary"
	"encoding/json"
	"fmt"
	"math"
	"sort"
	"strings"
	"time"

	_ "modernc.org/sqlite"
)

// sqliteTimeLayout is a fixed-width timestamp format so that lexicographic
// ordering of the stored TEXT column matches chronological ordering.
const sqliteTimeLayout = "2006-01-02 15:04:05.000000000"

// SQLiteStore persists events in SQLite. Embeddings are stored as
// little-endian float32 blobs and similarity is computed in application
// memory, which is fine for the per-user event volumes this agent sees
// (well under 10K rows). Use ":memory:" for an ephemeral store.
type SQLiteStore struct {
	db *sql.DB
}

// NewSQLiteStore opens (or creates) the database at path and verifies
// connectivity with a ping.
func NewSQLiteStore(ctx context.Context, path string) (*SQLiteStore, error) {
	// WAL mode and foreign keys for better concurrency and integrity
	db, err := sql.Open("sqlite", path+"?_pragma=journal_mode(WAL)&_pragma=foreign_keys(ON)")
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}

	return &SQLiteStore{db: db}, nil
}

// InitSchema creates the events table and indexes if they do not exist.
func (s *SQLiteStore) InitSchema(ctx context.Context) error {
	schema := `
		CREATE TABLE IF NOT EXISTS events (
			id             TEXT PRIMARY KEY,
			strategy       TEXT NOT NULL,
			namespace      TEXT NOT NULL,
			actor_id       TEXT NOT NULL,
			session_id     TEXT,
			role           TEXT,
			content        TEXT NOT NULL,
			embedding      BLOB,
			ttl_expires_at TEXT,
			metadata       TEXT NOT NULL DEFAULT '{}',
			created_at     TEXT NOT NULL
		);

		CREATE INDEX IF NOT EXISTS idx_events_strategy_actor ON events (strategy, actor_id);
		CREATE INDEX IF NOT EXISTS idx_events_created_at ON events (created_at DESC);
	`
	if _, err := s.db.ExecContext(ctx, schema); err != nil {
		return fmt.Errorf("initialize schema: %w", err)
	}
	return nil
}

// InsertEvent writes one row.
func (s *SQLiteStore) InsertEvent(ctx context.Context, ev *Event) error {
	contentJSON, err := json.Marshal(ev.Content)
	if err != nil {
		return &WriteError{Err: fmt.Errorf("marshal content: %w", err)}
	}
	metadata := ev.Metadata
	if metadata == nil {
		metadata = map[string]any{}
	}
	metadataJSON, err := json.Marshal(metadata)
	if err != nil {
		return &WriteError{Err: fmt.Errorf("marshal metadata: %w", err)}
	}

	var ttl any
	if ev.TTLExpiresAt != nil {
		ttl = ev.TTLExpiresAt.UTC().Format(sqliteTimeLayout)
	}

	query := `
		INSERT INTO events
			(id, strategy, namespace, actor_id, session_id, role, content, embedding, ttl_expires_at, metadata, created_at)
		VALUES
			(?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`
	_, err = s.db.ExecContext(ctx, query,
		ev.ID,
		string(ev.Strategy),
		ev.Namespace,
		ev.ActorID,
		nullIfEmpty(ev.SessionID),
		nullIfEmpty(ev.Role),
		string(contentJSON),
		encodeVector(ev.Embedding),
		ttl,
		string(metadataJSON),
		ev.CreatedAt.UTC().Format(sqliteTimeLayout),
	)
	if err != nil {
		return &WriteError{Err: err}
	}
	return nil
}

// itemWithScore pairs a result with its similarity for sorting.
type itemWithScore struct {
	Item
	score float64
}

// SearchSemantic loads all embedded rows in scope and ranks them by cosine
// similarity in application memory.
func (s *SQLiteStore) SearchSemantic(ctx context.Context, f Filter, queryVec []float32, limit int) ([]Item, error) {
	conds, args := f.sqliteConditions()
	conds = append(conds, "embedding IS NOT NULL")

	query := fmt.Sprintf(`
		SELECT id, namespace, actor_id, COALESCE(session_id, ''), COALESCE(role, ''), content, embedding, created_at
		FROM events
		WHERE %s
	`, strings.Join(conds, " AND "))

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("semantic search: %w", err)
	}
	defer rows.Close()

	var results []itemWithScore
	for rows.Next() {
		var (
			item         Item
			contentRaw   []byte
			embeddingRaw []byte
			createdAtStr string
		)
		err := rows.Scan(&item.ID, &item.Namespace, &item.ActorID, &item.SessionID, &item.Role,
			&contentRaw, &embeddingRaw, &createdAtStr)
		if err != nil {
			return nil, fmt.Errorf("scan event: %w", err)
		}
		if err := json.Unmarshal(contentRaw, &item.Content); err != nil {
			return nil, fmt.Errorf("decode content: %w", err)
		}
		item.CreatedAt, _ = parseSQLiteTime(createdAtStr)

		stored := decodeVector(embeddingRaw)
		if len(stored) == 0 || len(stored) != len(queryVec) {
			continue
		}
		score := float64(cosineSimilarity(queryVec, stored))
		item.Score = &score
		results = append(results, itemWithScore{Item: item, score: score})
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate events: %w", err)
	}

	sort.SliceStable(results, func(i, j int) bool {
		return results[i].score > results[j].score
	})

	topK := min(limit, len(results))
	items := make([]Item, 0, topK)
	for i := 0; i < topK; i++ {
		items = append(items, results[i].Item)
	}
	return items, nil
}

// SearchKeywordOrRecent returns rows in scope newest first, optionally
// filtered by a case-insensitive content substring.
func (s *SQLiteStore) SearchKeywordOrRecent(ctx context.Context, f Filter, keyword string, limit int) ([]Item, error) {
	conds, args := f.sqliteConditions()
	if keyword != "" {
		conds = append(conds, "instr(lower(content), ?) > 0")
		args = append(args, strings.ToLower(keyword))
	}
	args = append(args, limit)

	query := fmt.Sprintf(`
		SELECT id, namespace, actor_id, COALESCE(session_id, ''), COALESCE(role, ''), content, created_at
		FROM events
		WHERE %s
		ORDER BY created_at DESC
		LIMIT ?
	`, strings.Join(conds, " AND "))

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("keyword search: %w", err)
	}
	defer rows.Close()

	return scanSQLiteItems(rows)
}

// RecentTurns returns the newest k conversation rows for the actor and
// session.
func (s *SQLiteStore) RecentTurns(ctx context.Context, actorID, sessionID string, k int) ([]Item, error) {
	query := `
		SELECT id, namespace, actor_id, COALESCE(session_id, ''), COALESCE(role, ''), content, created_at
		FROM events
		WHERE strategy = ? AND actor_id = ? AND session_id = ?
		ORDER BY created_at DESC
		LIMIT ?
	`
	rows, err := s.db.QueryContext(ctx, query, string(StrategyConversation), actorID, sessionID, k)
	if err != nil {
		return nil, fmt.Errorf("recent turns: %w", err)
	}
	defer rows.Close()

	return scanSQLiteItems(rows)
}

// Close releases the database connection.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

func (f Filter) sqliteConditions() ([]string, []any) {
	conds := []string{"strategy = ?"}
	args := []any{string(f.Strategy)}

	if f.ActorID != "" {
		conds = append(conds, "actor_id = ?")
		args = append(args, f.ActorID)
	}
	if f.SessionID != "" {
		conds = append(conds, "(session_id = ? OR session_id IS NULL)")
		args = append(args, f.SessionID)
	}
	if f.NamespacePrefix != "" {
		conds = append(conds, "namespace LIKE ?")
		args = append(args, f.NamespacePrefix+"%")
	}
	return conds, args
}

func scanSQLiteItems(rows *sql.Rows) ([]Item, error) {
	var items []Item
	for rows.Next() {
		var (
			item         Item
			contentRaw   []byte
			createdAtStr string
		)
		err := rows.Scan(&item.ID, &item.Namespace, &item.ActorID, &item.SessionID, &item.Role,
			&contentRaw, &createdAtStr)
		if err != nil {
			return nil, fmt.Errorf("scan event: %w", err)
		}
		if err := json.Unmarshal(contentRaw, &item.Content); err != nil {
			return nil, fmt.Errorf("decode content: %w", err)
		}
		item.CreatedAt, _ = parseSQLiteTime(createdAtStr)
		items = append(items, item)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate events: %w", err)
	}
	return items, nil
}

// encodeVector converts a float32 slice to little-endian bytes for storage.
func encodeVector(v []float32) []byte {
	if v == nil {
		return nil
	}
	buf := make([]byte, len(v)*4)
	for i, f := range v {
		binary.LittleEndian.PutUint32(buf[i*4:], math.Float32bits(f))
	}
	return buf
}

// decodeVector converts little-endian bytes back to a float32 slice.
func decodeVector(b []byte) []float32 {
	if len(b) == 0 || len(b)%4 != 0 {
		return nil
	}
	v := make([]float32, len(b)/4)
	for i := range v {
		v[i] = math.Float32frombits(binary.LittleEndian.Uint32(b[i*4:]))
	}
	return v
}

// cosineSimilarity is in [-1, 1]; for unit vectors it equals the dot product.
func cosineSimilarity(a, b []float32) float32 {
	if len(a) != len(b) || len(a) == 0 {
		return 0
	}

	var dot, normA, normB float32
	for i := range a {
		dot += a[i] * b[i]
		normA += a[i] * a[i]
		normB += b[i] * b[i]
	}

	if normA == 0 || normB == 0 {
		return 0
	}
	return dot / (float32(math.Sqrt(float64(normA))) * float32(math.Sqrt(float64(normB))))
}

func parseSQLiteTime(s string) (time.Time, error) {
	formats := []string{
		sqliteTimeLayout,
		time.RFC3339Nano,
		time.RFC3339,
		"2006-01-02 15:04:05",
	}
	for _, format := range formats {
		if t, err := time.Parse(format, s); err == nil {
			return t, nil
		}
	}
	return time.Time{}, fmt.Errorf("unable to parse timestamp: %s", s)
}

var _ Store = (*SQLiteStore)(nil)
