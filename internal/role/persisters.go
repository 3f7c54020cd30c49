package role

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
	"gopkg.in/yaml.v3"

	_ "modernc.org/sqlite" // pure-Go SQLite driver
)

// MemoryPersister keeps the role in process memory. Used by tests and by the
// "memory" store setting.
type MemoryPersister struct {
	mu    sync.Mutex
	value string
	set   bool
	saves int
}

// NewMemoryPersister optionally seeds a stored value.
func NewMemoryPersister(initial ...string) *MemoryPersister {
	p := &MemoryPersister{}
	if len(initial) > 0 {
		p.value = initial[0]
		p.set = true
	}
	return p
}

func (p *MemoryPersister) Load(context.Context) (string, bool, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.value, p.set, nil
}

func (p *MemoryPersister) Save(_ context.Context, value string) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.value = value
	p.set = true
	p.saves++
	return nil
}

// Saves reports how many times Save ran.
func (p *MemoryPersister) Saves() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.saves
}

// roleFile is the on-disk shape of .techdir/state/role.yaml.
type roleFile struct {
	Role      string    `yaml:"role"`
	UpdatedAt time.Time `yaml:"updated_at"`
}

// FilePersister stores the role in a small yaml document.
type FilePersister struct {
	path  string
	clock func() time.Time
}

// NewFilePersister persists to path, creating parent directories on save.
func NewFilePersister(path string) *FilePersister {
	return &FilePersister{path: path, clock: func() time.Time { return time.Now().UTC() }}
}

func (p *FilePersister) Load(context.Context) (string, bool, error) {
	data, err := os.ReadFile(p.path)
	if errors.Is(err, fs.ErrNotExist) {
		return "", false, nil
	}
	if err != nil {
		return "", false, fmt.Errorf("read role file: %w", err)
	}
	var doc roleFile
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return "", false, fmt.Errorf("parse role file: %w", err)
	}
	if doc.Role == "" {
		return "", false, nil
	}
	return doc.Role, true, nil
}

func (p *FilePersister) Save(_ context.Context, value string) error {
	if err := os.MkdirAll(filepath.Dir(p.path), 0o755); err != nil {
		return fmt.Errorf("ensure state dir: %w", err)
	}
	data, err := yaml.Marshal(roleFile{Role: value, UpdatedAt: p.clock()})
	if err != nil {
		return fmt.Errorf("encode role file: %w", err)
	}
	tmp := p.path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return fmt.Errorf("write role file: %w", err)
	}
	if err := os.Rename(tmp, p.path); err != nil {
		return fmt.Errorf("replace role file: %w", err)
	}
	return nil
}

const preferencesSchema = `
CREATE TABLE IF NOT EXISTS preferences (
  key   TEXT PRIMARY KEY,
  value TEXT NOT NULL
);`

// SQLitePersister stores the role as one row of a key-value table.
type SQLitePersister struct {
	db  *sql.DB
	key string
}

// OpenSQLitePersister opens (or creates) the preferences database at dsn.
func OpenSQLitePersister(ctx context.Context, dsn, key string) (*SQLitePersister, error) {
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open preferences db: %w", err)
	}
	db.SetMaxOpenConns(1)
	if _, err := db.ExecContext(ctx, preferencesSchema); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("migrate preferences db: %w", err)
	}
	return &SQLitePersister{db: db, key: key}, nil
}

func (p *SQLitePersister) Load(ctx context.Context) (string, bool, error) {
	var value string
	err := p.db.QueryRowContext(ctx, `SELECT value FROM preferences WHERE key = ?`, p.key).Scan(&value)
	if errors.Is(err, sql.ErrNoRows) {
		return "", false, nil
	}
	if err != nil {
		return "", false, fmt.Errorf("failed to get preference[%s]: %w", p.key, err)
	}
	return value, true, nil
}

func (p *SQLitePersister) Save(ctx context.Context, value string) error {
	_, err := p.db.ExecContext(ctx, `
		INSERT INTO preferences (key, value) VALUES (?, ?)
		ON CONFLICT(key) DO UPDATE SET value = excluded.value
	`, p.key, value)
	if err != nil {
		return fmt.Errorf("failed to set preference[%s]: %w", p.key, err)
	}
	return nil
}

// Close releases the database handle.
func (p *SQLitePersister) Close() error {
	if p == nil || p.db == nil {
		return nil
	}
	return p.db.Close()
}

// redisKV is the slice of the go-redis API the persister needs.
type redisKV interface {
	Get(ctx context.Context, key string) *redis.StringCmd
	Set(ctx context.Context, key string, value any, expiration time.Duration) *redis.StatusCmd
}

// RedisPersister shares the role through a Redis key, e.g. across the
// terminals of one workstation.
type RedisPersister struct {
	client redisKV
	key    string
}

// NewRedisPersister uses client for GET/SET on key.
func NewRedisPersister(client redisKV, key string) *RedisPersister {
	return &RedisPersister{client: client, key: key}
}

func (p *RedisPersister) Load(ctx context.Context) (string, bool, error) {
	value, err := p.client.Get(ctx, p.key).Result()
	if errors.Is(err, redis.Nil) {
		return "", false, nil
	}
	if err != nil {
		return "", false, fmt.Errorf("redis get %s: %w", p.key, err)
	}
	return value, true, nil
}

func (p *RedisPersister) Save(ctx context.Context, value string) error {
	if err := p.client.Set(ctx, p.key, value, 0).Err(); err != nil {
		return fmt.Errorf("redis set %s: %w", p.key, err)
	}
	return nil
}
