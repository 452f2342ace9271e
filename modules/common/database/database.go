package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgconn"
	_ "github.com/jackc/pgx/v5/stdlib" // "pgx" 드라이버 등록
	"github.com/mattn/go-sqlite3"
	log "github.com/sirupsen/logrus"

	"pixelweave-server/modules/common/apperr"
	"pixelweave-server/modules/common/config"
)

// Querier - *sql.DB 와 *sql.Tx 공통 인터페이스
type Querier interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

type Client struct {
	db     *sql.DB
	driver string
}

// NewClient - 설정 기반 Database 클라이언트 생성
func NewClient(ctx context.Context, cfg *config.Config) (*Client, error) {
	return Open(ctx, cfg.DatabaseDriver, cfg.DatabaseURL)
}

// Open - 드라이버 이름과 DSN 으로 연결 (pgx | sqlite3)
func Open(ctx context.Context, driver, dsn string) (*Client, error) {
	log.Printf("🔌 Connecting to database (%s)", driver)

	db, err := sql.Open(driver, dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	if driver == "sqlite3" {
		// SQLite 는 writer 하나만 허용
		db.SetMaxOpenConns(1)
	} else {
		db.SetMaxOpenConns(25)
		db.SetMaxIdleConns(5)
		db.SetConnMaxLifetime(30 * time.Minute)
	}

	pingCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()
	if err := db.PingContext(pingCtx); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	log.Println("✅ Database connected successfully")
	return &Client{db: db, driver: driver}, nil
}

// DB - 내부 *sql.DB (ledger 등 다른 패키지가 사용)
func (c *Client) DB() *sql.DB {
	return c.db
}

// Close - 연결 종료
func (c *Client) Close() error {
	return c.db.Close()
}

// WithTx - 트랜잭션 안에서 fn 실행 (에러 시 롤백)
func (c *Client) WithTx(ctx context.Context, fn func(tx *sql.Tx) error) error {
	tx, err := c.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("%w: begin transaction: %v", apperr.ErrPersistence, err)
	}

	defer func() {
		if p := recover(); p != nil {
			_ = tx.Rollback()
			panic(p)
		}
	}()

	if err := fn(tx); err != nil {
		if rbErr := tx.Rollback(); rbErr != nil && !errors.Is(rbErr, sql.ErrTxDone) {
			log.Warnf("⚠️  Rollback failed: %v", rbErr)
		}
		return err
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("%w: commit: %v", apperr.ErrPersistence, err)
	}
	return nil
}

// IsUniqueViolation - 드라이버별 unique 제약 위반 판별
func IsUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Code == "23505"
	}
	var liteErr sqlite3.Error
	if errors.As(err, &liteErr) {
		return liteErr.ExtendedCode == sqlite3.ErrConstraintUnique ||
			liteErr.ExtendedCode == sqlite3.ErrConstraintPrimaryKey
	}
	return false
}

// persistErr - DB 에러를 ErrPersistence 로 감싸기
func persistErr(action string, err error) error {
	return fmt.Errorf("%w: %s: %v", apperr.ErrPersistence, action, err)
}

// now - DB 에 기록하는 시각 (UTC, 마이크로초 정밀도)
func now() time.Time {
	return time.Now().UTC().Truncate(time.Microsecond)
}

func nullTime(t sql.NullTime) *time.Time {
	if !t.Valid {
		return nil
	}
	v := t.Time.UTC()
	return &v
}

func nullString(s sql.NullString) *string {
	if !s.Valid {
		return nil
	}
	v := s.String
	return &v
}
