// Package dbtest opens throwaway SQLite databases with the production schema.
package dbtest

import (
	"context"
	"fmt"
	"path/filepath"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"

	"pixelweave-server/modules/common/database"
	"pixelweave-server/modules/common/model"
)

// New - 임시 SQLite 파일 DB + 스키마
func New(t testing.TB) *database.Client {
	t.Helper()

	dsn := fmt.Sprintf("file:%s?_busy_timeout=5000&_foreign_keys=on", filepath.Join(t.TempDir(), "pixelweave.db"))
	client, err := database.Open(context.Background(), "sqlite3", dsn)
	require.NoError(t, err)
	t.Cleanup(func() { client.Close() })

	require.NoError(t, client.Migrate(context.Background()))
	return client
}

// SeedUser - credit 잔액을 가진 사용자 생성
func SeedUser(t testing.TB, client *database.Client, credit int) *model.User {
	t.Helper()

	user := &model.User{
		UserName: "tester",
		Email:    "tester-" + uuid.NewString() + "@example.com",
		Credit:   credit,
	}
	require.NoError(t, client.CreateUser(context.Background(), user))
	return user
}
