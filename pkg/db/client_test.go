package db

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/angelmondragon/chatshop/pkg/config"
	"github.com/angelmondragon/chatshop/pkg/logger"
)

type testModel struct {
	ID   int
	Name string `gorm:"uniqueIndex"`
}

func newTestClient(t *testing.T) *Client {
	t.Helper()
	client, err := New(context.Background(), config.DBConfig{
		Driver: config.DriverSQLite,
		DSN:    fmt.Sprintf("file:%s?mode=memory&cache=shared", t.Name()),
	}, logger.Nop())
	require.NoError(t, err)
	t.Cleanup(func() { _ = client.Close() })
	require.NoError(t, client.DB().AutoMigrate(&testModel{}))
	return client
}

func TestWithTxCommitsAndRollsBack(t *testing.T) {
	client := newTestClient(t)
	ctx := context.Background()

	require.NoError(t, client.WithTx(ctx, func(tx *gorm.DB) error {
		return tx.Create(&testModel{Name: "committed"}).Error
	}))

	err := client.WithTx(ctx, func(tx *gorm.DB) error {
		if err := tx.Create(&testModel{Name: "rolled"}).Error; err != nil {
			return err
		}
		return errors.New("boom")
	})
	require.Error(t, err)

	var count int64
	require.NoError(t, client.DB().Model(&testModel{}).Count(&count).Error)
	assert.Equal(t, int64(1), count)
}

func TestPing(t *testing.T) {
	client := newTestClient(t)
	require.NoError(t, client.Ping(context.Background()))
	assert.Equal(t, config.DriverSQLite, client.Driver())
}

func TestNewValidatesConfig(t *testing.T) {
	_, err := New(context.Background(), config.DBConfig{Driver: config.DriverSQLite}, nil)
	require.Error(t, err)

	_, err = New(context.Background(), config.DBConfig{Driver: "mysql", DSN: "x"}, nil)
	require.ErrorContains(t, err, "unsupported db driver")
}

func TestIsUniqueViolation(t *testing.T) {
	client := newTestClient(t)
	ctx := context.Background()
	require.NoError(t, client.DB().WithContext(ctx).Create(&testModel{Name: "dup"}).Error)
	err := client.DB().WithContext(ctx).Create(&testModel{Name: "dup"}).Error
	require.Error(t, err)

	assert.True(t, IsUniqueViolation(err, ""))
	assert.True(t, IsUniqueViolation(err, "test_models.name"))
	assert.False(t, IsUniqueViolation(err, "other_constraint"))
	assert.True(t, IsUniqueViolation(errors.New(`duplicate key value violates unique constraint "x"`), "x"))
	assert.False(t, IsUniqueViolation(errors.New("connection refused"), ""))
	assert.False(t, IsUniqueViolation(nil, ""))
}
