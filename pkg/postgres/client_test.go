package postgres

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/Adithya-Monish-Kumar-K/concordance/pkg/config"
)

func TestLockKeyIsStablePerSchema(t *testing.T) {
	assert.Equal(t, lockKey("documents"), lockKey("documents"))
	assert.NotEqual(t, lockKey("documents"), lockKey("search_stats_snapshots"))
}

func TestNewFailsFastWithoutServer(t *testing.T) {
	_, err := New(config.PostgresConfig{
		Host:     "127.0.0.1",
		Port:     1,
		Database: "none",
		User:     "none",
		Password: "none",
		SSLMode:  "disable",
	})
	assert.ErrorContains(t, err, "connecting to postgres 127.0.0.1:1/none")
}
