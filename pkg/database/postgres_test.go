package database

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/noah-isme/diploma-checker-api/pkg/config"
)

func TestDSN(t *testing.T) {
	dsn := DSN(config.DatabaseConfig{
		Host:     "db",
		Port:     5433,
		User:     "checker",
		Password: "secret",
		Name:     "diplomas",
		SSLMode:  "require",
	})
	assert.Equal(t, "host=db port=5433 user=checker password=secret dbname=diplomas sslmode=require", dsn)
}
