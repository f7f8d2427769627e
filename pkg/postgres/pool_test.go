package postgres

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestConfigDSN_Defaults(t *testing.T) {
	cfg := Config{Host: "db", User: "lending_app", Password: "pw", Database: "homelend"}
	assert.Equal(t, "postgres://lending_app:pw@db:5432/homelend?sslmode=require", cfg.DSN())
}

func TestConfigDSN_Explicit(t *testing.T) {
	cfg := Config{
		Host: "db", User: "compliance_app", Password: "pw", Database: "homelend",
		Port: 6432, SSLMode: "disable",
	}
	assert.Equal(t, "postgres://compliance_app:pw@db:6432/homelend?sslmode=disable", cfg.DSN())
}
