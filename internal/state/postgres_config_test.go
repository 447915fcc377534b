package state

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestPostgresConfigDSNAssemblesFromFields(t *testing.T) {
	cfg := PostgresConfig{Host: "db", Port: 5432, User: "u", Password: "p", Database: "grimoire", SSLMode: "disable"}
	assert.Equal(t, "host=db port=5432 user=u password=p dbname=grimoire sslmode=disable", cfg.DSN())
}

func TestPostgresConfigRawDSNOverridesFields(t *testing.T) {
	cfg := PostgresConfig{Host: "ignored", RawDSN: "postgres://u:p@host:5432/db"}
	assert.Equal(t, "postgres://u:p@host:5432/db", cfg.DSN())
}
