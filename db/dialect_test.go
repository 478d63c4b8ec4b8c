package db

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDataSourceString(t *testing.T) {
	sqlite := &DataSource{Dialect: DialectSQLite, Name: "app.db"}
	dsn, err := sqlite.String()
	require.NoError(t, err)
	assert.Equal(t, "app.db", dsn)

	sqlite.Params = "mode=memory"
	dsn, err = sqlite.String()
	require.NoError(t, err)
	assert.Equal(t, "app.db?mode=memory", dsn)

	mysql := &DataSource{
		Dialect: DialectMySQL, Host: "localhost", Port: "3306",
		Username: "root", Password: "secret", Name: "app",
	}
	dsn, err = mysql.String()
	require.NoError(t, err)
	assert.Equal(t, "root:secret@tcp(localhost:3306)/app", dsn)

	postgres := &DataSource{
		Dialect: DialectPostgres, Host: "localhost", Port: "5432",
		Username: "app", Password: "secret", Name: "app", Params: "sslmode=disable",
	}
	dsn, err = postgres.String()
	require.NoError(t, err)
	assert.Equal(t, "host=localhost port=5432 user=app password=secret dbname=app sslmode=disable", dsn)

	unknown := &DataSource{Dialect: "oracle"}
	_, err = unknown.String()
	assert.Error(t, err)
}
