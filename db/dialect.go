package db

import "fmt"

// Dialect names one of the three SQL backends the connection manager and
// the query builder both understand. It is an alias, not a distinct type,
// so it compares directly against Config.Driver and orm's own dialect
// switches without a conversion at every call site.
type Dialect = string

const (
	DialectMySQL    Dialect = "mysql"
	DialectPostgres Dialect = "postgres"
	DialectSQLite   Dialect = "sqlite"
)

// DataSource holds the pieces of a connection string in dialect-neutral
// form; String renders the dialect-specific DSN gorm's drivers expect.
type DataSource struct {
	Dialect  Dialect
	Host     string
	Port     string
	Username string
	Password string
	Name     string
	Params   string
}

func (d *DataSource) String() (string, error) {
	switch d.Dialect {
	case DialectSQLite:
		if d.Params == "" {
			return d.Name, nil
		}
		return d.Name + "?" + d.Params, nil
	case DialectMySQL:
		dsn := fmt.Sprintf("%s:%s@tcp(%s:%s)/%s", d.Username, d.Password, d.Host, d.Port, d.Name)
		if d.Params != "" {
			dsn += "?" + d.Params
		}
		return dsn, nil
	case DialectPostgres:
		dsn := fmt.Sprintf("host=%s port=%s user=%s password=%s dbname=%s", d.Host, d.Port, d.Username, d.Password, d.Name)
		if d.Params != "" {
			dsn += " " + d.Params
		}
		return dsn, nil
	default:
		return "", fmt.Errorf("unsupported dialect %q", d.Dialect)
	}
}
