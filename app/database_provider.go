package app

import (
	"github.com/nodalis/framework/config"
	"github.com/nodalis/framework/db"
	"github.com/nodalis/framework/di"
	"github.com/nodalis/framework/module"
)

// DatabaseServiceProvider opens the default connection and contributes it to
// the container as a singleton, registered under its own "database" module
// so other modules can depend on it through the import/export graph.
type DatabaseServiceProvider struct{}

// Provide is a no-op: the connection itself is registered through
// ProvideServices, and app.bootServices resolves it into a.dbConn once the
// container is built. This method only exists so DatabaseServiceProvider
// satisfies the plain Provider interface.
func (p *DatabaseServiceProvider) Provide(a App) error {
	return nil
}

func (p *DatabaseServiceProvider) Descriptor() *module.Descriptor {
	return &module.Descriptor{
		Name:      "database",
		Providers: []string{"db.Connection"},
		Exports:   []string{"db.Connection"},
	}
}

// ProvideServices registers the connection as a singleton; db.Connection
// already implements di.Disposable via its Close method, so the container
// closes it on teardown without any extra wiring here.
func (p *DatabaseServiceProvider) ProvideServices(b *di.Builder) error {
	return di.For[*db.Connection](b).AsSingleton().OwnedBy("database", true).Use(p.connect)
}

func (p *DatabaseServiceProvider) connect() (*db.Connection, error) {
	cfg := &db.Config{
		ConnName: "default",
		Driver:   config.GetAs[string]("database.connections.default.driver"),
		Host:     config.GetAs[string]("database.connections.default.host"),
		Port:     config.GetAs[int]("database.connections.default.port"),
		Database: config.GetAs[string]("database.connections.default.database"),
		User:     config.GetAs[string]("database.connections.default.user"),
		Password: config.GetAs[string]("database.connections.default.password"),
		Params:   config.GetAs[string]("database.connections.default.params"),
	}
	return db.NewConnection(cfg).Open()
}
