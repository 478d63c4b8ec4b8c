package app

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nodalis/framework/di"
	"github.com/nodalis/framework/module"
)

type pingService struct {
	initialized bool
}

func (p *pingService) Initialize(ctx context.Context) error {
	p.initialized = true
	return nil
}

type pingModule struct{}

func (m *pingModule) Provide(a App) error { return nil }

func (m *pingModule) Descriptor() *module.Descriptor {
	return &module.Descriptor{
		Name:      "ping",
		Providers: []string{"app.pingService"},
		Exports:   []string{"app.pingService"},
	}
}

func (m *pingModule) ProvideServices(b *di.Builder) error {
	return di.For[*pingService](b).AsSingleton().OwnedBy("ping", true).Use(func() *pingService {
		return &pingService{}
	})
}

type vaultService struct{}

type vaultModule struct{}

func (m *vaultModule) Provide(a App) error { return nil }

func (m *vaultModule) Descriptor() *module.Descriptor {
	return &module.Descriptor{
		Name:      "vault",
		Providers: []string{"app.vaultService"},
	}
}

func (m *vaultModule) ProvideServices(b *di.Builder) error {
	return di.For[*vaultService](b).AsSingleton().OwnedBy("vault", false).Use(func() *vaultService {
		return &vaultService{}
	})
}

type consumerModule struct{}

func (m *consumerModule) Provide(a App) error { return nil }

func (m *consumerModule) Descriptor() *module.Descriptor {
	return &module.Descriptor{Name: "consumer", Imports: []string{"ping", "vault"}}
}

func (m *consumerModule) ProvideServices(b *di.Builder) error { return nil }

func TestBootServices_InitializesSingletonsBeforeServing(t *testing.T) {
	a := newTestApp()
	a.providers = []Provider{&pingModule{}}

	require.NoError(t, a.bootServices())

	svc, err := di.Resolve[*pingService](a.Container())
	require.NoError(t, err)
	assert.True(t, svc.initialized, "Initialize must run during boot, before the server starts")
}

func TestBootServices_ContainerEnforcesModuleVisibility(t *testing.T) {
	a := newTestApp()
	a.providers = []Provider{&pingModule{}, &vaultModule{}, &consumerModule{}}

	require.NoError(t, a.bootServices())
	c := a.Container()

	// Exported provider of an imported module resolves.
	_, err := di.ResolveFrom[*pingService](c, "consumer")
	require.NoError(t, err)

	// Non-exported provider stays module-private even for an importer.
	_, err = di.ResolveFrom[*vaultService](c, "consumer")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "not visible")

	// A module outside the import graph sees nothing.
	_, err = di.ResolveFrom[*pingService](c, "vault")
	require.Error(t, err)
}
