package di

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nodalis/framework/module"
)

type invoiceService struct{}
type ledger struct{}

func billingGraph(t *testing.T) *module.Registry {
	t.Helper()
	reg := module.NewRegistry()
	require.NoError(t, reg.RegisterModule(&module.Descriptor{
		Name:      "billing",
		Providers: []string{"di.invoiceService", "di.ledger"},
		Exports:   []string{"di.invoiceService"},
	}))
	require.NoError(t, reg.RegisterModule(&module.Descriptor{Name: "orders", Imports: []string{"billing"}}))
	require.NoError(t, reg.RegisterModule(&module.Descriptor{Name: "unrelated"}))
	return reg
}

func buildBillingContainer(t *testing.T, reg *module.Registry) *Container {
	t.Helper()
	b := NewBuilder().WithVisibility(reg.CanResolve)
	require.NoError(t, For[*invoiceService](b).AsSingleton().OwnedBy("billing", true).Use(func() *invoiceService { return &invoiceService{} }))
	require.NoError(t, For[*ledger](b).AsSingleton().OwnedBy("billing", false).Use(func() *ledger { return &ledger{} }))

	c, err := b.Build(noopEnv{})
	require.NoError(t, err)
	return c
}

func TestResolveFrom_ExportedProviderVisibleToImporter(t *testing.T) {
	c := buildBillingContainer(t, billingGraph(t))

	svc, err := ResolveFrom[*invoiceService](c, "orders")
	require.NoError(t, err)
	assert.NotNil(t, svc)
}

func TestResolveFrom_NonExportedProviderIsModulePrivate(t *testing.T) {
	c := buildBillingContainer(t, billingGraph(t))

	_, err := ResolveFrom[*ledger](c, "orders")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "not visible")

	// The owning module and the application host still resolve it.
	own, err := ResolveFrom[*ledger](c, "billing")
	require.NoError(t, err)
	assert.NotNil(t, own)

	host, err := Resolve[*ledger](c)
	require.NoError(t, err)
	assert.NotNil(t, host)
}

func TestResolveFrom_NonImportingModuleCannotResolveExports(t *testing.T) {
	c := buildBillingContainer(t, billingGraph(t))

	_, err := ResolveFrom[*invoiceService](c, "unrelated")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "not visible")
}

func TestResolveFrom_ExportedFlagGatesWithoutPolicy(t *testing.T) {
	b := NewBuilder()
	require.NoError(t, For[*invoiceService](b).AsSingleton().OwnedBy("billing", true).Use(func() *invoiceService { return &invoiceService{} }))
	require.NoError(t, For[*ledger](b).AsSingleton().OwnedBy("billing", false).Use(func() *ledger { return &ledger{} }))

	c, err := b.Build(noopEnv{})
	require.NoError(t, err)

	_, err = ResolveFrom[*invoiceService](c, "orders")
	require.NoError(t, err)

	_, err = ResolveFrom[*ledger](c, "orders")
	require.Error(t, err)
}

func TestConstruct_DependenciesResolveOnBehalfOfOwner(t *testing.T) {
	reg := billingGraph(t)
	b := NewBuilder().WithVisibility(reg.CanResolve)
	require.NoError(t, For[*invoiceService](b).AsSingleton().OwnedBy("billing", true).Use(func() *invoiceService { return &invoiceService{} }))
	require.NoError(t, For[*ledger](b).AsSingleton().OwnedBy("billing", false).Use(func() *ledger { return &ledger{} }))
	// An orders-owned service may depend on billing's export, but a
	// dependency on billing's private ledger fails at resolve time.
	require.NoError(t, For[*greeter](b).OwnedBy("orders", false).Use(func(s *invoiceService) *greeter { return &greeter{} }))
	require.NoError(t, For[greeterB](b).OwnedBy("orders", false).Use(func(l *ledger) greeterB { return greeterB{} }))

	c, err := b.Build(noopEnv{})
	require.NoError(t, err)

	_, err = ResolveFrom[*greeter](c, "orders")
	require.NoError(t, err)

	_, err = ResolveFrom[greeterB](c, "orders")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "not visible")
}
