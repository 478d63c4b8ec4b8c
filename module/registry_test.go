package module

import (
	"testing"

	"github.com/nodalis/framework/apperr"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCalculateLoadOrder_LinearChain(t *testing.T) {
	r := NewRegistry()
	require.NoError(t, r.RegisterModule(&Descriptor{Name: "A", Imports: []string{"B"}}))
	require.NoError(t, r.RegisterModule(&Descriptor{Name: "B", Imports: []string{"C"}}))
	require.NoError(t, r.RegisterModule(&Descriptor{Name: "C"}))

	order, err := r.CalculateLoadOrder()
	require.NoError(t, err)
	assert.Equal(t, []string{"C", "B", "A"}, order)
}

func TestCalculateLoadOrder_MissingDependency(t *testing.T) {
	r := NewRegistry()
	require.NoError(t, r.RegisterModule(&Descriptor{Name: "A", Imports: []string{"D"}}))

	_, err := r.CalculateLoadOrder()
	require.Error(t, err)
	var missing *apperr.MissingDependencyError
	require.ErrorAs(t, err, &missing)
	assert.Equal(t, "A", missing.Module)
	assert.Equal(t, "D", missing.Dependency)
}

func TestCalculateLoadOrder_Cycle(t *testing.T) {
	r := NewRegistry()
	require.NoError(t, r.RegisterModule(&Descriptor{Name: "A", Imports: []string{"B"}}))
	require.NoError(t, r.RegisterModule(&Descriptor{Name: "B", Imports: []string{"A"}}))

	_, err := r.CalculateLoadOrder()
	require.Error(t, err)
	var cycle *apperr.CircularDependencyError
	require.ErrorAs(t, err, &cycle)
	assert.Contains(t, cycle.Path, "A")
}

func TestCalculateLoadOrder_DeterministicTieBreak(t *testing.T) {
	r := NewRegistry()
	require.NoError(t, r.RegisterModule(&Descriptor{Name: "Z"}))
	require.NoError(t, r.RegisterModule(&Descriptor{Name: "Y"}))
	require.NoError(t, r.RegisterModule(&Descriptor{Name: "X"}))

	order, err := r.CalculateLoadOrder()
	require.NoError(t, err)
	assert.Equal(t, []string{"X", "Y", "Z"}, order)
}

func TestCanResolve_VisibilityRule(t *testing.T) {
	r := NewRegistry()
	require.NoError(t, r.RegisterModule(&Descriptor{
		Name: "Billing", Providers: []string{"InvoiceService", "internalHelper"}, Exports: []string{"InvoiceService"},
	}))
	require.NoError(t, r.RegisterModule(&Descriptor{Name: "Orders", Imports: []string{"Billing"}}))
	require.NoError(t, r.RegisterModule(&Descriptor{Name: "Unrelated"}))

	assert.True(t, r.CanResolve("Orders", "Billing", "InvoiceService"))
	assert.False(t, r.CanResolve("Orders", "Billing", "internalHelper"), "non-exported provider must not be resolvable")
	assert.False(t, r.CanResolve("Unrelated", "Billing", "InvoiceService"), "non-importing module must not resolve")
	assert.True(t, r.CanResolve("Billing", "Billing", "internalHelper"), "a module can always resolve its own providers")
}

func TestDuplicateModule(t *testing.T) {
	r := NewRegistry()
	require.NoError(t, r.RegisterModule(&Descriptor{Name: "A"}))
	err := r.RegisterModule(&Descriptor{Name: "A"})
	require.Error(t, err)
}
