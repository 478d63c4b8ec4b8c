package di

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type clock interface{ Tick() int }

type fakeClock struct{ n int }

func (f *fakeClock) Tick() int { return f.n }

func TestBind_InterfaceThroughRegisteredImpl(t *testing.T) {
	b := NewBuilder()
	require.NoError(t, For[*fakeClock](b).AsSingleton().Use(func() *fakeClock { return &fakeClock{n: 7} }))
	require.NoError(t, Bind[clock, *fakeClock](b))

	c, err := b.Build(noopEnv{})
	require.NoError(t, err)

	ck, err := Resolve[clock](c)
	require.NoError(t, err)
	assert.Equal(t, 7, ck.Tick())
}

func TestBindNamed_ResolvesByName(t *testing.T) {
	b := NewBuilder()
	require.NoError(t, BindNamed[*fakeClock](b, "wall", func() *fakeClock { return &fakeClock{n: 1} }))
	require.NoError(t, BindNamed[*fakeClock](b, "mono", func() *fakeClock { return &fakeClock{n: 2} }))

	c, err := b.Build(noopEnv{})
	require.NoError(t, err)

	mono, err := ResolveNamed[*fakeClock](c, "mono")
	require.NoError(t, err)
	assert.Equal(t, 2, mono.Tick())
}

func TestBindFactory_ReceivesContainer(t *testing.T) {
	b := NewBuilder()
	require.NoError(t, BindNamed[*fakeClock](b, "wall", func() *fakeClock { return &fakeClock{n: 3} }))
	require.NoError(t, BindFactory[clock](b, func(c *Container) (clock, error) {
		return ResolveNamed[*fakeClock](c, "wall")
	}))

	c, err := b.Build(noopEnv{})
	require.NoError(t, err)

	ck, err := Resolve[clock](c)
	require.NoError(t, err)
	assert.Equal(t, 3, ck.Tick())
}

func TestBindLazy_DefersConstructionUntilGet(t *testing.T) {
	b := NewBuilder()
	built := false
	require.NoError(t, BindLazy[*fakeClock](b, func() (*fakeClock, error) {
		built = true
		return &fakeClock{n: 9}, nil
	}))

	c, err := b.Build(noopEnv{})
	require.NoError(t, err)

	lazy, err := Resolve[*Lazy[*fakeClock]](c)
	require.NoError(t, err)
	assert.False(t, built, "lazy value must not construct at resolve time")

	ck, err := lazy.Get()
	require.NoError(t, err)
	assert.True(t, built)
	assert.Equal(t, 9, ck.Tick())
}

func TestRegistrar_RejectsNonFunctionFactory(t *testing.T) {
	b := NewBuilder()
	assert.Error(t, For[*fakeClock](b).Use(42))
	assert.Error(t, For[*fakeClock](b).Use(func() {}))
	assert.Error(t, For[*fakeClock](b).Use(func() (int, error) { return 0, nil }))
}

func TestRegister_DuplicateServiceIdFails(t *testing.T) {
	b := NewBuilder()
	require.NoError(t, BindTransient[*fakeClock](b, func() *fakeClock { return &fakeClock{} }))
	err := BindTransient[*fakeClock](b, func() *fakeClock { return &fakeClock{} })
	require.Error(t, err)
}
