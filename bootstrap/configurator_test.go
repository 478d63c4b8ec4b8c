package bootstrap

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nodalis/framework/di"
)

type auditLogger struct{}

func (a *auditLogger) LifetimeHint() di.Lifetime { return di.Singleton }

func TestConfigurator_DerivesLifetimesByConvention(t *testing.T) {
	b := di.NewBuilder()
	cfg := NewConfigurator(b)

	require.NoError(t, cfg.Provide(func() *UserRepository { return &UserRepository{} }, "users", true))
	require.NoError(t, cfg.Provide(func(r *UserRepository) *UserService { return &UserService{} }, "users", true))
	require.NoError(t, cfg.Provide(func(s *UserService) *UserController { return &UserController{} }, "users", false))

	report := cfg.Validate()
	require.Len(t, report.Findings, 3)
	assert.Equal(t, 1, report.ByRole["controller"])
	assert.Equal(t, 2, report.ByLifetime["scoped"], "services and repositories default to scoped")
	assert.Equal(t, 1, report.ByLifetime["transient"], "controllers default to transient")
	assert.Equal(t, 2, report.MaxDependencyDepth)
}

func TestConfigurator_LifetimeHintOverridesConvention(t *testing.T) {
	b := di.NewBuilder()
	cfg := NewConfigurator(b)

	require.NoError(t, cfg.Provide(func() *auditLogger { return &auditLogger{} }, "core", true))

	report := cfg.Validate()
	require.Len(t, report.Findings, 1)
	assert.Equal(t, 1, report.ByLifetime["singleton"])
}

func TestConfigurator_FlagsSingletonDependingOnScoped(t *testing.T) {
	b := di.NewBuilder()
	cfg := NewConfigurator(b)

	require.NoError(t, cfg.Provide(func() *UserRepository { return &UserRepository{} }, "users", true))
	require.NoError(t, cfg.Provide(func(r *UserRepository) *auditLogger { return &auditLogger{} }, "core", true))

	report := cfg.Validate()
	require.NotEmpty(t, report.PotentialIssues)
	assert.Contains(t, report.PotentialIssues[len(report.PotentialIssues)-1], "singleton depends on scoped")
}

func TestConfigurator_RejectsBadFactories(t *testing.T) {
	cfg := NewConfigurator(di.NewBuilder())
	assert.Error(t, cfg.Provide(42, "m", false))
	assert.Error(t, cfg.Provide(func() {}, "m", false))
	assert.Error(t, cfg.Provide(func() (int, int) { return 0, 0 }, "m", false))
}
