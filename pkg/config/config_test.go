package config_test

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/growthacademy/subscriptions/pkg/config"
)

type testConfig struct {
	Secret  string        `env:"CFG_TEST_SECRET,required"`
	Timeout time.Duration `env:"CFG_TEST_TIMEOUT" envDefault:"30s"`
	Retries int           `env:"CFG_TEST_RETRIES" envDefault:"3"`
}

func TestLoad(t *testing.T) {
	t.Setenv("CFG_TEST_SECRET", "whsec_abc")
	t.Setenv("CFG_TEST_TIMEOUT", "5s")

	var cfg testConfig
	require.NoError(t, config.Load(&cfg))

	assert.Equal(t, "whsec_abc", cfg.Secret)
	assert.Equal(t, 5*time.Second, cfg.Timeout)
	assert.Equal(t, 3, cfg.Retries, "default applies when unset")
}

type missingRequiredConfig struct {
	Secret string `env:"CFG_TEST_NEVER_SET,required"`
}

func TestLoad_MissingRequired(t *testing.T) {
	t.Parallel()

	var cfg missingRequiredConfig
	err := config.Load(&cfg)
	require.ErrorIs(t, err, config.ErrParsingConfig)
}

func TestLoad_NilPointer(t *testing.T) {
	t.Parallel()

	err := config.Load[testConfig](nil)
	require.ErrorIs(t, err, config.ErrNilPointer)
}

func TestMustLoad_PanicsOnFailure(t *testing.T) {
	t.Parallel()

	require.Panics(t, func() {
		var cfg missingRequiredConfig
		config.MustLoad(&cfg)
	})
}
