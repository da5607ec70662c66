package cmdutils

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bharatpratapsingh0802/loan-lounge-nearby/internal/config"
)

func TestCobraCommand(t *testing.T) {
	t.Run("creates command with correct properties", func(t *testing.T) {
		businessFunc := func(ctx context.Context, cfg *config.Config) error {
			return nil
		}

		cmd := CobraCommand("test-cmd", "short desc", "long description", "v1.0.0", businessFunc)

		assert.Equal(t, "test-cmd", cmd.Use)
		assert.Equal(t, "short desc", cmd.Short)
		assert.Equal(t, "long description", cmd.Long)
		assert.NotNil(t, cmd.RunE)
	})

	t.Run("RunE surfaces a failing business function", func(t *testing.T) {
		businessErr := errors.New("business error")
		businessFunc := func(ctx context.Context, cfg *config.Config) error {
			return businessErr
		}

		cmd := CobraCommand("test", "short", "long", "v1.0.0", businessFunc)
		cmd.SetArgs([]string{})

		err := cmd.Execute()
		require.Error(t, err)
		assert.ErrorIs(t, err, businessErr)
	})
}

func TestVersionFromBuildInfo(t *testing.T) {
	tests := []struct {
		name      string
		buildInfo string
		want      string
	}{
		{
			name:      "json with version",
			buildInfo: `{"version": "1.2.3", "commit": "abc"}`,
			want:      "1.2.3",
		},
		{
			name:      "json without version",
			buildInfo: `{"commit": "abc"}`,
			want:      "",
		},
		{
			name:      "plain string",
			buildInfo: "v0.9.0\n",
			want:      "v0.9.0",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, VersionFromBuildInfo(tt.buildInfo))
		})
	}
}

func TestInitLogger(t *testing.T) {
	t.Run("accepts known levels and formats", func(t *testing.T) {
		cfg := &config.Config{}
		cfg.Logger.Level = "debug"
		cfg.Logger.Format = "text"

		require.NoError(t, InitLogger(cfg))
	})

	t.Run("rejects unknown level", func(t *testing.T) {
		cfg := &config.Config{}
		cfg.Logger.Level = "loud"

		require.Error(t, InitLogger(cfg))
	})
}
