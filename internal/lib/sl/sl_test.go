package sl_test

import (
	"context"
	"errors"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/magabrotheeeer/vpn-storefront/internal/lib/sl"
)

func TestErr(t *testing.T) {
	attr := sl.Err(errors.New("panel unavailable"))

	assert.Equal(t, "error", attr.Key)
	assert.Equal(t, slog.StringValue("panel unavailable"), attr.Value)
}

func TestErr_NilError(t *testing.T) {
	attr := sl.Err(nil)

	assert.Equal(t, "error", attr.Key)
	assert.Equal(t, "", attr.Value.String())
}

func TestSetupLogger(t *testing.T) {
	ctx := context.Background()

	assert.True(t, sl.SetupLogger(sl.EnvLocal).Enabled(ctx, slog.LevelDebug))
	assert.False(t, sl.SetupLogger(sl.EnvProd).Enabled(ctx, slog.LevelDebug))
	assert.True(t, sl.SetupLogger(sl.EnvProd).Enabled(ctx, slog.LevelInfo))
}
