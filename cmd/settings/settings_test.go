package settings

import (
	"bytes"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/camtrack/dcerno-vhd/internal/app"
	"github.com/camtrack/dcerno-vhd/internal/conf"
	"github.com/camtrack/dcerno-vhd/internal/store"
)

func newContext(t *testing.T) *app.Context {
	t.Helper()
	dir := t.TempDir()
	ctx := app.NewContext(nil)
	ctx.Settings = &conf.Settings{
		Store: conf.StoreSettings{
			Backend:      store.BackendJSON,
			MappingFile:  filepath.Join(dir, "mapping.json"),
			SettingsFile: filepath.Join(dir, "settings.json"),
		},
	}
	return ctx
}

func execute(t *testing.T, ctx *app.Context, args ...string) (string, error) {
	t.Helper()
	cmd := Command(ctx)
	var out bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetErr(&out)
	cmd.SetArgs(args)
	err := cmd.ExecuteContext(t.Context())
	return out.String(), err
}

func TestSettingsRoundTrip(t *testing.T) {
	t.Parallel()

	ctx := newContext(t)

	out, err := execute(t, ctx, "show")
	require.NoError(t, err)
	assert.Equal(t, "global tracking: off\n", out, "absent global flag means disabled")

	out, err = execute(t, ctx, "global", "on")
	require.NoError(t, err)
	assert.Equal(t, "global tracking on\n", out)
	out, err = execute(t, ctx, "show")
	require.NoError(t, err)
	assert.Equal(t, "global tracking: on\n", out)

	_, err = execute(t, ctx, "enable", "10.0.0.6")
	require.NoError(t, err)
	_, err = execute(t, ctx, "disable", "10.0.0.5")
	require.NoError(t, err)
	out, err = execute(t, ctx, "global", "off")
	require.NoError(t, err)
	assert.Equal(t, "global tracking off\n", out)

	out, err = execute(t, ctx, "show")
	require.NoError(t, err)
	assert.Equal(t, "global tracking: off\n"+
		"10.0.0.5         off\n"+
		"10.0.0.6         on\n", out)
}

func TestGlobalRejectsUnknownValue(t *testing.T) {
	t.Parallel()

	_, err := execute(t, newContext(t), "global", "maybe")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "expected on or off")
}
