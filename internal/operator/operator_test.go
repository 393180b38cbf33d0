package operator

import (
	"context"
	"strconv"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/camtrack/dcerno-vhd/internal/errors"
	"github.com/camtrack/dcerno-vhd/internal/ptz"
	"github.com/camtrack/dcerno-vhd/internal/store"
)

type fakeMics struct {
	uids []string
	err  error
}

func (f *fakeMics) HasMicrophone(_ context.Context, uid string) (bool, error) {
	if f.err != nil {
		return false, f.err
	}
	for _, u := range f.uids {
		if u == uid {
			return true, nil
		}
	}
	return false, nil
}

type call struct {
	camera, action, position string
}

type fakeCameras struct {
	mu    sync.Mutex
	calls []call
	fail  error
}

func (f *fakeCameras) Get(ip string) (ptz.Controller, error) {
	return &fakeCamera{ip: ip, f: f}, nil
}

type fakeCamera struct {
	ip string
	f  *fakeCameras
}

func (c *fakeCamera) Call(_ context.Context, action, position, _ string) (*ptz.Result, error) {
	c.f.mu.Lock()
	defer c.f.mu.Unlock()
	c.f.calls = append(c.f.calls, call{camera: c.ip, action: action, position: position})
	if c.f.fail != nil {
		return nil, c.f.fail
	}
	return &ptz.Result{Action: action, StatusCode: 200}, nil
}
func (c *fakeCamera) Ping(context.Context) (string, error) { return "", nil }
func (c *fakeCamera) Address() string                      { return c.ip }

func newOperator(t *testing.T) (*Operator, *fakeCameras, *store.MemoryStore) {
	t.Helper()
	st := store.NewMemoryStore()
	cams := &fakeCameras{}
	return New(&fakeMics{uids: []string{"micA", "micB", "micC"}}, cams, st), cams, st
}

func TestRegisterPresetAllocates(t *testing.T) {
	t.Parallel()

	op, cams, st := newOperator(t)
	ctx := t.Context()

	reg, err := op.RegisterPreset(ctx, "micA", "10.0.0.5")
	require.NoError(t, err)
	assert.Equal(t, store.Mapping{MicroID: "micA", CameraIP: "10.0.0.5", Number: 10}, reg.Mapping)
	assert.False(t, reg.Reused)

	reg, err = op.RegisterPreset(ctx, "micB", "10.0.0.6")
	require.NoError(t, err)
	assert.Equal(t, 11, reg.Mapping.Number)

	// re-registering keeps the number and may move the camera
	reg, err = op.RegisterPreset(ctx, "micA", "10.0.0.6")
	require.NoError(t, err)
	assert.True(t, reg.Reused)
	assert.Equal(t, 10, reg.Mapping.Number)

	m, ok, err := st.Mapping(ctx, "micA")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, "10.0.0.6", m.CameraIP)

	assert.Equal(t, []call{
		{"10.0.0.5", ptz.ActionPosSet, "10"},
		{"10.0.0.6", ptz.ActionPosSet, "11"},
		{"10.0.0.6", ptz.ActionPosSet, "10"},
	}, cams.calls)
}

func TestRegisterPresetFillsGaps(t *testing.T) {
	t.Parallel()

	op, _, st := newOperator(t)
	ctx := t.Context()
	for i, n := range []int{10, 12} {
		require.NoError(t, st.PutMapping(ctx, store.Mapping{MicroID: "old" + strconv.Itoa(i), CameraIP: "10.0.0.5", Number: n}))
	}

	reg, err := op.RegisterPreset(ctx, "micC", "10.0.0.5")
	require.NoError(t, err)
	assert.Equal(t, 11, reg.Mapping.Number)
}

func TestRegisterPresetNotSavedWhenCameraRejects(t *testing.T) {
	t.Parallel()

	op, cams, st := newOperator(t)
	cams.fail = errors.ClientError(errors.NewStd("cannot set preset"), "ptz")

	_, err := op.RegisterPreset(t.Context(), "micA", "10.0.0.5")
	require.Error(t, err)

	_, ok, err := st.Mapping(t.Context(), "micA")
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestRegisterPresetUnknownMicrophone(t *testing.T) {
	t.Parallel()

	op, cams, _ := newOperator(t)

	_, err := op.RegisterPreset(t.Context(), "ghost", "10.0.0.5")
	require.Error(t, err)
	assert.True(t, errors.IsNotFound(err))
	assert.Empty(t, cams.calls)

	_, err = op.RegisterPreset(t.Context(), "micA", "")
	require.Error(t, err)
	assert.True(t, errors.IsCategory(err, errors.CategoryValidation))
}

func TestCallMicrophone(t *testing.T) {
	t.Parallel()

	op, cams, st := newOperator(t)
	ctx := t.Context()
	require.NoError(t, st.PutMapping(ctx, store.Mapping{MicroID: "micA", CameraIP: "10.0.0.5", Number: 14}))

	m, res, err := op.CallMicrophone(ctx, "micA")
	require.NoError(t, err)
	assert.Equal(t, 14, m.Number)
	assert.Equal(t, ptz.ActionPosCall, res.Action)
	assert.Equal(t, []call{{"10.0.0.5", ptz.ActionPosCall, "14"}}, cams.calls)
}

func TestCallMicrophoneWithoutPreset(t *testing.T) {
	t.Parallel()

	op, cams, _ := newOperator(t)

	_, _, err := op.CallMicrophone(t.Context(), "micB")
	require.Error(t, err)
	assert.True(t, errors.IsNotFound(err))
	assert.Contains(t, err.Error(), "microphone micB has no preset")
	assert.Empty(t, cams.calls)
}

func TestControllerErrorsPropagate(t *testing.T) {
	t.Parallel()

	down := errors.ClientError(errors.NewStd("connection refused"), "dcerno")
	op := New(&fakeMics{err: down}, &fakeCameras{}, store.NewMemoryStore())

	_, _, err := op.CallMicrophone(t.Context(), "micA")
	require.ErrorIs(t, err, down)
}

func TestPresetsSortedAndDelete(t *testing.T) {
	t.Parallel()

	op, _, st := newOperator(t)
	ctx := t.Context()
	for _, m := range []store.Mapping{
		{MicroID: "micC", CameraIP: "10.0.0.6", Number: 10},
		{MicroID: "micB", CameraIP: "10.0.0.5", Number: 12},
		{MicroID: "micA", CameraIP: "10.0.0.5", Number: 11},
	} {
		require.NoError(t, st.PutMapping(ctx, m))
	}

	presets, err := op.Presets(ctx)
	require.NoError(t, err)
	var uids []string
	for _, p := range presets {
		uids = append(uids, p.MicroID)
	}
	assert.Equal(t, []string{"micA", "micB", "micC"}, uids)

	require.NoError(t, op.DeletePreset(ctx, "micB"))
	err = op.DeletePreset(ctx, "micB")
	require.Error(t, err)
	assert.True(t, errors.IsNotFound(err))
}

func TestTrackingSettings(t *testing.T) {
	t.Parallel()

	op, _, _ := newOperator(t)
	ctx := t.Context()

	flags, err := op.TrackingFlags(ctx)
	require.NoError(t, err)
	assert.False(t, flags.GlobalEnabled, "absent global flag means disabled")

	require.NoError(t, op.SetCameraTracking(ctx, "10.0.0.5", true))
	require.NoError(t, op.SetCameraTracking(ctx, "10.0.0.6", false))
	require.NoError(t, op.SetGlobalTracking(ctx, false))
	require.Error(t, op.SetCameraTracking(ctx, "", true))

	flags, err = op.TrackingFlags(ctx)
	require.NoError(t, err)
	assert.False(t, flags.GlobalEnabled)
	assert.Equal(t, []string{"10.0.0.5"}, flags.EnabledCameras())
}
