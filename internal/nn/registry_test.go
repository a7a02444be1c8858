package nn_test

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"inspiro/internal/nn"
	"inspiro/internal/nn/nntest"
)

func TestLoadRegistry(t *testing.T) {
	dir := nntest.WriteRegistry(t, 8)
	reg, err := nn.LoadRegistry(dir, nn.LoadOptions{})
	require.NoError(t, err)

	require.NotNil(t, reg.Status)
	assert.Equal(t, "rf", reg.Status.TrustedName)
	assert.Equal(t, nntest.StatusStyle, reg.Status.StyleFeatures)
	assert.Contains(t, reg.Status.Members, "xgb")
	assert.NotContains(t, reg.Status.Members, "lgb")
	assert.Equal(t, nntest.StatusVersion, reg.Status.Calibration.ModelVersion)

	require.NotNil(t, reg.Reach)
	assert.Equal(t, nn.ReachColumns, reg.Reach.NumCols)
	assert.Equal(t, 0.40, reg.Reach.Threshold)
}

func TestLoadRegistryRejectsUnknownStyleFeature(t *testing.T) {
	dir := nntest.WriteRegistry(t, 4)
	style := append(append([]string{}, nntest.StatusStyle[:9]...), "likes_count")
	nntest.Overwrite(t, dir, "status_style_features.json", style)
	_, err := nn.LoadRegistry(dir, nn.LoadOptions{})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "likes_count")
}

func TestLoadRegistryRejectsWidthMismatch(t *testing.T) {
	dir := nntest.WriteRegistry(t, 4)
	nntest.Overwrite(t, dir, "status_style_features.json", nntest.StatusStyle[:9])
	_, err := nn.LoadRegistry(dir, nn.LoadOptions{})
	assert.True(t, errors.Is(err, nn.ErrWidth))
}

func TestLoadRegistryRejectsCalibrationForOtherModel(t *testing.T) {
	dir := nntest.WriteRegistry(t, 4)
	nntest.Overwrite(t, dir, "status_meta.json", map[string]any{
		"embedding_dim": 4,
		"calibration":   nn.Calibration{Center: 0.46, Spread: 0.008, ModelVersion: "status_rf.v0"},
	})
	_, err := nn.LoadRegistry(dir, nn.LoadOptions{})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "status_rf.v0")
}

func TestLoadRegistryDefaultCalibration(t *testing.T) {
	dir := nntest.WriteRegistry(t, 4)
	nntest.Overwrite(t, dir, "status_meta.json", map[string]any{"embedding_dim": 4})
	_, err := nn.LoadRegistry(dir, nn.LoadOptions{})
	assert.Error(t, err, "zero spread must be rejected")

	reg, err := nn.LoadRegistry(dir, nn.LoadOptions{DefaultCalibration: nn.Calibration{Center: 0.46, Spread: 0.008}})
	require.NoError(t, err)
	assert.Equal(t, 0.46, reg.Status.Calibration.Center)
}

func TestLoadRegistryTrustedMember(t *testing.T) {
	dir := nntest.WriteRegistry(t, 4)
	nntest.Overwrite(t, dir, "status_meta.json", map[string]any{"embedding_dim": 4,
		"calibration": nn.Calibration{Center: 0.5, Spread: 0.01}})
	reg, err := nn.LoadRegistry(dir, nn.LoadOptions{TrustedStatusMember: "xgb"})
	require.NoError(t, err)
	assert.Equal(t, "xgb", reg.Status.TrustedName)

	_, err = nn.LoadRegistry(dir, nn.LoadOptions{TrustedStatusMember: "lgb"})
	assert.True(t, errors.Is(err, os.ErrNotExist))
}

func TestLoadRegistryReachThresholdDefault(t *testing.T) {
	dir := nntest.WriteRegistry(t, 4)
	require.NoError(t, os.Remove(filepath.Join(dir, "reach_thresh.json")))
	reg, err := nn.LoadRegistry(dir, nn.LoadOptions{})
	require.NoError(t, err)
	assert.Equal(t, nn.DefaultReachThreshold, reg.Reach.Threshold)

	nntest.Overwrite(t, dir, "reach_thresh.json", map[string]float64{"best_thresh": 0.55})
	reg, err = nn.LoadRegistry(dir, nn.LoadOptions{})
	require.NoError(t, err)
	assert.Equal(t, 0.55, reg.Reach.Threshold)
}

func TestLoadRegistryScalerWidth(t *testing.T) {
	dir := nntest.WriteRegistry(t, 4)
	nntest.Overwrite(t, dir, "reach_scaler.json", nn.Scaler{Scale: []float64{1, 1}})
	_, err := nn.LoadRegistry(dir, nn.LoadOptions{})
	assert.True(t, errors.Is(err, nn.ErrWidth))
}

func TestLoadRegistryMissingDir(t *testing.T) {
	_, err := nn.LoadRegistry(filepath.Join(t.TempDir(), "missing"), nn.LoadOptions{})
	assert.Error(t, err)
}
