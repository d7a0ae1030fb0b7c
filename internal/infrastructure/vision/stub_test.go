//go:build !gocv
// +build !gocv

package vision

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"blister-inspector/internal/domain/entity"
)

func TestStubInspector(t *testing.T) {
	insp, err := NewInspector(entity.DefaultInspectionConfig(), nil)
	require.NoError(t, err)

	_, err = insp.Inspect(context.Background(), []byte("frame"))
	require.ErrorIs(t, err, ErrGoCVDisabled)

	_, err = NewCameraSource(0, nil)
	require.ErrorIs(t, err, ErrGoCVDisabled)
}

func TestStubInspectorRejectsInvalidConfig(t *testing.T) {
	cfg := entity.DefaultInspectionConfig()
	cfg.Segmentation.Strategy = "watershed"
	_, err := NewInspector(cfg, nil)
	require.ErrorIs(t, err, entity.ErrInvalidConfig)
}
