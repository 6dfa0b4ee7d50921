package lexicon

import (
	"context"
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/scrypster/resonance/pkg/types"
)

// CalibrationFile is the YAML document accepted by LoadCalibration:
//
//	emotions:
//	  - label: wistful
//	    axes: [-1, 1, -1, 1]
//	    shadow_for: [ESTJ]
type CalibrationFile struct {
	Emotions []CalibrationEntry `yaml:"emotions"`
}

// CalibrationEntry calibrates one label.
type CalibrationEntry struct {
	Label     string   `yaml:"label"`
	Axes      []int    `yaml:"axes"`
	ShadowFor []string `yaml:"shadow_for"`
}

// Weights converts the entry's axes to types.Axes.
func (e CalibrationEntry) Weights() (types.Axes, error) {
	var a types.Axes
	if len(e.Axes) != types.AxisCount {
		return a, fmt.Errorf("emotion %q: expected %d axes, got %d", e.Label, types.AxisCount, len(e.Axes))
	}
	copy(a[:], e.Axes)
	return a, nil
}

// ParseCalibration decodes and validates a calibration document.
func ParseCalibration(data []byte) ([]CalibrationEntry, error) {
	var file CalibrationFile
	if err := yaml.Unmarshal(data, &file); err != nil {
		return nil, fmt.Errorf("invalid calibration YAML: %w", err)
	}

	seen := make(map[string]bool, len(file.Emotions))
	for i, e := range file.Emotions {
		w, err := e.Weights()
		if err != nil {
			return nil, err
		}
		if err := ValidateCalibration(e.Label, w, e.ShadowFor); err != nil {
			return nil, fmt.Errorf("emotion %d: %w", i, err)
		}
		label := types.NormalizeLabel(e.Label)
		if seen[label] {
			return nil, fmt.Errorf("emotion %q listed twice", label)
		}
		seen[label] = true
	}
	return file.Emotions, nil
}

// LoadCalibration reads and validates a calibration file.
func LoadCalibration(path string) ([]CalibrationEntry, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read calibration file: %w", err)
	}
	return ParseCalibration(data)
}

// ApplyCalibration stores every entry and returns how many were applied.
func (l *Lexicon) ApplyCalibration(ctx context.Context, entries []CalibrationEntry) (int, error) {
	for i, e := range entries {
		w, err := e.Weights()
		if err != nil {
			return i, err
		}
		if _, err := l.Calibrate(ctx, e.Label, w, e.ShadowFor); err != nil {
			return i, fmt.Errorf("calibrate %q: %w", e.Label, err)
		}
	}
	return len(entries), nil
}
