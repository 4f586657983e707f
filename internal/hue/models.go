package hue

import (
	"fmt"
	"math"

	"github.com/dokzlo13/cutelights/internal/jsonutil"
)

// Bridge value ranges
const (
	maxBri = 254.0
	maxSat = 254.0
	maxHue = 65535.0
)

// record is the decoded subset of a v1 light object
type record struct {
	Name          string
	Reachable     bool
	On            bool
	Brightness    int // percent
	Hue           int // degrees
	Saturation    int // percent
	SupportsColor bool
}

// decodeRecord reads a light object as returned under /lights.
// Absent numeric fields decode as zero; a missing reachable flag counts as reachable.
func decodeRecord(v any) (record, error) {
	var rec record

	obj, err := jsonutil.Object(v)
	if err != nil {
		return rec, err
	}

	if name, ok := obj["name"]; ok {
		if rec.Name, err = jsonutil.String(name); err != nil {
			return rec, fmt.Errorf("name: %w", err)
		}
	}

	rec.Reachable = true
	if state, ok := obj["state"]; ok {
		st, err := jsonutil.Object(state)
		if err != nil {
			return rec, fmt.Errorf("state: %w", err)
		}
		if r, ok := st["reachable"]; ok {
			if rec.Reachable, err = jsonutil.Bool(r); err != nil {
				return rec, fmt.Errorf("state.reachable: %w", err)
			}
		}
		if on, ok := st["on"]; ok {
			if rec.On, err = jsonutil.Bool(on); err != nil {
				return rec, fmt.Errorf("state.on: %w", err)
			}
		}
		if rec.Brightness, err = scaled(st, "bri", maxBri, 100); err != nil {
			return rec, err
		}
		if rec.Hue, err = scaled(st, "hue", maxHue, 360); err != nil {
			return rec, err
		}
		if rec.Saturation, err = scaled(st, "sat", maxSat, 100); err != nil {
			return rec, err
		}
	}

	gamut, ok := jsonutil.Path(obj, "capabilities", "control", "colorgamut")
	rec.SupportsColor = ok && gamut != nil

	return rec, nil
}

func scaled(st map[string]any, key string, from, to float64) (int, error) {
	raw, ok := st[key]
	if !ok {
		return 0, nil
	}
	v, err := jsonutil.Float(raw)
	if err != nil {
		return 0, fmt.Errorf("state.%s: %w", key, err)
	}
	return int(math.Round(v / from * to)), nil
}

// toBridge scales a value in [0, from] to the bridge range [0, to]
func toBridge(v int, from, to float64) int {
	return int(math.Round(float64(v) / from * to))
}
