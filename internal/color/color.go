// Package color converts between 8-bit RGB and integer HSL.
//
// Hue is in degrees [0, 360), saturation and lightness are percentages [0, 100].
// The Kasa and Hue integrations both speak HSL on the wire, with lightness
// standing in for the device brightness channel.
package color

import "math"

// RGBToHSL converts an RGB triple to rounded HSL.
// Achromatic inputs (r == g == b) have hue and saturation 0.
func RGBToHSL(r, g, b uint8) (h, s, l int) {
	rf := float64(r) / 255
	gf := float64(g) / 255
	bf := float64(b) / 255

	maxC := math.Max(rf, math.Max(gf, bf))
	minC := math.Min(rf, math.Min(gf, bf))
	light := (maxC + minC) / 2

	if maxC == minC {
		return 0, 0, round(light * 100)
	}

	d := maxC - minC
	sat := d / (1 - math.Abs(2*light-1))

	var hue float64
	switch maxC {
	case rf:
		hue = math.Mod((gf-bf)/d, 6)
		if hue < 0 {
			hue += 6
		}
	case gf:
		hue = (bf-rf)/d + 2
	default:
		hue = (rf-gf)/d + 4
	}

	return round(hue*60) % 360, round(sat * 100), round(light * 100)
}

// HSLToRGB converts HSL to an RGB triple.
// Out of range inputs are clamped; hue wraps modulo 360.
func HSLToRGB(h, s, l int) (r, g, b uint8) {
	sf := float64(clamp(s, 0, 100)) / 100
	lf := float64(clamp(l, 0, 100)) / 100

	hue := math.Mod(float64(h), 360)
	if hue < 0 {
		hue += 360
	}

	c := (1 - math.Abs(2*lf-1)) * sf
	hp := hue / 60
	x := c * (1 - math.Abs(math.Mod(hp, 2)-1))
	m := lf - c/2

	var rf, gf, bf float64
	switch {
	case hp < 1:
		rf, gf, bf = c, x, 0
	case hp < 2:
		rf, gf, bf = x, c, 0
	case hp < 3:
		rf, gf, bf = 0, c, x
	case hp < 4:
		rf, gf, bf = 0, x, c
	case hp < 5:
		rf, gf, bf = x, 0, c
	default:
		rf, gf, bf = c, 0, x
	}

	return channel(rf + m), channel(gf + m), channel(bf + m)
}

func channel(v float64) uint8 {
	return uint8(clamp(round(v*255), 0, 255))
}

func round(v float64) int {
	return int(math.Round(v))
}

func clamp(v, lo, hi int) int {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
