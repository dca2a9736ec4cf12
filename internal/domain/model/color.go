package model

import (
	"encoding/json"
	"fmt"
	"math/rand/v2"
)

// pastelFloor is the lowest channel value used for generated colors.
const pastelFloor = 100

// DefaultColor is applied to records persisted without a color.
var DefaultColor = Color{R: 255, G: 255, B: 0}

// Color is an RGB triple. It is encoded as a JSON array [r, g, b].
type Color struct {
	R uint8
	G uint8
	B uint8
}

// RandomPastel returns a light color with every channel in [100, 255].
func RandomPastel(rng *rand.Rand) Color {
	ch := func() uint8 {
		if rng == nil {
			return uint8(pastelFloor + rand.IntN(256-pastelFloor))
		}
		return uint8(pastelFloor + rng.IntN(256-pastelFloor))
	}
	return Color{R: ch(), G: ch(), B: ch()}
}

// Hex formats the color as #rrggbb.
func (c Color) Hex() string { return fmt.Sprintf("#%02x%02x%02x", c.R, c.G, c.B) }

func (c Color) MarshalJSON() ([]byte, error) {
	return json.Marshal([3]int{int(c.R), int(c.G), int(c.B)})
}

func (c *Color) UnmarshalJSON(data []byte) error {
	var rgb []int
	if err := json.Unmarshal(data, &rgb); err != nil {
		return fmt.Errorf("color: %w", err)
	}
	if len(rgb) != 3 {
		return fmt.Errorf("color: want 3 channels, got %d", len(rgb))
	}
	for i, v := range rgb {
		if v < 0 || v > 255 {
			return fmt.Errorf("color: channel %d out of range: %d", i, v)
		}
	}
	c.R, c.G, c.B = uint8(rgb[0]), uint8(rgb[1]), uint8(rgb[2])
	return nil
}
