package colorutil

import (
	"image/color"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestScale(t *testing.T) {
	assert.Equal(t, color.RGBA{R: 128, A: 255}, Scale(AxisX, 0.5))
	assert.Equal(t, color.RGBA{G: 255, A: 255}, Scale(AxisY, 3))
	assert.Equal(t, color.RGBA{A: 255}, Scale(AxisZ, -1))
}
