package v1

import (
	"bytes"
	"image"
	"image/color"
	"image/png"
)

const headerPlaceholder = "X-Avatar-Placeholder"

// placeholderPNG is served when an avatar cannot be produced.
var placeholderPNG = func() []byte {
	const size = 64
	img := image.NewGray(image.Rect(0, 0, size, size))
	for y := 0; y < size; y++ {
		for x := 0; x < size; x++ {
			img.SetGray(x, y, color.Gray{Y: 0xd0})
		}
	}
	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		panic(err)
	}
	return buf.Bytes()
}()
