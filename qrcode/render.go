package qrcode

import (
	"bytes"
	"encoding/base64"
	"fmt"
	"image/png"

	goqrcode "github.com/skip2/go-qrcode"
)

// Generator renders an encoded payload's serialized JSON as a
// scannable code. Adapted from the teacher's QRGenerator
// (internal/core/qrcode.go): same size knob and PNG/base64/SVG trio,
// retargeted to take a serialized payload string instead of a raw
// WhatsApp connection string.
type Generator struct {
	size int
}

// NewGenerator returns a Generator with the teacher's default size.
func NewGenerator() *Generator {
	return &Generator{size: 256}
}

// SetSize overrides the rendered image's pixel size.
func (g *Generator) SetSize(size int) {
	g.size = size
}

// GeneratePNG renders the payload as PNG-encoded bytes.
func (g *Generator) GeneratePNG(payload string) ([]byte, error) {
	qr, err := goqrcode.New(payload, goqrcode.Medium)
	if err != nil {
		return nil, &Error{Message: "generate qr png: " + err.Error()}
	}
	img := qr.Image(g.size)
	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		return nil, &Error{Message: "generate qr png: " + err.Error()}
	}
	return buf.Bytes(), nil
}

// GenerateBase64 renders the payload as a data: URI suitable for
// embedding directly in an <img> tag.
func (g *Generator) GenerateBase64(payload string) (string, error) {
	png, err := g.GeneratePNG(payload)
	if err != nil {
		return "", err
	}
	return "data:image/png;base64," + base64.StdEncoding.EncodeToString(png), nil
}

// GenerateSVG renders the payload as an inline SVG document.
func (g *Generator) GenerateSVG(payload string) (string, error) {
	qr, err := goqrcode.New(payload, goqrcode.Medium)
	if err != nil {
		return "", &Error{Message: "generate qr svg: " + err.Error()}
	}
	bitmap := qr.Bitmap()
	cell := g.size / len(bitmap)
	if cell < 1 {
		cell = 1
	}

	var sb bytes.Buffer
	fmt.Fprintf(&sb, `<svg xmlns="http://www.w3.org/2000/svg" width="%d" height="%d" viewBox="0 0 %d %d">`,
		g.size, g.size, g.size, g.size)
	sb.WriteString(`<rect width="100%" height="100%" fill="#fff"/>`)
	for y, row := range bitmap {
		for x, dark := range row {
			if !dark {
				continue
			}
			fmt.Fprintf(&sb, `<rect x="%d" y="%d" width="%d" height="%d" fill="#000"/>`,
				x*cell, y*cell, cell, cell)
		}
	}
	sb.WriteString(`</svg>`)
	return sb.String(), nil
}
