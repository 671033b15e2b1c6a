package main

import (
	"fmt"
	"image"
	"image/draw"
	"sync"

	"golang.org/x/image/font"
	"golang.org/x/image/font/basicfont"
	"golang.org/x/image/math/fixed"
	"periph.io/x/conn/v3/i2c"
	"periph.io/x/conn/v3/i2c/i2creg"
	"periph.io/x/host/v3"
)

const (
	oledWidth      = 128
	oledHeight     = 64
	oledPages      = oledHeight / 8
	oledLineHeight = 16
)

// SSD1306 control bytes.
const (
	ssdCommand = 0x00
	ssdData    = 0x40
)

var ssdInit = []byte{
	0xAE,       // display off
	0xD5, 0x80, // clock divide
	0xA8, 0x3F, // multiplex 64
	0xD3, 0x00, // no offset
	0x40,       // start line 0
	0x8D, 0x14, // charge pump on
	0x20, 0x00, // horizontal addressing
	0xA1,       // segment remap
	0xC8,       // COM scan descending
	0xDA, 0x12, // COM pins
	0x81, 0xCF, // contrast
	0xD9, 0xF1, // precharge
	0xDB, 0x40, // VCOMH
	0xA4,       // resume from RAM
	0xA6,       // normal, not inverted
}

type i2cTx interface {
	Tx(w, r []byte) error
}

// OLED drives a 128x64 SSD1306 panel over I2C.
type OLED struct {
	mu  sync.Mutex
	bus i2c.BusCloser
	dev i2cTx
	on  bool
}

func NewOLED(cfg OLEDConfig) (*OLED, error) {
	if _, err := host.Init(); err != nil {
		return nil, fmt.Errorf("periph.io init: %w", err)
	}
	bus, err := i2creg.Open(cfg.Bus)
	if err != nil {
		return nil, fmt.Errorf("open i2c bus %q: %w", cfg.Bus, err)
	}
	o := &OLED{bus: bus, dev: &i2c.Dev{Addr: cfg.Address, Bus: bus}}
	if err := o.command(ssdInit...); err != nil {
		_ = bus.Close()
		return nil, fmt.Errorf("oled init at 0x%02X: %w", cfg.Address, err)
	}
	return o, nil
}

func (o *OLED) command(cmds ...byte) error {
	return o.dev.Tx(append([]byte{ssdCommand}, cmds...), nil)
}

// Render draws the frame, switching the panel off when it is hidden.
func (o *OLED) Render(f Frame) error {
	o.mu.Lock()
	defer o.mu.Unlock()

	if !f.Visible {
		if !o.on {
			return nil
		}
		o.on = false
		return o.command(0xAE)
	}

	buf := packPages(rasterize(f.Lines))
	// Full-screen window, then one data burst.
	if err := o.command(0x21, 0, oledWidth-1, 0x22, 0, oledPages-1); err != nil {
		return err
	}
	if err := o.dev.Tx(append([]byte{ssdData}, buf...), nil); err != nil {
		return err
	}
	if !o.on {
		o.on = true
		return o.command(0xAF)
	}
	return nil
}

func (o *OLED) Close() error {
	o.mu.Lock()
	defer o.mu.Unlock()
	_ = o.command(0xAE)
	if o.bus == nil {
		return nil
	}
	return o.bus.Close()
}

// rasterize draws up to four lines of text in the built-in 7x13 face. Text
// past the right edge is clipped.
func rasterize(lines []string) *image.Gray {
	img := image.NewGray(image.Rect(0, 0, oledWidth, oledHeight))
	d := font.Drawer{
		Dst:  img,
		Src:  image.White,
		Face: basicfont.Face7x13,
	}
	draw.Draw(img, img.Bounds(), image.Black, image.Point{}, draw.Src)
	for i, line := range lines {
		if i >= oledHeight/oledLineHeight {
			break
		}
		d.Dot = fixed.P(0, i*oledLineHeight+basicfont.Face7x13.Ascent)
		d.DrawString(line)
	}
	return img
}

// packPages converts the image to SSD1306 page layout: one byte per column
// per 8-row page, LSB at the top.
func packPages(img *image.Gray) []byte {
	buf := make([]byte, oledWidth*oledPages)
	for page := 0; page < oledPages; page++ {
		for x := 0; x < oledWidth; x++ {
			var b byte
			for bit := 0; bit < 8; bit++ {
				if img.GrayAt(x, page*8+bit).Y >= 0x80 {
					b |= 1 << bit
				}
			}
			buf[page*oledWidth+x] = b
		}
	}
	return buf
}
