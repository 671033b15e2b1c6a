package main

import (
	"bytes"
	"errors"
	"image"
	"image/color"
	"testing"

	"periph.io/x/conn/v3/gpio"
	"periph.io/x/conn/v3/gpio/gpiotest"
)

type fakeI2C struct {
	writes [][]byte
	err    error
}

func (f *fakeI2C) Tx(w, _ []byte) error {
	f.writes = append(f.writes, append([]byte(nil), w...))
	return f.err
}

func TestOLED_RenderSequence(t *testing.T) {
	bus := &fakeI2C{}
	o := &OLED{dev: bus}

	if err := o.Render(Frame{Visible: true, Lines: []string{"TV", "VOL 40"}}); err != nil {
		t.Fatalf("Render: %v", err)
	}
	if len(bus.writes) != 3 {
		t.Fatalf("expected window, data and display-on writes, got %d", len(bus.writes))
	}
	if want := []byte{ssdCommand, 0x21, 0, 127, 0x22, 0, 7}; !bytes.Equal(bus.writes[0], want) {
		t.Errorf("expected window %v, got %v", want, bus.writes[0])
	}
	if data := bus.writes[1]; data[0] != ssdData || len(data) != 1+oledWidth*oledPages {
		t.Errorf("expected %d byte data burst, got %d", 1+oledWidth*oledPages, len(data))
	}
	if !bytes.Equal(bus.writes[2], []byte{ssdCommand, 0xAF}) {
		t.Errorf("expected display on, got %v", bus.writes[2])
	}

	bus.writes = nil
	_ = o.Render(Frame{Visible: true, Lines: []string{"TV"}})
	if len(bus.writes) != 2 {
		t.Errorf("expected no display-on while already on, got %d writes", len(bus.writes))
	}

	bus.writes = nil
	_ = o.Render(Frame{Visible: false})
	_ = o.Render(Frame{Visible: false})
	if len(bus.writes) != 1 || !bytes.Equal(bus.writes[0], []byte{ssdCommand, 0xAE}) {
		t.Errorf("expected a single display-off, got %v", bus.writes)
	}

	bus.err = errors.New("nack")
	if err := o.Render(Frame{Visible: true}); err == nil {
		t.Error("expected bus error returned")
	}
}

func TestPackPages(t *testing.T) {
	img := image.NewGray(image.Rect(0, 0, oledWidth, oledHeight))
	img.SetGray(3, 9, color.Gray{Y: 0xFF})
	img.SetGray(127, 63, color.Gray{Y: 0x90})
	img.SetGray(5, 0, color.Gray{Y: 0x7F})

	buf := packPages(img)
	if len(buf) != oledWidth*oledPages {
		t.Fatalf("expected %d bytes, got %d", oledWidth*oledPages, len(buf))
	}
	if buf[1*oledWidth+3] != 1<<1 {
		t.Errorf("expected pixel (3,9) at page 1 bit 1, got 0x%02X", buf[oledWidth+3])
	}
	if buf[7*oledWidth+127] != 1<<7 {
		t.Errorf("expected pixel (127,63) at page 7 bit 7, got 0x%02X", buf[7*oledWidth+127])
	}
	if buf[5] != 0 {
		t.Errorf("expected dim pixel to stay off, got 0x%02X", buf[5])
	}
}

func TestRasterize_LinesStayInTheirRows(t *testing.T) {
	img := rasterize([]string{"", "VOL"})
	lit := func(y0, y1 int) bool {
		for y := y0; y < y1; y++ {
			for x := 0; x < oledWidth; x++ {
				if img.GrayAt(x, y).Y >= 0x80 {
					return true
				}
			}
		}
		return false
	}
	if lit(0, oledLineHeight) {
		t.Error("expected empty first line to stay dark")
	}
	if !lit(oledLineHeight, 2*oledLineHeight) {
		t.Error("expected second line to have pixels")
	}
	if lit(2*oledLineHeight, oledHeight) {
		t.Error("expected rows below the text to stay dark")
	}
}

func TestPGACode(t *testing.T) {
	cases := []struct {
		db   float64
		want byte
	}{
		{31.5, 255},
		{40, 255},
		{0, 192},
		{-60, 72},
		{-95, 2},
		{-95.5, 0},
		{-120, 0},
	}
	for _, tc := range cases {
		if got := pgaCode(tc.db); got != tc.want {
			t.Errorf("pgaCode(%v): expected %d, got %d", tc.db, tc.want, got)
		}
	}
}

func TestGPIOSelector_OneLineHigh(t *testing.T) {
	opt := &gpiotest.Pin{N: "GPIO5"}
	coax := &gpiotest.Pin{N: "GPIO6"}
	g := &gpioSelector{
		pins:   map[Source]gpio.PinOut{SourceOptical: opt, SourceCoax: coax},
		logger: testLogger(),
	}

	if err := g.Select(SourceCoax); err != nil {
		t.Fatal(err)
	}
	if opt.Read() != gpio.Low || coax.Read() != gpio.High {
		t.Errorf("expected only coax high, got optical=%v coax=%v", opt.Read(), coax.Read())
	}

	// A source without a line drops all lines.
	if err := g.Select(SourceI2S); err != nil {
		t.Fatal(err)
	}
	if opt.Read() != gpio.Low || coax.Read() != gpio.Low {
		t.Errorf("expected all lines low, got optical=%v coax=%v", opt.Read(), coax.Read())
	}

	if sel, err := newGPIOSelector(nil, testLogger()); sel != nil || err != nil {
		t.Errorf("expected no selector without pins, got %v/%v", sel, err)
	}
}

func TestSongDetails(t *testing.T) {
	cases := []struct {
		song map[string]string
		want string
	}{
		{map[string]string{"Artist": "Nils Frahm", "Title": "Says"}, "Nils Frahm - Says"},
		{map[string]string{"Title": "Says"}, "Says"},
		{map[string]string{"Name": "Radio Paradise", "file": "http://stream"}, "Radio Paradise"},
		{map[string]string{"file": "music/album/01 track.flac"}, "01 track.flac"},
		{map[string]string{}, ""},
	}
	for _, tc := range cases {
		if got := songDetails(tc.song); got != tc.want {
			t.Errorf("songDetails(%v): expected %q, got %q", tc.song, tc.want, got)
		}
	}
}
