package main

import (
	"context"
	"fmt"
	"math"
	"sync"

	"periph.io/x/conn/v3/gpio"
	"periph.io/x/conn/v3/gpio/gpioreg"
	"periph.io/x/conn/v3/physic"
	"periph.io/x/conn/v3/spi"
	"periph.io/x/conn/v3/spi/spireg"
	"periph.io/x/host/v3"
)

// PGA2311 gain range. Code 255 is +31.5 dB, each code below is -0.5 dB, code 0 mutes.
const (
	pgaMinDB = -95.5
	pgaMaxDB = 31.5
)

// PGA2311 is a stereo analogue volume chip on SPI. Each write is two bytes
// (right, left) clocked in while chip select is low.
type PGA2311 struct {
	mu   sync.Mutex
	port spi.PortCloser
	conn spi.Conn
	cs   gpio.PinOut // nil when the SPI driver handles chip select
}

// NewPGA2311 opens the SPI port. If csPin is set it is driven manually, for
// boards that wire the chip to a plain GPIO.
func NewPGA2311(cfg SPIConfig) (*PGA2311, error) {
	if _, err := host.Init(); err != nil {
		return nil, fmt.Errorf("periph.io init: %w", err)
	}
	port, err := spireg.Open(cfg.Port)
	if err != nil {
		return nil, fmt.Errorf("open spi %s: %w", cfg.Port, err)
	}
	conn, err := port.Connect(physic.Frequency(cfg.SpeedHz)*physic.Hertz, spi.Mode0, 8)
	if err != nil {
		_ = port.Close()
		return nil, fmt.Errorf("connect spi %s: %w", cfg.Port, err)
	}

	p := &PGA2311{port: port, conn: conn}
	if cfg.CSPin != "" {
		cs := gpioreg.ByName(cfg.CSPin)
		if cs == nil {
			_ = port.Close()
			return nil, fmt.Errorf("gpio: failed to open %s (chip select)", cfg.CSPin)
		}
		if err := cs.Out(gpio.High); err != nil {
			_ = port.Close()
			return nil, fmt.Errorf("gpio: idle chip select %s: %w", cfg.CSPin, err)
		}
		p.cs = cs
	}
	return p, nil
}

// pgaCode maps a dB level to the chip's gain code.
func pgaCode(db float64) byte {
	if db <= pgaMinDB {
		return 0
	}
	code := math.Round(255 - (pgaMaxDB-db)*2)
	return byte(clampFloat(code, 1, 255))
}

func (p *PGA2311) SetAttenuation(ctx context.Context, db float64) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	code := pgaCode(db)

	p.mu.Lock()
	defer p.mu.Unlock()

	if p.cs != nil {
		if err := p.cs.Out(gpio.Low); err != nil {
			return fmt.Errorf("assert chip select: %w", err)
		}
		defer func() { _ = p.cs.Out(gpio.High) }()
	}
	if err := p.conn.Tx([]byte{code, code}, nil); err != nil {
		return fmt.Errorf("pga2311 write: %w", err)
	}
	return nil
}

func (p *PGA2311) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.port.Close()
}
