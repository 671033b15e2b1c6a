package main

import (
	"bufio"
	"context"
	"fmt"
	"log/slog"
	"strconv"
	"strings"
	"time"

	"go.bug.st/serial"
)

// runSerialIR reads a microcontroller IR bridge that prints one decoded frame
// per line, for boards without a kernel IR driver. Accepted lines:
//
//	SONY 0x4BA5
//	NEC 0xDCC8CD06
//	NEC REPEAT
//	0x4BA5
func runSerialIR(ctx context.Context, portName string, baud int, dec *Decoder, events chan<- Event, logger *slog.Logger) error {
	port, err := serial.Open(portName, &serial.Mode{
		BaudRate: baud,
		DataBits: 8,
		Parity:   serial.NoParity,
		StopBits: serial.OneStopBit,
	})
	if err != nil {
		return fmt.Errorf("open serial IR bridge %s: %w", portName, err)
	}
	logger.Info("reading serial IR bridge", "port", portName, "baud", baud)

	go func() {
		<-ctx.Done()
		_ = port.Close()
	}()

	scanner := bufio.NewScanner(port)
	for scanner.Scan() {
		at := time.Now()
		line := scanner.Text()
		frame, ok := parseSerialIRLine(line)
		if !ok {
			logger.Debug("serial IR: ignoring line", "line", line)
			continue
		}
		emitRemote(events, dec.Decode(frame), "serial", at, logger)
	}
	if ctx.Err() != nil {
		return nil
	}
	if err := scanner.Err(); err != nil {
		return fmt.Errorf("serial IR bridge %s: %w", portName, err)
	}
	return fmt.Errorf("serial IR bridge %s: closed", portName)
}

func parseSerialIRLine(line string) (IRFrame, bool) {
	fields := strings.Fields(line)
	if len(fields) == 0 {
		return IRFrame{}, false
	}

	var frame IRFrame
	if proto, err := parseIRProtocol(fields[0]); err == nil {
		frame.Protocol = proto
		fields = fields[1:]
	}
	if len(fields) == 0 {
		return IRFrame{}, false
	}

	switch strings.ToUpper(fields[0]) {
	case "REPEAT", "R":
		frame.Repeat = true
		return frame, true
	}

	code, err := strconv.ParseUint(fields[0], 0, 32)
	if err != nil {
		return IRFrame{}, false
	}
	frame.Code = uint32(code)
	return frame, true
}
