// cmd/ispctl/exec.go
package main

import (
	"encoding/hex"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"

	"github.com/tamzrod/isp-bridge/internal/config"
	"github.com/tamzrod/isp-bridge/internal/isp"
	"github.com/tamzrod/isp-bridge/internal/poller"
	"github.com/tamzrod/isp-bridge/internal/protocol"
)

var errUsage = errors.New("usage")

const execUsage = `ops:
  fw-read      <sub>
  fw-write     <sub> <value>
  hw-read      <addr> <len>
  hw-write     <addr> <hex>
  fs-read      <table> <off> <len>
  fs-write     <table> <off> <hex>
  flash-read   <off> <len>
  flash-write  <off> <hex>
  sync         fs|flash
  sensor-read  <slave> <addr> <format>
  sensor-write <slave> <addr> <format> <value>
  prop-get     ct|pu <selector> [request]
  prop-set     ct|pu <selector> <value>
  prop-support ct|pu
  video-switch <index> <hex4>
  video-close`

// execOp runs one catalog operation and exits with its result code.
func execOp(args []string, stdout io.Writer) int {
	fs := flag.NewFlagSet("exec", flag.ContinueOnError)
	var src config.SourceConfig
	fs.StringVar(&src.Transport, "transport", config.TransportI2C, "i2c|modbus|sim")
	fs.StringVar(&src.Bus, "bus", "", "i2c bus name")
	addr := fs.Uint("addr", 0x48, "base i2c address")
	fs.StringVar(&src.Endpoint, "endpoint", "", "modbus gateway host:port")
	unit := fs.Uint("unit", 1, "modbus gateway unit id")
	fs.IntVar(&src.VirtualChannel, "vc", 0, "virtual channel")
	fs.StringVar(&src.Chip, "chip", config.DefaultChip, "chip family")
	fs.StringVar(&src.SensorProtocol, "sensor", config.DefaultSensorProtocol, "rev1.9|legacy")
	fs.IntVar(&src.TimeoutMs, "timeout-ms", config.DefaultTimeoutMs, "gateway timeout")
	level := fs.String("log-level", "warn", "trace|debug|info|warn|error")
	fs.Usage = func() {
		fmt.Fprintln(fs.Output(), "usage: ispctl exec [flags] <op> [args...]")
		fs.PrintDefaults()
		fmt.Fprintln(fs.Output(), execUsage)
	}
	if err := fs.Parse(args); err != nil {
		return 2
	}
	if fs.NArg() < 1 {
		fs.Usage()
		return 2
	}
	if *addr > 0x7F || *unit > 0xFF {
		fmt.Fprintln(os.Stderr, "address or unit out of range")
		return 2
	}
	src.Address = uint16(*addr)
	src.UnitID = uint8(*unit)

	log, err := newLogger(*level)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		return 2
	}

	cfg := protocol.DefaultConfig()
	cfg.Logger = log
	reg := protocol.NewRegistry(cfg)
	defer reg.Close()

	ctl, err := poller.Attach(reg, src, log)
	if err != nil {
		log.Error().Err(err).Msg("attach failed")
		return int(protocol.CodeIO)
	}

	if err := run(ctl, fs.Arg(0), fs.Args()[1:], stdout); err != nil {
		if errors.Is(err, errUsage) {
			fmt.Fprintln(os.Stderr, err)
			fs.Usage()
			return 2
		}
		code := ctl.LastError()
		if code == 0 {
			code = errorCode(err)
		}
		log.Error().Err(err).Uint16("code", code).Msg(fs.Arg(0))
		return int(code)
	}
	return 0
}

func run(ctl isp.Controller, op string, args []string, out io.Writer) error {
	p := argParser{args: args}

	switch op {
	case "fw-read":
		sub := p.uint(8)
		if err := p.done(1); err != nil {
			return err
		}
		v, err := ctl.ReadFWRegister(byte(sub))
		if err != nil {
			return err
		}
		fmt.Fprintf(out, "0x%02X\n", v)

	case "fw-write":
		sub, v := p.uint(8), p.uint(8)
		if err := p.done(2); err != nil {
			return err
		}
		return ctl.WriteFWRegister(byte(sub), byte(v))

	case "hw-read":
		a, n := p.uint(16), p.uint(16)
		if err := p.done(2); err != nil {
			return err
		}
		buf := make([]byte, n)
		if err := ctl.ReadHWRegisters(uint16(a), buf); err != nil {
			return err
		}
		dump(out, uint32(a), buf)

	case "hw-write":
		a, data := p.uint(16), p.hex()
		if err := p.done(2); err != nil {
			return err
		}
		return ctl.WriteHWRegisters(uint16(a), data)

	case "fs-read":
		id, off, n := p.uint(8), p.uint(16), p.uint(16)
		if err := p.done(3); err != nil {
			return err
		}
		buf := make([]byte, n)
		if err := ctl.ReadFSTableRange(byte(id), uint16(off), buf); err != nil {
			return err
		}
		dump(out, uint32(off), buf)

	case "fs-write":
		id, off, data := p.uint(8), p.uint(16), p.hex()
		if err := p.done(3); err != nil {
			return err
		}
		return ctl.WriteFSTableRange(byte(id), uint16(off), data)

	case "flash-read":
		off, n := p.uint(24), p.uint(24)
		if err := p.done(2); err != nil {
			return err
		}
		buf := make([]byte, n)
		if err := ctl.ReadFlashRange(uint32(off), buf); err != nil {
			return err
		}
		dump(out, uint32(off), buf)

	case "flash-write":
		off, data := p.uint(24), p.hex()
		if err := p.done(2); err != nil {
			return err
		}
		return ctl.WriteFlashRange(uint32(off), data)

	case "sync":
		which := p.word()
		if err := p.done(1); err != nil {
			return err
		}
		switch which {
		case "fs":
			return ctl.Sync(protocol.MemFSTable)
		case "flash":
			return ctl.Sync(protocol.MemSPIFlash)
		default:
			return fmt.Errorf("%w: sync target %q", errUsage, which)
		}

	case "sensor-read":
		slave, a, format := p.uint(8), p.uint(16), p.uint(8)
		if err := p.done(3); err != nil {
			return err
		}
		v, err := ctl.ReadSensorRegister(byte(slave), uint16(a), byte(format))
		if err != nil {
			return err
		}
		fmt.Fprintf(out, "0x%04X\n", v)

	case "sensor-write":
		slave, a, format, v := p.uint(8), p.uint(16), p.uint(8), p.uint(16)
		if err := p.done(4); err != nil {
			return err
		}
		return ctl.WriteSensorRegister(byte(slave), uint16(a), byte(format), uint16(v))

	case "prop-get":
		entity, sel := p.entity(), p.uint(8)
		req := protocol.RequestGetCur
		if len(p.args) > 2 {
			r, err := protocol.ParseRequest(p.args[2])
			if err != nil {
				return fmt.Errorf("%w: %v", errUsage, err)
			}
			req = r
		}
		if p.err != nil || len(p.args) > 3 {
			return p.done(3)
		}
		v, err := ctl.GetProperty(entity, req, byte(sel))
		if err != nil {
			return err
		}
		fmt.Fprintf(out, "%d (0x%X)\n", v, v)

	case "prop-set":
		entity, sel, v := p.entity(), p.uint(8), p.uint(32)
		if err := p.done(3); err != nil {
			return err
		}
		return ctl.SetProperty(entity, byte(sel), uint32(v))

	case "prop-support":
		entity := p.entity()
		if err := p.done(1); err != nil {
			return err
		}
		mask, err := ctl.PropertySupport(entity)
		if err != nil {
			return err
		}
		fmt.Fprintf(out, "0x%04X\n", mask)

	case "video-switch":
		idx, raw := p.uint(16), p.hex()
		if err := p.done(2); err != nil {
			return err
		}
		if len(raw) != 4 {
			return fmt.Errorf("%w: video mode needs 4 bytes, got %d", errUsage, len(raw))
		}
		var m protocol.VideoMode
		copy(m[:], raw)
		return ctl.SwitchVideoMode(int(idx), m)

	case "video-close":
		if err := p.done(0); err != nil {
			return err
		}
		return ctl.CloseVideoMode()

	default:
		return fmt.Errorf("%w: unknown op %q", errUsage, op)
	}
	return nil
}

// argParser consumes positional arguments, keeping the first error.
type argParser struct {
	args []string
	pos  int
	err  error
}

func (p *argParser) next() (string, bool) {
	if p.err != nil {
		return "", false
	}
	if p.pos >= len(p.args) {
		p.err = fmt.Errorf("%w: missing argument %d", errUsage, p.pos+1)
		return "", false
	}
	s := p.args[p.pos]
	p.pos++
	return s, true
}

func (p *argParser) uint(bits int) uint64 {
	s, ok := p.next()
	if !ok {
		return 0
	}
	v, err := strconv.ParseUint(s, 0, bits)
	if err != nil {
		p.err = fmt.Errorf("%w: argument %d: %v", errUsage, p.pos, err)
	}
	return v
}

func (p *argParser) hex() []byte {
	s, ok := p.next()
	if !ok {
		return nil
	}
	b, err := hex.DecodeString(strings.TrimPrefix(strings.ReplaceAll(s, ":", ""), "0x"))
	if err != nil {
		p.err = fmt.Errorf("%w: argument %d: %v", errUsage, p.pos, err)
	}
	return b
}

func (p *argParser) word() string {
	s, _ := p.next()
	return s
}

func (p *argParser) entity() byte {
	s, ok := p.next()
	if !ok {
		return 0
	}
	id := config.ReadConfig{Entity: s}.EntityID()
	if id == 0 {
		p.err = fmt.Errorf("%w: entity %q is neither ct nor pu", errUsage, s)
	}
	return id
}

// done checks that exactly n arguments were given.
func (p *argParser) done(n int) error {
	if p.err != nil {
		return p.err
	}
	if len(p.args) != n {
		return fmt.Errorf("%w: expected %d arguments, got %d", errUsage, n, len(p.args))
	}
	return nil
}

// dump prints buf as 16-byte rows prefixed with the device address.
func dump(out io.Writer, base uint32, buf []byte) {
	for i := 0; i < len(buf); i += 16 {
		end := min(i+16, len(buf))
		fmt.Fprintf(out, "%06X  % X\n", base+uint32(i), buf[i:end])
	}
}

// families lists the supported chip families.
func families(out io.Writer) int {
	for _, f := range isp.Families() {
		fmt.Fprintln(out, f)
	}
	return 0
}
