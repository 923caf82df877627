// internal/transport/mbbridge/bridge_test.go
package mbbridge

import (
	"errors"
	"testing"

	"github.com/tamzrod/isp-bridge/internal/transport"
)

type fakeRegisterClient struct {
	regs map[uint16]uint16
	fail bool
}

func (f *fakeRegisterClient) ReadHoldingRegisters(address, quantity uint16) ([]byte, error) {
	if f.fail {
		return nil, errors.New("exception 2")
	}
	v := f.regs[address]
	return []byte{byte(v >> 8), byte(v)}, nil
}

func (f *fakeRegisterClient) WriteSingleRegister(address, value uint16) ([]byte, error) {
	if f.fail {
		return nil, errors.New("exception 2")
	}
	f.regs[address] = value
	return []byte{byte(value >> 8), byte(value)}, nil
}

func TestBridge_RoundTrip(t *testing.T) {
	fc := &fakeRegisterClient{regs: map[uint16]uint16{}}
	tr := &Transport{client: fc}

	if err := tr.WriteU8(0xF000, 0x80); err != nil {
		t.Fatalf("WriteU8 err=%v", err)
	}
	if fc.regs[0xF000] != 0x0080 {
		t.Fatalf("holding register got=0x%04X want=0x0080", fc.regs[0xF000])
	}

	fc.regs[0xF000] = 0xAB81 // high byte ignored
	v, err := tr.ReadU8(0xF000)
	if err != nil {
		t.Fatalf("ReadU8 err=%v", err)
	}
	if v != 0x81 {
		t.Fatalf("value got=0x%02X want=0x81", v)
	}
}

func TestBridge_ErrorsAreAccessErrors(t *testing.T) {
	tr := &Transport{client: &fakeRegisterClient{fail: true}}

	_, err := tr.ReadU8(1)
	var ae *transport.AccessError
	if !errors.As(err, &ae) || ae.Op != "read" {
		t.Fatalf("expected read AccessError, got %v", err)
	}
}

func TestOpen_EndpointRequired(t *testing.T) {
	if _, err := Open(Config{}); err == nil {
		t.Fatalf("expected error, got nil")
	}
}
