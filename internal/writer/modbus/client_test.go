// internal/writer/modbus/client_test.go
package modbus

import "testing"

type call struct {
	addr, qty uint16
	n         int
}

type fakeWriter struct{ calls []call }

func (f *fakeWriter) WriteMultipleRegisters(address, quantity uint16, value []byte) ([]byte, error) {
	f.calls = append(f.calls, call{address, quantity, len(value)})
	return nil, nil
}

func TestWriteRegisters_SplitsLargeBlocks(t *testing.T) {
	fw := &fakeWriter{}
	c := &EndpointClient{client: fw}

	if err := c.WriteRegisters(1, 100, make([]uint16, 200)); err != nil {
		t.Fatalf("WriteRegisters err=%v", err)
	}

	want := []call{{100, 123, 246}, {223, 77, 154}}
	if len(fw.calls) != len(want) {
		t.Fatalf("calls got=%d want=%d", len(fw.calls), len(want))
	}
	for i, w := range want {
		if fw.calls[i] != w {
			t.Fatalf("call %d got=%+v want=%+v", i, fw.calls[i], w)
		}
	}
}

func TestPackRegisters_BigEndian(t *testing.T) {
	b := packRegisters([]uint16{0x1234, 0xABCD})
	if len(b) != 4 || b[0] != 0x12 || b[1] != 0x34 || b[2] != 0xAB || b[3] != 0xCD {
		t.Fatalf("got=% X", b)
	}
}
