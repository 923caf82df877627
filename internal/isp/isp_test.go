// internal/isp/isp_test.go
package isp_test

import (
	"testing"

	"github.com/tamzrod/isp-bridge/internal/isp"
	"github.com/tamzrod/isp-bridge/internal/isp/isptest"
	"github.com/tamzrod/isp-bridge/internal/protocol"
)

func TestOpen_UnknownFamily(t *testing.T) {
	if _, err := isp.Open("esp999", nil, isp.Options{}); err == nil {
		t.Fatalf("expected error for unknown family")
	}
}

func TestOpen_BadSensorProtocol(t *testing.T) {
	for _, sp := range []string{"", "rev2"} {
		if _, err := isp.Open("esp876", nil, isp.Options{SensorProtocol: sp}); err == nil {
			t.Fatalf("expected error for sensor protocol %q", sp)
		}
	}
}

func TestConformance(t *testing.T) {
	for _, family := range isp.Families() {
		t.Run(family, func(t *testing.T) {
			isptest.Run(t, func(t *testing.T, link *protocol.Link, vc int) isp.Controller {
				c, err := isp.Open(family, link, isp.Options{VirtualChannel: vc, SensorProtocol: "rev1.9"})
				if err != nil {
					t.Fatalf("Open err=%v", err)
				}
				return c
			})
		})
	}
}
