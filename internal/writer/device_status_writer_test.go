// internal/writer/device_status_writer_test.go
package writer

import (
	"testing"

	"github.com/tamzrod/isp-bridge/internal/status"
)

func statusPlan() Plan {
	return Plan{
		Status: []StatusPlan{{
			Endpoint:   "status-endpoint",
			UnitID:     1,
			BaseSlot:   0,
			DeviceName: "DEV-01",
		}},
	}
}

func TestDeviceNameWrittenOnFullAssertOnly(t *testing.T) {
	cli := &fakeEndpointClient{}

	plan := statusPlan()

	clients := map[string]endpointClient{
		ClientKey(StatusProtocol, "status-endpoint"): cli,
	}

	sw, enabled := NewDeviceStatusWriter(plan, clients)
	if !enabled {
		t.Fatalf("status writer should be enabled")
	}

	// ---- first write: FULL ASSERT ----
	first := status.Snapshot{
		Health:         status.HealthOK,
		LastErrorCode:  0,
		SecondsInError: 0,
	}

	if err := sw.WriteStatus(first); err != nil {
		t.Fatalf("initial full assert failed: %v", err)
	}

	// Expect full block
	if len(cli.lastRegs) != status.SlotsPerDevice {
		t.Fatalf(
			"expected full block write (%d regs), got %d",
			status.SlotsPerDevice,
			len(cli.lastRegs),
		)
	}

	// Verify device name encoding EXACTLY
	expectedNameRegs := status.EncodeDeviceName(plan.Status[0].DeviceName)

	for i := 0; i < status.SlotDeviceNameSlots; i++ {
		slot := status.SlotDeviceNameStart + i
		if cli.lastRegs[slot] != expectedNameRegs[i] {
			t.Fatalf(
				"device name slot %d mismatch: got=%d want=%d",
				slot,
				cli.lastRegs[slot],
				expectedNameRegs[i],
			)
		}
	}

	// ---- second write: INCREMENTAL ONLY ----
	second := status.Snapshot{
		Health:         status.HealthError,
		LastErrorCode:  16,
		SecondsInError: 1,
	}

	if err := sw.WriteStatus(second); err != nil {
		t.Fatalf("incremental write failed: %v", err)
	}

	// Incremental update must NOT re-write full block
	if len(cli.lastRegs) == status.SlotsPerDevice {
		t.Fatalf("device name should not be rewritten on incremental update")
	}
}

func TestSecondsInErrorResetOnRecovery(t *testing.T) {
	cli := &fakeEndpointClient{}

	plan := statusPlan()

	clients := map[string]endpointClient{
		ClientKey(StatusProtocol, "status-endpoint"): cli,
	}

	sw, enabled := NewDeviceStatusWriter(plan, clients)
	if !enabled {
		t.Fatalf("status writer should be enabled")
	}

	// simulate ERROR
	errSnap := status.Snapshot{
		Health:         status.HealthError,
		LastErrorCode:  5,
		SecondsInError: 3,
	}

	if err := sw.WriteStatus(errSnap); err != nil {
		t.Fatalf("error snapshot write failed: %v", err)
	}

	// simulate recovery
	okSnap := status.Snapshot{
		Health:         status.HealthOK,
		LastErrorCode:  0,
		SecondsInError: 0,
	}

	if err := sw.WriteStatus(okSnap); err != nil {
		t.Fatalf("recovery snapshot write failed: %v", err)
	}

	expectedAddr := plan.Status[0].BaseSlot*status.SlotsPerDevice + status.SlotSecondsInError

	if cli.lastRegsAddr != expectedAddr {
		t.Fatalf("unexpected write addr: got=%d want=%d", cli.lastRegsAddr, expectedAddr)
	}

	if len(cli.lastRegs) != 1 {
		t.Fatalf("expected 1 register write, got %d", len(cli.lastRegs))
	}

	if cli.lastRegs[0] != 0 {
		t.Fatalf("seconds_in_error not reset: got=%d want=0", cli.lastRegs[0])
	}
}

func TestStatusWriter_FailureForcesFullReassert(t *testing.T) {
	cli := &fakeEndpointClient{}
	sw, _ := NewDeviceStatusWriter(statusPlan(), map[string]endpointClient{
		ClientKey(StatusProtocol, "status-endpoint"): cli,
	})

	if err := sw.WriteStatus(status.Snapshot{Health: status.HealthOK}); err != nil {
		t.Fatalf("full assert failed: %v", err)
	}

	cli.fail = true
	if err := sw.WriteStatus(status.Snapshot{Health: status.HealthError, LastErrorCode: 16}); err == nil {
		t.Fatalf("expected error, got nil")
	}

	cli.fail = false
	if err := sw.WriteStatus(status.Snapshot{Health: status.HealthError, LastErrorCode: 16}); err != nil {
		t.Fatalf("reassert failed: %v", err)
	}
	if len(cli.lastRegs) != status.SlotsPerDevice {
		t.Fatalf("expected full block after failure, got %d regs", len(cli.lastRegs))
	}
}

func TestStatusWriter_FanOut(t *testing.T) {
	plan := Plan{Status: []StatusPlan{
		{Endpoint: "s", UnitID: 1, BaseSlot: 1},
		{Endpoint: "s", UnitID: 2, BaseSlot: 1},
	}}

	shared := &fakeEndpointClient{}
	sw, ok := NewDeviceStatusWriter(plan, map[string]endpointClient{ClientKey(StatusProtocol, "s"): shared})
	if !ok {
		t.Fatalf("status writer should be enabled")
	}
	if err := sw.WriteStatus(status.Snapshot{Health: status.HealthOK}); err != nil {
		t.Fatalf("fan-out write failed: %v", err)
	}
	if len(shared.writes) != 2 || shared.writes[0].unitID != 1 || shared.writes[1].unitID != 2 {
		t.Fatalf("writes got=%+v", shared.writes)
	}
	if shared.writes[0].addr != status.SlotsPerDevice {
		t.Fatalf("base address got=%d want=%d", shared.writes[0].addr, status.SlotsPerDevice)
	}
}

func TestStatusWriter_Disabled(t *testing.T) {
	if _, ok := NewDeviceStatusWriter(Plan{}, nil); ok {
		t.Fatalf("status writer should be disabled")
	}
}
