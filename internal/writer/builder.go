// internal/writer/builder.go
package writer

import (
	"errors"
	"time"

	"github.com/tamzrod/isp-bridge/internal/config"
	"github.com/tamzrod/isp-bridge/internal/writer/ingest"
	wmodbus "github.com/tamzrod/isp-bridge/internal/writer/modbus"
)

// StatusProtocol is the protocol used to reach status memories.
const StatusProtocol = config.TargetModbus

// ClientKey identifies one endpoint client. The same endpoint may be
// reached over both protocols.
func ClientKey(protocol, endpoint string) string {
	if protocol == "" {
		protocol = config.TargetModbus
	}
	return protocol + "://" + endpoint
}

// BuildPlan converts one unit config into a Writer Plan.
// Assumes config has already passed conflict validation.
func BuildPlan(u config.UnitConfig, statusEndpoint string) (Plan, error) {
	if u.ID == "" {
		return Plan{}, errors.New("writer: unit.id required")
	}

	plan := Plan{UnitID: u.ID}

	for _, t := range u.Targets {
		ep := TargetEndpoint{
			TargetID: t.ID,
			Endpoint: t.Endpoint,
			Protocol: t.Protocol,
			UnitID:   t.UnitID,
		}

		for _, m := range t.Memories {
			ep.Memories = append(ep.Memories, MemoryDest{
				MemoryID: m.MemoryID,
				Offsets:  m.Offsets, // map[string]uint16 (delta map)
			})
		}

		plan.Targets = append(plan.Targets, ep)

		if u.Source.StatusSlot != nil && t.StatusUnitID != nil {
			plan.Status = append(plan.Status, StatusPlan{
				Endpoint:   statusEndpoint,
				UnitID:     *t.StatusUnitID,
				BaseSlot:   *u.Source.StatusSlot,
				DeviceName: u.Source.DeviceName,
			})
		}
	}

	return plan, nil
}

type closableClient interface {
	endpointClient
	Close() error
}

// BuildEndpointClients creates one client per unique protocol and endpoint,
// including the status memory endpoint when the plan uses it.
func BuildEndpointClients(u config.UnitConfig, plan Plan) (map[string]endpointClient, func() error, error) {
	type want struct{ protocol, endpoint string }
	unique := map[string]want{}
	for _, t := range plan.Targets {
		unique[ClientKey(t.Protocol, t.Endpoint)] = want{t.Protocol, t.Endpoint}
	}
	for _, sp := range plan.Status {
		unique[ClientKey(StatusProtocol, sp.Endpoint)] = want{StatusProtocol, sp.Endpoint}
	}

	timeout := time.Duration(u.Source.TimeoutMs) * time.Millisecond

	clients := make(map[string]endpointClient)
	var closers []func() error

	for key, w := range unique {
		var (
			c   closableClient
			err error
		)
		switch w.protocol {
		case config.TargetIngest:
			c, err = ingest.NewEndpointClient(ingest.Config{Endpoint: w.endpoint, Timeout: timeout})
		default:
			c, err = wmodbus.NewEndpointClient(wmodbus.Config{Endpoint: w.endpoint, Timeout: timeout})
		}
		if err != nil {
			for _, fn := range closers {
				_ = fn()
			}
			return nil, nil, err
		}
		clients[key] = c
		closers = append(closers, c.Close)
	}

	closeAll := func() error {
		var last error
		for _, fn := range closers {
			if err := fn(); err != nil {
				last = err
			}
		}
		return last
	}

	return clients, closeAll, nil
}
