// internal/writer/writer.go
package writer

import (
	"errors"
	"fmt"
	"strings"

	"github.com/tamzrod/isp-bridge/internal/poller"
)

// endpointClient is the exact contract the writer uses.
// IMPORTANT: There must be NO other version of this interface anywhere.
type endpointClient interface {
	WriteRegisters(unitID uint8, addr uint16, regs []uint16) error
}

type registerWriter struct {
	plan    Plan
	clients map[string]endpointClient
}

func New(plan Plan, clients map[string]endpointClient) Writer {
	return &registerWriter{
		plan:    plan,
		clients: clients,
	}
}

// Write mirrors a successful poll into every target memory. Failed polls
// write nothing; their outcome travels through the status block.
func (w *registerWriter) Write(res poller.PollResult) error {
	if res.Err != nil {
		return nil
	}

	var errs []string

	for _, tgt := range w.plan.Targets {
		cli := w.clients[ClientKey(tgt.Protocol, tgt.Endpoint)]
		if cli == nil {
			errs = append(errs, fmt.Sprintf(
				"writer: missing client for endpoint %s",
				tgt.Endpoint,
			))
			continue
		}

		for _, mem := range tgt.Memories {
			for _, b := range res.Blocks {
				dstAddr := offsetForKind(mem.Offsets, b.Kind) + b.Dest

				if err := cli.WriteRegisters(tgt.UnitID, dstAddr, b.Registers); err != nil {
					errs = append(errs, fmt.Sprintf(
						"writer: ep=%s unit=%d kind=%s addr=%d err=%v",
						tgt.Endpoint, tgt.UnitID, b.Kind, dstAddr, err,
					))
				}
			}
		}
	}

	if len(errs) > 0 {
		return errors.New(strings.Join(errs, " | "))
	}

	return nil
}

func offsetForKind(offsets map[string]uint16, kind string) uint16 {
	if offsets == nil {
		return 0
	}
	return offsets[kind]
}
