package ipmiengine

import "context"

// HypervisorClient is the power-control surface a listener's protocol
// engine drives chassis commands through. An implementation backed by
// vSphere lives in internal/hypervisor.
type HypervisorClient interface {
	GetPowerState(ctx context.Context) (poweredOn bool, err error)
	PowerOn(ctx context.Context) error
	PowerOff(ctx context.Context) error
	Reset(ctx context.Context) error
	ShutdownGuest(ctx context.Context) error
	// LookupVM verifies the configured VM resolves on the hypervisor,
	// returning its resolved name.
	LookupVM(ctx context.Context) (name string, err error)
}

// Chassis Control sub-commands.
const (
	chassisControlPowerOff  = 0
	chassisControlPowerOn   = 1
	chassisControlReset     = 2
	chassisControlPulseDiag = 3
	chassisControlShutdown  = 5
)

// IPMI completion codes used by the chassis/hypervisor bridge.
const (
	completionOK              = 0x00
	completionNodeBusy        = 0xc0
	completionInvalidData     = 0xcc
	completionCmdNotSupported = 0xc1
	completionUnspecified     = 0xff
)

func (e *Engine) handleChassisControl(reqData []byte) byte {
	if len(reqData) < 1 {
		return completionInvalidData
	}

	ctx := context.Background()
	sub := reqData[0] & 0x0f

	switch sub {
	case chassisControlPowerOff:
		return e.guardedPowerOp(ctx, func(on bool) bool { return on }, e.hv.PowerOff)
	case chassisControlPowerOn:
		return e.guardedPowerOp(ctx, func(on bool) bool { return !on }, e.hv.PowerOn)
	case chassisControlReset:
		return e.guardedPowerOp(ctx, func(on bool) bool { return on }, e.hv.Reset)
	case chassisControlPulseDiag:
		// NMI pulse is unimplemented; always reports node busy so the
		// client retries rather than silently no-op'ing.
		return completionNodeBusy
	case chassisControlShutdown:
		return e.guardedPowerOp(ctx, func(on bool) bool { return on }, e.hv.ShutdownGuest)
	default:
		return completionCmdNotSupported
	}
}

// guardedPowerOp reads the current power state, runs op only if guard
// approves of it given that state, and maps any hypervisor failure to
// 0xc0 so the IPMI client retries.
func (e *Engine) guardedPowerOp(ctx context.Context, guard func(poweredOn bool) bool, op func(context.Context) error) byte {
	on, err := e.hv.GetPowerState(ctx)
	if err != nil {
		e.log.Error().Err(err).Msg("get power state for chassis control")
		return completionNodeBusy
	}
	if !guard(on) {
		return completionOK
	}
	if err := op(ctx); err != nil {
		e.log.Error().Err(err).Msg("hypervisor power operation")
		return completionNodeBusy
	}
	return completionOK
}

// chassisStatusData builds the Get Chassis Status reply body. Unlike
// chassis control, a GetPowerState failure here is surfaced as the
// completion code itself: the caller must not mistake an error for a
// known-good power state.
func (e *Engine) chassisStatusData() (data []byte, completion byte) {
	on, err := e.hv.GetPowerState(context.Background())
	if err != nil {
		e.log.Error().Err(err).Msg("get power state for chassis status")
		return nil, completionNodeBusy
	}

	status := byte(0)
	if on {
		status |= 0x01
	}
	return []byte{status, 0x00, 0x00}, completionOK
}
