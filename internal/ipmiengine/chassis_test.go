package ipmiengine

import (
	"context"
	"errors"
	"testing"
)

type fakeHypervisor struct {
	poweredOn  bool
	powerErr   error
	onCalls    int
	offCalls   int
	resetCalls int
	shutCalls  int
}

func (f *fakeHypervisor) GetPowerState(ctx context.Context) (bool, error) {
	return f.poweredOn, f.powerErr
}

func (f *fakeHypervisor) PowerOn(ctx context.Context) error {
	f.onCalls++
	f.poweredOn = true
	return nil
}

func (f *fakeHypervisor) PowerOff(ctx context.Context) error {
	f.offCalls++
	f.poweredOn = false
	return nil
}

func (f *fakeHypervisor) Reset(ctx context.Context) error {
	f.resetCalls++
	return nil
}

func (f *fakeHypervisor) ShutdownGuest(ctx context.Context) error {
	f.shutCalls++
	f.poweredOn = false
	return nil
}

func (f *fakeHypervisor) LookupVM(ctx context.Context) (string, error) {
	return "fake-vm", nil
}

func engineWithHypervisor(hv HypervisorClient) *Engine {
	e := newTestEngine()
	e.hv = hv
	return e
}

func TestChassisControlPowerOnAlreadyOnIsANoOp(t *testing.T) {
	hv := &fakeHypervisor{poweredOn: true}
	e := engineWithHypervisor(hv)

	completion := e.handleChassisControl([]byte{chassisControlPowerOn})
	if completion != completionOK {
		t.Fatalf("completion = %#x, want %#x", completion, completionOK)
	}
	if hv.onCalls != 0 {
		t.Fatalf("expected no PowerOn call when already on, got %d", hv.onCalls)
	}
}

func TestChassisControlPowerOffWhenOffIsANoOp(t *testing.T) {
	hv := &fakeHypervisor{poweredOn: false}
	e := engineWithHypervisor(hv)

	completion := e.handleChassisControl([]byte{chassisControlPowerOff})
	if completion != completionOK {
		t.Fatalf("completion = %#x, want %#x", completion, completionOK)
	}
	if hv.offCalls != 0 {
		t.Fatalf("expected no PowerOff call when already off, got %d", hv.offCalls)
	}
}

func TestChassisControlPowerOnWhenOffInvokesHypervisor(t *testing.T) {
	hv := &fakeHypervisor{poweredOn: false}
	e := engineWithHypervisor(hv)

	completion := e.handleChassisControl([]byte{chassisControlPowerOn})
	if completion != completionOK {
		t.Fatalf("completion = %#x, want %#x", completion, completionOK)
	}
	if hv.onCalls != 1 {
		t.Fatalf("expected exactly one PowerOn call, got %d", hv.onCalls)
	}
}

func TestChassisControlSwallowsHypervisorFailureAsNodeBusy(t *testing.T) {
	hv := &fakeHypervisor{poweredOn: false, powerErr: nil}
	e := engineWithHypervisor(hv)

	// Force PowerOn itself to fail by wrapping with an erroring hypervisor.
	e.hv = &erroringPowerOn{fakeHypervisor: hv}

	completion := e.handleChassisControl([]byte{chassisControlPowerOn})
	if completion != completionNodeBusy {
		t.Fatalf("completion = %#x, want %#x", completion, completionNodeBusy)
	}
}

type erroringPowerOn struct {
	*fakeHypervisor
}

func (e *erroringPowerOn) PowerOn(ctx context.Context) error {
	return errors.New("boom")
}

func TestChassisControlPulseDiagAlwaysNodeBusy(t *testing.T) {
	e := engineWithHypervisor(&fakeHypervisor{})
	completion := e.handleChassisControl([]byte{chassisControlPulseDiag})
	if completion != completionNodeBusy {
		t.Fatalf("completion = %#x, want %#x", completion, completionNodeBusy)
	}
}

func TestChassisStatusDataReportsPowerBit(t *testing.T) {
	e := engineWithHypervisor(&fakeHypervisor{poweredOn: true})
	data, completion := e.chassisStatusData()
	if completion != completionOK {
		t.Fatalf("completion = %#x, want %#x", completion, completionOK)
	}
	if len(data) != 3 || data[0]&0x01 == 0 {
		t.Fatalf("power status data = % x, want power bit set", data)
	}
}

func TestChassisStatusDataSurfacesHypervisorFailure(t *testing.T) {
	e := engineWithHypervisor(&fakeHypervisor{powerErr: errors.New("unreachable")})
	data, completion := e.chassisStatusData()
	if completion != completionNodeBusy {
		t.Fatalf("completion = %#x, want %#x", completion, completionNodeBusy)
	}
	if data != nil {
		t.Fatalf("expected nil data on failure, got % x", data)
	}
}
