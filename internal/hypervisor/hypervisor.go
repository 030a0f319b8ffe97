// Package hypervisor implements ipmiengine.HypervisorClient against a
// vSphere/ESXi endpoint via govmomi.
package hypervisor

import (
	"context"
	"fmt"
	"net/url"

	"github.com/rs/zerolog"
	"github.com/vmware/govmomi"
	"github.com/vmware/govmomi/find"
	"github.com/vmware/govmomi/object"
	"github.com/vmware/govmomi/vim25/mo"
	"github.com/vmware/govmomi/vim25/soap"
	"github.com/vmware/govmomi/vim25/types"
)

// Target names the vSphere endpoint and VM a Client drives.
type Target struct {
	Server   string
	Username string
	Password string
	VMName   string
	VMUUID   string
}

// Client drives one VM on one vSphere endpoint. Every operation opens
// its own scoped SOAP session and disconnects on all exit paths rather
// than holding a long-lived session across a listener's lifetime.
type Client struct {
	target Target
	log    zerolog.Logger
}

// New builds a Client. No network connection is made until a call is issued.
func New(target Target, log zerolog.Logger) *Client {
	return &Client{target: target, log: log}
}

// session opens a fresh, insecure-TLS govmomi session. TLS verification
// is disabled by design: legacy vCenter/ESXi installs commonly run on
// self-signed CAs this engine has no business validating.
func (c *Client) session(ctx context.Context) (*govmomi.Client, error) {
	u, err := soap.ParseURL(c.target.Server)
	if err != nil || u == nil {
		return nil, fmt.Errorf("parse vSphere URL %q: %w", c.target.Server, err)
	}
	u.User = url.UserPassword(c.target.Username, c.target.Password)

	client, err := govmomi.NewClient(ctx, u, true)
	if err != nil {
		return nil, fmt.Errorf("connect to vSphere %q: %w", c.target.Server, err)
	}
	return client, nil
}

// lookupVM resolves the target VM: by UUID when one is configured,
// otherwise by name under the root folder, requiring exactly one match.
func (c *Client) lookupVM(ctx context.Context, client *govmomi.Client) (*object.VirtualMachine, error) {
	if c.target.VMUUID != "" {
		si := object.NewSearchIndex(client.Client)
		ref, err := si.FindByUuid(ctx, nil, c.target.VMUUID, true, nil)
		if err != nil {
			return nil, fmt.Errorf("find VM by UUID %q: %w", c.target.VMUUID, err)
		}
		if ref == nil {
			return nil, fmt.Errorf("no VM found with UUID %q", c.target.VMUUID)
		}
		vm, ok := ref.(*object.VirtualMachine)
		if !ok {
			return nil, fmt.Errorf("object with UUID %q is not a virtual machine", c.target.VMUUID)
		}
		return vm, nil
	}

	finder := find.NewFinder(client.Client, false)
	vm, err := finder.VirtualMachine(ctx, c.target.VMName)
	if err != nil {
		return nil, fmt.Errorf("find VM %q: %w", c.target.VMName, err)
	}
	return vm, nil
}

// withVM opens a session, resolves the target VM, runs fn, and
// disconnects on every exit path including failure.
func (c *Client) withVM(ctx context.Context, fn func(context.Context, *object.VirtualMachine) error) error {
	client, err := c.session(ctx)
	if err != nil {
		return err
	}
	defer func() {
		_ = client.Logout(ctx)
	}()

	vm, err := c.lookupVM(ctx, client)
	if err != nil {
		return err
	}
	return fn(ctx, vm)
}

// LookupVM verifies the target VM resolves on the hypervisor and
// returns its inventory name. Listeners call it once at startup so a
// misconfigured vm_name/vm_uuid is visible in the log before the first
// chassis command arrives.
func (c *Client) LookupVM(ctx context.Context) (string, error) {
	var name string
	err := c.withVM(ctx, func(ctx context.Context, vm *object.VirtualMachine) error {
		var props mo.VirtualMachine
		if err := vm.Properties(ctx, vm.Reference(), []string{"name"}, &props); err != nil {
			return fmt.Errorf("reading VM properties: %w", err)
		}
		name = props.Name
		return nil
	})
	return name, err
}

// GetPowerState reports whether the VM is currently powered on.
func (c *Client) GetPowerState(ctx context.Context) (bool, error) {
	var poweredOn bool
	err := c.withVM(ctx, func(ctx context.Context, vm *object.VirtualMachine) error {
		state, err := vm.PowerState(ctx)
		if err != nil {
			return err
		}
		poweredOn = state == types.VirtualMachinePowerStatePoweredOn
		return nil
	})
	return poweredOn, err
}

// PowerOn hard-powers the VM on and waits for the task to complete.
func (c *Client) PowerOn(ctx context.Context) error {
	return c.withVM(ctx, func(ctx context.Context, vm *object.VirtualMachine) error {
		task, err := vm.PowerOn(ctx)
		if err != nil {
			return err
		}
		return task.Wait(ctx)
	})
}

// PowerOff hard-powers the VM off and waits for the task to complete.
func (c *Client) PowerOff(ctx context.Context) error {
	return c.withVM(ctx, func(ctx context.Context, vm *object.VirtualMachine) error {
		task, err := vm.PowerOff(ctx)
		if err != nil {
			return err
		}
		return task.Wait(ctx)
	})
}

// Reset power-cycles the VM and waits for the task to complete.
func (c *Client) Reset(ctx context.Context) error {
	return c.withVM(ctx, func(ctx context.Context, vm *object.VirtualMachine) error {
		task, err := vm.Reset(ctx)
		if err != nil {
			return err
		}
		return task.Wait(ctx)
	})
}

// ShutdownGuest asks VMware Tools to shut the guest OS down cleanly;
// unlike the other operations this is not task-based.
func (c *Client) ShutdownGuest(ctx context.Context) error {
	return c.withVM(ctx, func(ctx context.Context, vm *object.VirtualMachine) error {
		return vm.ShutdownGuest(ctx)
	})
}
