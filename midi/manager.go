package midi

import (
	"context"
	"sync"
	"time"

	"seqbox/debug"
)

// DeviceEvent is emitted when controllers connect/disconnect
type DeviceEvent struct {
	Type       DeviceEventType
	Controller Controller
	ID         string
}

type DeviceEventType int

const (
	DeviceConnected DeviceEventType = iota
	DeviceDisconnected
)

// KeyboardPort names an input to open as an audition keyboard
type KeyboardPort struct {
	PortName string
	Channel  int // 1-16, 0 = omni
}

// DeviceManager handles hot-plug detection of MIDI controllers
type DeviceManager struct {
	controllers map[string]Controller
	keyboards   []KeyboardPort
	mu          sync.RWMutex
	events      chan DeviceEvent
	pollRate    time.Duration
	listPorts   func(time.Duration) (Ports, error)
}

// NewDeviceManager creates a device manager that picks up any Launchpad
// plus the given keyboards
func NewDeviceManager(keyboards ...KeyboardPort) *DeviceManager {
	return &DeviceManager{
		controllers: make(map[string]Controller),
		keyboards:   keyboards,
		events:      make(chan DeviceEvent, 16),
		pollRate:    time.Second,
		listPorts:   ListPorts,
	}
}

// Events returns a channel of device connect/disconnect events
func (dm *DeviceManager) Events() <-chan DeviceEvent {
	return dm.events
}

// Controllers returns a snapshot of connected controllers
func (dm *DeviceManager) Controllers() map[string]Controller {
	dm.mu.RLock()
	defer dm.mu.RUnlock()
	out := make(map[string]Controller, len(dm.controllers))
	for k, v := range dm.controllers {
		out[k] = v
	}
	return out
}

// GetLaunchpad returns the first connected Launchpad (or nil)
func (dm *DeviceManager) GetLaunchpad() Controller {
	dm.mu.RLock()
	defer dm.mu.RUnlock()
	for _, c := range dm.controllers {
		if c.Type() == ControllerLaunchpad {
			return c
		}
	}
	return nil
}

// Run polls for devices until ctx is done, then closes every controller
// and the events channel
func (dm *DeviceManager) Run(ctx context.Context) {
	ticker := time.NewTicker(dm.pollRate)
	defer ticker.Stop()

	dm.scan(ctx)
	for {
		select {
		case <-ctx.Done():
			dm.closeAll()
			close(dm.events)
			return
		case <-ticker.C:
			dm.scan(ctx)
		}
	}
}

func (dm *DeviceManager) scan(ctx context.Context) {
	ports, err := dm.listPorts(PortTimeout)
	if err != nil {
		debug.LogEvery(10, "ctrl", "scan skipped: %v", err)
		return
	}

	seen := make(map[string]bool)
	for _, in := range ports.In {
		id := in.String()
		var kb *KeyboardPort
		for i := range dm.keyboards {
			if dm.keyboards[i].PortName == id {
				kb = &dm.keyboards[i]
				break
			}
		}
		if kb == nil && !IsLaunchpad(id) {
			continue
		}
		seen[id] = true

		dm.mu.RLock()
		_, exists := dm.controllers[id]
		dm.mu.RUnlock()
		if exists {
			continue
		}

		var c Controller
		if kb != nil {
			c, err = NewKeyboardController(id, in, kb.Channel)
		} else {
			c, err = NewLaunchpadController(id, in, ports.OutFor(id))
		}
		if err != nil {
			debug.Log("ctrl", "open %s: %v", id, err)
			continue
		}

		dm.mu.Lock()
		dm.controllers[id] = c
		dm.mu.Unlock()
		if !dm.publish(ctx, DeviceEvent{Type: DeviceConnected, Controller: c, ID: id}) {
			return
		}
	}

	dm.mu.Lock()
	var gone []string
	for id, c := range dm.controllers {
		if !seen[id] {
			c.Close()
			delete(dm.controllers, id)
			gone = append(gone, id)
		}
	}
	dm.mu.Unlock()

	for _, id := range gone {
		debug.Log("ctrl", "disconnected %s", id)
		if !dm.publish(ctx, DeviceEvent{Type: DeviceDisconnected, ID: id}) {
			return
		}
	}
}

func (dm *DeviceManager) publish(ctx context.Context, ev DeviceEvent) bool {
	select {
	case dm.events <- ev:
		return true
	case <-ctx.Done():
		return false
	}
}

func (dm *DeviceManager) closeAll() {
	dm.mu.Lock()
	defer dm.mu.Unlock()
	for _, c := range dm.controllers {
		c.Close()
	}
	dm.controllers = make(map[string]Controller)
}
