package midi

import (
	"errors"
	"strings"
	"time"

	gomidi "gitlab.com/gomidi/midi/v2"
	"gitlab.com/gomidi/midi/v2/drivers"
	_ "gitlab.com/gomidi/midi/v2/drivers/rtmididrv" // Register MIDI driver
)

// ErrPortsTimeout is returned when the MIDI backend does not answer.
// On macOS this usually means CoreMIDI is hung
// (sudo killall coreaudiod midiserver).
var ErrPortsTimeout = errors.New("timed out listing MIDI ports")

// PortTimeout bounds every port listing
const PortTimeout = 3 * time.Second

// Ports is a snapshot of the system's MIDI ports
type Ports struct {
	In  []drivers.In
	Out []drivers.Out
}

// ListPorts queries the driver, giving up after timeout
func ListPorts(timeout time.Duration) (Ports, error) {
	ch := make(chan Ports, 1)
	go func() {
		ch <- Ports{In: gomidi.GetInPorts(), Out: gomidi.GetOutPorts()}
	}()

	select {
	case p := <-ch:
		return p, nil
	case <-time.After(timeout):
		return Ports{}, ErrPortsTimeout
	}
}

// OutFor returns the output port with the same name as an input, if any
func (p Ports) OutFor(name string) drivers.Out {
	name = strings.ToLower(name)
	for _, op := range p.Out {
		if strings.ToLower(op.String()) == name {
			return op
		}
	}
	return nil
}

// IsLaunchpad reports whether a port name looks like a Launchpad's MIDI port
func IsLaunchpad(name string) bool {
	name = strings.ToLower(name)
	return strings.Contains(name, "launchpad") && strings.Contains(name, "midi")
}
