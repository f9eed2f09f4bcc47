package midi

import (
	"fmt"

	"seqbox/debug"

	gomidi "gitlab.com/gomidi/midi/v2"
	"gitlab.com/gomidi/midi/v2/drivers"
)

// KeyboardController turns a MIDI keyboard into audition input. It has no
// LEDs; the LED methods are no-ops.
type KeyboardController struct {
	id       string
	channel  int // -1 listens on every channel
	stopFunc func()

	padChan  chan PadEvent
	noteChan chan NoteEvent
}

// NewKeyboardController listens on inPort. channel is 1-16, or 0 for omni.
func NewKeyboardController(id string, inPort drivers.In, channel int) (*KeyboardController, error) {
	kb := &KeyboardController{
		id:       id,
		channel:  channel - 1,
		padChan:  make(chan PadEvent),
		noteChan: make(chan NoteEvent, 32),
	}

	if inPort != nil {
		stop, err := gomidi.ListenTo(inPort, kb.receive)
		if err != nil {
			return nil, fmt.Errorf("open input: %w", err)
		}
		kb.stopFunc = stop
	}
	debug.Log("ctrl", "keyboard %s ready channel=%d", id, channel)
	return kb, nil
}

func (kb *KeyboardController) receive(msg gomidi.Message, timestampms int32) {
	var channel, note, velocity uint8
	if !msg.GetNoteOn(&channel, &note, &velocity) || velocity == 0 {
		return
	}
	if kb.channel >= 0 && int(channel) != kb.channel {
		return
	}
	select {
	case kb.noteChan <- NoteEvent{Note: note, Velocity: velocity, Channel: channel}:
	default:
	}
}

func (kb *KeyboardController) ID() string {
	return kb.id
}

func (kb *KeyboardController) Type() ControllerType {
	return ControllerKeyboard
}

func (kb *KeyboardController) PadEvents() <-chan PadEvent {
	return kb.padChan
}

func (kb *KeyboardController) NoteEvents() <-chan NoteEvent {
	return kb.noteChan
}

func (kb *KeyboardController) SetLEDRGB(row, col int, rgb [3]uint8, channel uint8) error {
	return nil
}

func (kb *KeyboardController) SetLEDBatch(updates []LEDUpdate) error {
	return nil
}

func (kb *KeyboardController) Close() error {
	if kb.stopFunc != nil {
		kb.stopFunc()
	}
	close(kb.padChan)
	close(kb.noteChan)
	return nil
}
