// Package machine is the host-facing glue: it loads a story blob, drives
// the interpreter step by step, buffers keystrokes, drains screen output
// and keeps the snapshot history that reverse stepping rides on.
package machine

import (
	"fmt"

	"github.com/fictionkit/zvm/interp"
	"github.com/fictionkit/zvm/log"
	"github.com/fictionkit/zvm/story"
	"github.com/fictionkit/zvm/zerrors"
)

// Machine wraps one interpreter plus its history. Machines are mutable
// host objects; the interpreter values inside stay persistent.
type Machine struct {
	current  interp.Interpreter
	history  []interp.Interpreter
	consumed int // screen output already handed to the host
	steps    uint64
}

// Load validates blob, builds the story and boots an interpreter on it.
func Load(blob []byte) (*Machine, error) {
	st, err := story.Load(blob)
	if err != nil {
		return nil, err
	}
	m := &Machine{current: interp.Make(st)}
	hdr := st.HeaderFields()
	log.Info(log.MachineMonitoring, "story booted",
		"version", hdr.Version, "release", hdr.Release, "serial", hdr.Serial,
		"initialPC", fmt.Sprintf("0x%04x", hdr.InitialPC),
		"staticBase", fmt.Sprintf("0x%04x", hdr.StaticMemory))
	return m, nil
}

// State returns the interpreter's scheduling state.
func (m *Machine) State() interp.State {
	return m.current.State()
}

// Interpreter returns the current interpreter snapshot.
func (m *Machine) Interpreter() interp.Interpreter {
	return m.current
}

// Steps returns the number of instructions executed so far.
func (m *Machine) Steps() uint64 {
	return m.steps
}

// Step executes one instruction, recording the previous snapshot.
func (m *Machine) Step() error {
	next, err := m.current.Step()
	if err != nil {
		return err
	}
	m.history = append(m.history, m.current)
	m.current = next
	m.steps++
	return nil
}

// StepBack rewinds to the previous snapshot. Snapshots share their memory
// base, so each one costs its edit overlay rather than a copy of the image.
func (m *Machine) StepBack() error {
	if len(m.history) == 0 {
		return fmt.Errorf("%w: no history to rewind", zerrors.ErrNotRunning)
	}
	m.current = m.history[len(m.history)-1]
	m.history = m.history[:len(m.history)-1]
	if m.steps > 0 {
		m.steps--
	}
	// Drop the drain marker back inside the rewound stream.
	if m.consumed > len(m.current.ScreenOutput()) {
		m.consumed = len(m.current.ScreenOutput())
	}
	return nil
}

// Run steps until the interpreter stops running or maxSteps instructions
// have executed. It returns the number of steps taken.
func (m *Machine) Run(maxSteps int) (int, error) {
	taken := 0
	for m.current.State() == interp.Running {
		if maxSteps > 0 && taken >= maxSteps {
			break
		}
		if err := m.Step(); err != nil {
			return taken, err
		}
		taken++
	}
	log.Debug(log.MachineMonitoring, "run paused",
		"steps", taken, "state", m.current.State().String(),
		"pc", fmt.Sprintf("0x%05x", m.current.ProgramCounter()))
	return taken, nil
}

// SendKey feeds one key while the machine waits for input.
func (m *Machine) SendKey(key byte) error {
	next, err := m.current.StepWithInput(key)
	if err != nil {
		return err
	}
	m.history = append(m.history, m.current)
	m.current = next
	return nil
}

// SendLine feeds a whole line of input, appending the newline that
// completes the pending read.
func (m *Machine) SendLine(line string) error {
	for i := 0; i < len(line); i++ {
		if err := m.SendKey(line[i]); err != nil {
			return err
		}
	}
	return m.SendKey('\n')
}

// ReadOutput returns the screen output produced since the last call.
func (m *Machine) ReadOutput() string {
	out := m.current.ScreenOutput()
	fresh := out[m.consumed:]
	m.consumed = len(out)
	return fresh
}
