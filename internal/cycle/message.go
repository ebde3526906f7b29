package cycle

// Message is the cycle engine's inbox sum type,
// realized as a sealed interface the way
// internal/machine.Mutation realizes its own sum type -- a small marker
// method keeps anything outside this package from satisfying it by
// accident.
type Message interface {
	isMessage()
}

// AddEtherCatSetup installs a bus driver, replacing whichever one (if
// any) the engine currently holds.
type AddEtherCatSetup struct {
	Bus Bus
}

func (AddEtherCatSetup) isMessage() {}

// AddMachines appends machines to the engine's running set, de-duplicated
// by identity -- a machine already present by the same identity is
// replaced rather than duplicated.
type AddMachines struct {
	Machines []Machine
}

func (AddMachines) isMessage() {}

// DeleteMachine removes the machine with the given identity, if present.
type DeleteMachine struct {
	ID MachineID
}

func (DeleteMachine) isMessage() {}

// WriteMachineDeviceInfo carries a subdevice position and the 4-word
// identity to write to its EEPROM. The engine does not perform the
// write: its handler logs a warning and drops the message.
type WriteMachineDeviceInfo struct {
	DevicePosition int
	Identity       [4]uint16
}

func (WriteMachineDeviceInfo) isMessage() {}

// MutateMachine asks the engine to apply a command to one already-running
// machine. Apply is run on the cycle thread between drainInbox and the
// next tx_rx, the same thread every Act runs on, so a machine never
// observes a command and its own Act interleaved from two goroutines.
type MutateMachine struct {
	ID    MachineID
	Apply func(m Machine) error
}

func (MutateMachine) isMessage() {}
