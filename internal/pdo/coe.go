package pdo

// ConfigWrite is one CoE/SDO configuration write applied once at bus
// startup (Preoperational), before any cyclic PDO exchange. CoE is
// EtherCAT's carrier for the CANopen SDO protocol -- both share the
// same request/response wire shape, which is why the naming below
// echoes CANopen's SDO vocabulary (UploadRequest/DownloadRequest).
type ConfigWrite struct {
	Index    uint16
	Subindex uint8
	Value    []byte
}

// DownloadRequest names the CoE/SDO write direction (host -> device),
// used for configuration writes.
type DownloadRequest struct {
	ConfigWrite
}

// UploadRequest names the CoE/SDO read direction (device -> host), used
// e.g. to read back a terminal's vendor/product identity object.
type UploadRequest struct {
	Index    uint16
	Subindex uint8
}

// ConfigSequence is the fixed, ordered list of CoE writes a terminal type
// applies at configuration time -- fixed order because it must match the
// manufacturer's object dictionary.
type ConfigSequence []ConfigWrite
