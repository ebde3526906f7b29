package modbus

import "time"

// Operation-delay buckets, keyed by the slave
// datasheet's documented worst-case processing time for that operation
// class. "Reset" carries no response at all, so its delay is zero and the
// request is sent with NoResponseExpected.
const (
	DelayOperation      = 12 * time.Millisecond
	DelayEEPROM         = 30 * time.Millisecond
	DelayParameterClear = 5 * time.Second
	DelayReset          = 0
)

// nsPerBitDivisor: the established timeout fixtures for the drives
// this client talks to reproduce under 1_000_000, so that is the
// single constant used at every call site in this package.
const nsPerBitDivisor = 1_000_000

// Timeout computes the per-request timeout: transmission time of
// messageBytes at the given encoding/baud, plus the machine's own
// operation delay, plus the RTU 3.5-byte inter-frame silent time.
func Timeout(totalBitsPerByte int, delay time.Duration, baud int, messageBytes int) time.Duration {
	if baud <= 0 {
		return delay
	}
	nsPerBit := int64(nsPerBitDivisor / baud)
	nsPerByte := int64(totalBitsPerByte) * nsPerBit
	transmission := nsPerByte * int64(messageBytes)
	silent := (nsPerByte * 35) / 10
	total := transmission + silent + delay.Nanoseconds()
	return time.Duration(total)
}

// SilentTime returns the RTU inter-frame gap (3.5 character times) for the
// given encoding and baud rate.
func SilentTime(encoding SerialEncoding, baud int) time.Duration {
	if baud <= 0 {
		return 0
	}
	nsPerBit := int64(nsPerBitDivisor / baud)
	nsPerByte := int64(encoding.TotalBits()) * nsPerBit
	return time.Duration((nsPerByte * 35) / 10)
}
