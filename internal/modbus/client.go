package modbus

import (
	"fmt"
	"time"
)

// Transport is the narrow surface Client needs from the serial terminal it
// rides on. Its shape mirrors the hal.Serial capability exactly, so
// any hal.Serial implementation satisfies it structurally
// without this package importing internal/hal.
type Transport interface {
	// WriteMessage starts (or polls) a write. Passing a non-empty slice
	// starts a new write; passing nil/empty polls whether the
	// previously started write has completed (the subsequent
	// empty-write poll contract).
	WriteMessage(data []byte) (txComplete bool, err error)
	HasMessage() bool
	ReadMessage() ([]byte, error)
}

// State is one of the five co-operative states of the Modbus-RTU
// client state machine.
type State int

const (
	StateUninitialized State = iota
	StateReadyToSend
	StateWaitingForRequestAccept
	StateWaitingForResponse
	StateWaitingForReceiveAccept
)

func (s State) String() string {
	switch s {
	case StateUninitialized:
		return "Uninitialized"
	case StateReadyToSend:
		return "ReadyToSend"
	case StateWaitingForRequestAccept:
		return "WaitingForRequestAccept"
	case StateWaitingForResponse:
		return "WaitingForResponse"
	case StateWaitingForReceiveAccept:
		return "WaitingForReceiveAccept"
	default:
		return "Unknown"
	}
}

// Client is the single-threaded, co-operative Modbus-RTU client bolted on
// top of a serial terminal, stepped once per cycle by its owning
// machine. One request is in flight at a time.
type Client struct {
	state State
	queue *Queue

	baud     int
	encoding SerialEncoding

	current     *queuedRequest
	sendTime    time.Time
	timeout     time.Duration
	consecutiveFailures int

	responses map[uint64]Response
}

// NewClient builds a client bound to a fixed baud/encoding (used to
// compute per-request timeouts); it starts Uninitialized.
func NewClient(baud int, encoding SerialEncoding) *Client {
	return &Client{
		state:     StateUninitialized,
		queue:     NewQueue(),
		baud:      baud,
		encoding:  encoding,
		responses: make(map[uint64]Response),
	}
}

// Initialize transitions Uninitialized -> ReadyToSend once the underlying
// terminal reports it is ready.
func (c *Client) Initialize(t interface{ Initialize() bool }) error {
	if c.state != StateUninitialized {
		return nil
	}
	if !t.Initialize() {
		return fmt.Errorf("modbus: terminal initialization failed")
	}
	c.state = StateReadyToSend
	return nil
}

// State reports the client's current state.
func (c *Client) State() State { return c.state }

// Enqueue queues a request at the given base priority and returns an id
// that can later be passed to TakeResponse.
func (c *Client) Enqueue(req Request, basePriority int) uint64 {
	return c.queue.Enqueue(req, basePriority)
}

// TakeResponse removes and returns a previously completed response for id,
// if one has arrived.
func (c *Client) TakeResponse(id uint64) (Response, bool) {
	resp, ok := c.responses[id]
	if ok {
		delete(c.responses, id)
	}
	return resp, ok
}

// ConsecutiveFailures reports the number of back-to-back protocol failures
// (parse error, exception, timeout) since the last success.
func (c *Client) ConsecutiveFailures() int { return c.consecutiveFailures }

// messageDelayFor buckets the operation delay for a request by function
// code; a real deployment would key this off the slave's datasheet,
// this default keeps regular register operations within the 12ms
// operation bucket; there is no per-request override.
func messageDelayFor(req Request) time.Duration {
	if req.NoResponseExpected {
		return DelayReset
	}
	return DelayOperation
}

// Step advances the client state machine by exactly one cycle. now is
// the single cycle-start Instant captured by the engine; t is the
// serial transport.
func (c *Client) Step(now time.Time, t Transport) error {
	switch c.state {
	case StateUninitialized:
		return nil // caller must call Initialize first

	case StateReadyToSend:
		req := c.queue.popHighest()
		if req == nil {
			return nil
		}
		c.current = req
		frame := req.request.Encode()
		if _, err := t.WriteMessage(frame); err != nil {
			c.current = nil
			return fmt.Errorf("modbus: write request: %w", err)
		}
		c.sendTime = now
		c.timeout = Timeout(c.encoding.TotalBits(), messageDelayFor(req.request), c.baud, len(frame))
		c.state = StateWaitingForRequestAccept

	case StateWaitingForRequestAccept:
		complete, err := t.WriteMessage(nil)
		if err != nil {
			return fmt.Errorf("modbus: poll write completion: %w", err)
		}
		if complete {
			c.state = StateWaitingForResponse
		}

	case StateWaitingForResponse:
		if c.current.request.NoResponseExpected {
			c.state = StateReadyToSend
			c.current = nil
			return nil
		}
		if !t.HasMessage() {
			if now.Sub(c.sendTime) >= c.timeout {
				c.consecutiveFailures++
				c.state = StateReadyToSend
				c.current = nil
			}
			return nil
		}
		raw, err := t.ReadMessage()
		if err != nil {
			c.consecutiveFailures++
			c.state = StateReadyToSend
			c.current = nil
			return fmt.Errorf("modbus: read response: %w", err)
		}
		resp, err := Decode(raw)
		if err != nil {
			if now.Sub(c.sendTime) >= c.timeout {
				c.consecutiveFailures++
				c.state = StateReadyToSend
				c.current = nil
			}
			return nil
		}
		c.responses[c.current.id] = resp
		if resp.IsException {
			c.consecutiveFailures++
		} else {
			c.consecutiveFailures = 0
		}
		c.state = StateWaitingForReceiveAccept

	case StateWaitingForReceiveAccept:
		// Wait exactly one cycle so the terminal clears its "received"
		// latch before the next request can be sent.
		c.current = nil
		c.state = StateReadyToSend
	}
	return nil
}
