package transport

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/fisaks/fieldhub/internal/config"
	"github.com/fisaks/fieldhub/internal/logging"
	"github.com/goburrow/modbus"
)

type ModbusHandler interface {
	modbus.ClientHandler
	Connect() error
	Close() error
}

// BusConnection owns the single goburrow handler for one physical bus.
// All requests for the bus funnel through its mutex, so devices sharing
// a bus never have more than one request in flight while the callers
// above stay independent of each other.
type BusConnection struct {
	busID   string
	handler ModbusHandler
	client  modbus.Client

	mu sync.Mutex // serializes physical bus access

	// Connection and backoff state, guarded by mu.
	connOK      bool
	backoff     time.Duration
	backoffMin  time.Duration
	backoffMax  time.Duration
	lastConnErr error
}

func newBusConnection(handler ModbusHandler, busID string) *BusConnection {
	return &BusConnection{
		busID:      busID,
		handler:    handler,
		client:     modbus.NewClient(handler),
		connOK:     true,
		backoff:    0, // means "ready to try now"
		backoffMin: 200 * time.Millisecond,
		backoffMax: 5 * time.Second,
	}
}

func NewRTUConnection(bus *config.BusConfig) *BusConnection {
	handler := modbus.NewRTUClientHandler(bus.Port)
	handler.BaudRate = bus.Baud
	handler.DataBits = bus.DataBits
	handler.Parity = bus.Parity
	handler.StopBits = bus.StopBits
	handler.Timeout = bus.Timeout()
	if bus.Debug {
		handler.Logger = logging.WrapSlog("bus", bus.BusId)
	}
	return newBusConnection(handler, bus.BusId)
}

func NewTCPConnection(bus *config.BusConfig) *BusConnection {
	handler := modbus.NewTCPClientHandler(bus.TCPAddr)
	handler.Timeout = bus.Timeout()
	if bus.Debug {
		handler.Logger = logging.WrapSlog("bus", bus.BusId)
	}
	return newBusConnection(handler, bus.BusId)
}

func (c *BusConnection) BusID() string { return c.busID }

func (c *BusConnection) Close() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.closeLocked()
}

func (c *BusConnection) closeLocked() {
	_ = c.handler.Close()
	c.connOK = false
}

func (c *BusConnection) ensureConnected(ctx context.Context) error {
	if c.connOK {
		return nil
	}
	if c.backoff > 0 {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(c.backoff):
		}
	}

	c.closeLocked() // cleanup any stale
	if err := c.handler.Connect(); err != nil {
		c.bumpBackoff(err)
		return err
	}

	c.client = modbus.NewClient(c.handler)
	c.connOK = true
	c.backoff = 0
	c.lastConnErr = nil
	return nil
}

func (c *BusConnection) bumpBackoff(err error) {
	c.connOK = false
	c.lastConnErr = err
	if c.backoff == 0 {
		c.backoff = c.backoffMin
	} else {
		c.backoff *= 2
		if c.backoff > c.backoffMax {
			c.backoff = c.backoffMax
		}
	}
}

func (c *BusConnection) setSlave(id byte) {
	switch h := c.handler.(type) {
	case *modbus.RTUClientHandler:
		h.SlaveId = id
	case *modbus.TCPClientHandler:
		h.SlaveId = id
	default:
		logging.Error("Unknown Modbus handler type", "type", fmt.Sprintf("%T", h))
	}
}

// do runs one request against the bus under the connection mutex. A
// transient failure gets a single reconnect-and-retry; everything else
// is returned as-is for the caller to classify.
func (c *BusConnection) do(ctx context.Context, unitID byte, fn func(modbus.Client) ([]byte, error)) ([]byte, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if err := c.ensureConnected(ctx); err != nil {
		return nil, err
	}
	c.setSlave(unitID)

	v, err := fn(c.client)
	if err == nil {
		return v, nil
	}
	if isTransient(err) {
		logging.Warn("bus request failed, retrying once", "bus", c.busID, "unitId", unitID, "error", err)
		c.bumpBackoff(err)
		if err2 := c.ensureConnected(ctx); err2 == nil {
			c.setSlave(unitID)
			return fn(c.client)
		}
	}
	return nil, err
}

// RegisterClient binds a shared BusConnection to one unit id and
// exposes the typed read/write operations the coordinators use.
type RegisterClient struct {
	conn   *BusConnection
	unitID byte
	target string
}

func NewRegisterClient(conn *BusConnection, device *config.DeviceConfig) *RegisterClient {
	return &RegisterClient{
		conn:   conn,
		unitID: device.UnitId,
		target: fmt.Sprintf("%s/%s", conn.busID, device.Name),
	}
}

// ReadHoldingRegisters returns the raw byte payload for count registers
// starting at addr.
func (rc *RegisterClient) ReadHoldingRegisters(ctx context.Context, addr, count uint16) ([]byte, error) {
	buf, err := rc.conn.do(ctx, rc.unitID, func(cl modbus.Client) ([]byte, error) {
		return cl.ReadHoldingRegisters(addr, count)
	})
	return buf, wrap("read holding registers", rc.target, err)
}

// WriteRegisters writes len(data)/2 registers starting at addr in a
// single multi-register request.
func (rc *RegisterClient) WriteRegisters(ctx context.Context, addr uint16, data []byte) error {
	if len(data) == 0 || len(data)%2 != 0 {
		return wrap("write registers", rc.target,
			fmt.Errorf("payload must be a positive even number of bytes, got %d", len(data)))
	}
	_, err := rc.conn.do(ctx, rc.unitID, func(cl modbus.Client) ([]byte, error) {
		return cl.WriteMultipleRegisters(addr, uint16(len(data)/2), data)
	})
	return wrap("write registers", rc.target, err)
}

func (rc *RegisterClient) ReadCoil(ctx context.Context, addr uint16) (bool, error) {
	buf, err := rc.conn.do(ctx, rc.unitID, func(cl modbus.Client) ([]byte, error) {
		return cl.ReadCoils(addr, 1)
	})
	if err != nil {
		return false, wrap("read coil", rc.target, err)
	}
	if len(buf) == 0 {
		return false, &Error{Kind: KindProtocol, Op: "read coil", Target: rc.target,
			Err: fmt.Errorf("empty coil response")}
	}
	return buf[0]&0x01 != 0, nil
}

func (rc *RegisterClient) WriteCoil(ctx context.Context, addr uint16, on bool) error {
	var value uint16
	if on {
		value = 0xFF00
	}
	_, err := rc.conn.do(ctx, rc.unitID, func(cl modbus.Client) ([]byte, error) {
		return cl.WriteSingleCoil(addr, value)
	})
	return wrap("write coil", rc.target, err)
}

func (rc *RegisterClient) ReadDiscreteInput(ctx context.Context, addr uint16) (bool, error) {
	buf, err := rc.conn.do(ctx, rc.unitID, func(cl modbus.Client) ([]byte, error) {
		return cl.ReadDiscreteInputs(addr, 1)
	})
	if err != nil {
		return false, wrap("read discrete input", rc.target, err)
	}
	if len(buf) == 0 {
		return false, &Error{Kind: KindProtocol, Op: "read discrete input", Target: rc.target,
			Err: fmt.Errorf("empty input response")}
	}
	return buf[0]&0x01 != 0, nil
}
