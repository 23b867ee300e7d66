// Package datasource provides the illustrative connection state machine
// referenced by spec.md §1 as explicitly out of scope for the transport
// itself: this module owns connection lifecycle and raw-byte logging,
// and leaves the actual socket behind a Conn interface so any transport
// (UDP, a serial port, a replay file) can drive it.
//
// Supplemented beyond spec.md's distillation: the original system this
// spec was distilled from pairs every live capture with a raw append-only
// byte log for offline replay, a feature the distilled spec dropped but
// which fits naturally alongside the Offline signal storage mode.
package datasource

import (
	"io"
	"os"
	"time"

	"github.com/signalforge/engine/errors"
	"github.com/signalforge/engine/internal/telemetrylog"
	"github.com/signalforge/engine/worker"
)

// State is the connection lifecycle of spec.md's §4.9 supplement:
// Idle -> Connecting -> Connected <-> Receiving/Parsing -> Disconnected
// -> Idle.
type State int

const (
	Idle State = iota
	Connecting
	Connected
	Receiving
	Disconnected
)

func (s State) String() string {
	switch s {
	case Idle:
		return "idle"
	case Connecting:
		return "connecting"
	case Connected:
		return "connected"
	case Receiving:
		return "receiving"
	case Disconnected:
		return "disconnected"
	default:
		return "unknown"
	}
}

// Conn is the minimal transport boundary a DataSource drives. Concrete
// sockets, serial ports, or replay readers implement it; none are
// provided here (spec.md §1 leaves the transport itself out of scope).
type Conn interface {
	Connect() error
	// Read returns up to len(buf) bytes, or (0, io.EOF)-like errors on
	// disconnect. It must not block longer than the caller's willingness
	// to wait — a DataSource task calls this from within WaitIO/polling,
	// never as a blocking call on the scheduler's own goroutine.
	Read(buf []byte) (int, error)
	Close() error
}

// DataSource drives one Conn's lifecycle inside a worker's SharedBuffer,
// optionally mirroring every received chunk to a raw byte log for later
// offline replay.
type DataSource struct {
	conn      Conn
	buf       *worker.SharedBuffer
	state     State
	rawLog    io.WriteCloser
	onReceive func(t float64)
}

// New creates a DataSource over conn, delivering received chunks into
// buf. rawLogPath, if non-empty, opens an append-only file that every
// received chunk is also written to verbatim (best-effort: a log write
// failure is recorded but never blocks ingestion).
func New(conn Conn, buf *worker.SharedBuffer, rawLogPath string, onReceive func(t float64)) (*DataSource, error) {
	ds := &DataSource{conn: conn, buf: buf, state: Idle, onReceive: onReceive}
	if rawLogPath != "" {
		f, err := os.OpenFile(rawLogPath, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
		if err != nil {
			return nil, errors.Wrapf(err, "opening raw log %q", rawLogPath)
		}
		ds.rawLog = f
	}
	return ds, nil
}

// State returns the current connection state.
func (d *DataSource) State() State { return d.state }

// Run drives repeated Connect->Receive cycles using tc for suspension;
// it loops until the worker stops (a suspension point returns
// ErrWorkerStopped, or tc.Cancelled()). A failed Connect or Read is
// logged, the Conn is left Disconnected for one second, and the cycle
// starts again from Idle. It is intended to be the function body passed
// to Scheduler.Spawn for a data-source task.
func (d *DataSource) Run(tc *worker.TaskContext) error {
	for !tc.Cancelled() {
		d.state = Connecting
		if err := d.conn.Connect(); err != nil {
			telemetrylog.WorkerWarnw("datasource connect failed, retrying", "err", err)
			d.state = Disconnected
			if err := tc.SleepSeconds(1); err != nil {
				return err
			}
			d.state = Idle
			continue
		}
		d.state = Connected

		if err := d.receiveLoop(tc); err != nil {
			if errors.Is(err, errors.ErrWorkerStopped) {
				_ = d.conn.Close()
				d.state = Disconnected
				return err
			}
			telemetrylog.WorkerWarnw("datasource receive loop ended", "err", err)
		}
		_ = d.conn.Close()
		d.state = Disconnected
		if err := tc.SleepSeconds(1); err != nil {
			return err
		}
		d.state = Idle
	}
	return errors.ErrWorkerStopped
}

func (d *DataSource) receiveLoop(tc *worker.TaskContext) error {
	d.state = Receiving
	for {
		if err := tc.Yield(); err != nil {
			return err
		}
		n, err := d.conn.Read(d.buf.ReadInto())
		if err != nil {
			return errors.Wrap(err, "datasource read")
		}
		if n == 0 {
			continue
		}
		d.buf.SetLen(n)
		if d.rawLog != nil {
			if _, werr := d.rawLog.Write(d.buf.Bytes()); werr != nil {
				telemetrylog.WorkerWarnw("raw log write failed", "err", werr)
			}
		}
		if d.onReceive != nil {
			d.onReceive(float64(time.Now().UnixNano()) / 1e9)
		}
	}
}

// Close releases the raw log file, if one was opened.
func (d *DataSource) Close() error {
	if d.rawLog != nil {
		return d.rawLog.Close()
	}
	return nil
}
