package protocol

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"sync"
	"time"

	"github.com/sweeney/refbox/internal/event"
	"github.com/sweeney/refbox/internal/store"
)

// storeTimeout bounds one store call made while answering a frame.
const storeTimeout = 2 * time.Second

// Stats counts processed buffers.
type Stats struct {
	Frames uint64
	Errors uint64
}

// Framer answers configuration frames and owns configuration mode.
// Feed and Process are safe for concurrent use with StartConfig and
// StopConfig.
type Framer struct {
	store  store.Store
	sink   event.Sink
	logger *slog.Logger

	mu      sync.Mutex
	acc     *Accumulator
	running bool
	params  map[string][]byte
	stats   Stats
}

// New creates a Framer. sink receives the configuration events raised by the
// magic sequence.
func New(st store.Store, sink event.Sink, logger *slog.Logger) *Framer {
	params := make(map[string][]byte, len(store.Names()))
	for _, n := range store.Names() {
		params[n] = nil
	}
	return &Framer{
		store:  st,
		sink:   sink,
		logger: logger,
		acc:    NewAccumulator(),
		params: params,
	}
}

// Running reports whether configuration mode is on.
func (f *Framer) Running() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.running
}

// Stats returns frame counters.
func (f *Framer) Stats() Stats {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.stats
}

// StartConfig loads the configuration record into the parameter table and
// turns configuration mode on.
func (f *Framer) StartConfig(ctx context.Context) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.start(ctx)
}

func (f *Framer) start(ctx context.Context) error {
	if f.running {
		return ErrAlreadyRunning
	}
	for name := range f.params {
		v, err := f.store.Get(ctx, name)
		if errors.Is(err, store.ErrNotFound) {
			f.params[name] = nil
			continue
		}
		if err != nil {
			return fmt.Errorf("loading %s: %w", name, err)
		}
		f.params[name] = v
	}
	f.running = true
	f.logger.Info("configuration mode on")
	return nil
}

// StopConfig turns configuration mode off.
func (f *Framer) StopConfig() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.stop()
}

func (f *Framer) stop() error {
	if !f.running {
		return ErrNotRunning
	}
	f.running = false
	f.logger.Info("configuration mode off")
	return nil
}

// Feed consumes received bytes and returns the encoded responses, delimiters
// included, for every buffer they completed.
func (f *Framer) Feed(ctx context.Context, data []byte) []byte {
	f.mu.Lock()
	defer f.mu.Unlock()

	var out []byte
	for _, b := range data {
		buf, done, err := f.acc.Feed(b)
		if !done {
			continue
		}
		var rsp Packet
		if err != nil {
			f.logger.Warn("frame dropped", "error", err)
			rsp = Packet{Cmd: RspRxError}
		} else {
			rsp = f.process(ctx, buf)
		}
		f.stats.Frames++
		if rsp.Cmd >= RspError {
			f.stats.Errors++
		}
		out = f.appendResponse(out, rsp)
	}
	return out
}

// Process answers one delimited buffer.
func (f *Framer) Process(ctx context.Context, buf []byte) Packet {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.process(ctx, buf)
}

func (f *Framer) process(ctx context.Context, buf []byte) Packet {
	if IsMagic(buf) {
		return f.toggle(ctx)
	}

	pkt, err := Decode(buf)
	switch {
	case errors.Is(err, ErrChecksum):
		f.logger.Warn("frame rejected", "error", err)
		return Packet{Cmd: RspCRCError}
	case err != nil:
		f.logger.Warn("frame rejected", "error", err)
		return Packet{Cmd: RspError}
	}

	f.logger.Debug("frame received", "packet", pkt.String())

	switch pkt.Cmd {
	case CmdReady:
		return Packet{Cmd: RspOK}
	case CmdRead:
		return f.read(ctx, pkt)
	case CmdWrite:
		return f.write(ctx, pkt)
	default:
		// CmdCommit is reserved; writes are already durable.
		return Packet{Cmd: RspError}
	}
}

func (f *Framer) toggle(ctx context.Context) Packet {
	if !f.running {
		if err := f.start(ctx); err != nil {
			f.logger.Error("start configuration failed", "error", err)
			return Packet{Cmd: RspError}
		}
		f.push(event.EnterConfiguration)
		return Packet{Cmd: RspOK}
	}
	if err := f.stop(); err != nil {
		return Packet{Cmd: RspError}
	}
	f.push(event.ExitConfiguration)
	return Packet{Cmd: RspOK}
}

func (f *Framer) push(id event.ID) {
	if f.sink == nil {
		return
	}
	if err := f.sink.Push(event.New(id)); err != nil {
		f.logger.Warn("configuration event not delivered", "event", id.String(), "error", err)
	}
}

// read answers from the store so values written by any path are visible,
// in or out of configuration mode.
func (f *Framer) read(ctx context.Context, pkt Packet) Packet {
	name := string(pkt.Param)
	if _, ok := f.params[name]; !ok {
		return Packet{Cmd: RspReadError}
	}

	ctx, cancel := context.WithTimeout(ctx, storeTimeout)
	defer cancel()

	v, err := f.store.Get(ctx, name)
	switch {
	case errors.Is(err, store.ErrNotFound):
		v = nil
	case err != nil:
		f.logger.Error("load parameter failed", "param", name, "error", err)
		return Packet{Cmd: RspReadError}
	}
	f.params[name] = v
	if len(v) == 0 {
		return Packet{Cmd: RspReadOK}
	}
	return Packet{
		Cmd:   RspReadOK,
		Param: append([]byte(nil), pkt.Param...),
		Value: append([]byte(nil), v...),
	}
}

func (f *Framer) write(ctx context.Context, pkt Packet) Packet {
	name := string(pkt.Param)
	if _, ok := f.params[name]; !ok {
		return Packet{Cmd: RspWriteError}
	}
	if len(pkt.Value) == 0 || len(pkt.Value) > MaxValueLen {
		return Packet{Cmd: RspWriteError}
	}

	ctx, cancel := context.WithTimeout(ctx, storeTimeout)
	defer cancel()

	if err := f.store.Set(ctx, name, pkt.Value); err != nil {
		f.logger.Error("persist parameter failed", "param", name, "error", err)
		return Packet{Cmd: RspWriteError}
	}
	f.params[name] = append([]byte(nil), pkt.Value...)
	f.logger.Info("parameter written", "param", name, "len", len(pkt.Value))
	return Packet{Cmd: RspWriteOK}
}

func (f *Framer) appendResponse(out []byte, rsp Packet) []byte {
	b, err := AppendFrame(out, rsp)
	if err != nil {
		// Stored values can hold the delimiter byte; answer without payload.
		f.logger.Warn("response not encodable", "error", err)
		b, _ = AppendFrame(out, Packet{Cmd: rsp.Cmd})
	}
	return b
}

// Serve reads from rw, answering every completed buffer, until ctx is
// cancelled or rw fails. Closing rw unblocks a pending read.
func (f *Framer) Serve(ctx context.Context, rw io.ReadWriter) error {
	buf := make([]byte, BufferSize)
	for {
		n, err := rw.Read(buf)
		if n > 0 {
			if rsp := f.Feed(ctx, buf[:n]); len(rsp) > 0 {
				if _, werr := rw.Write(rsp); werr != nil {
					f.logger.Warn("write response failed", "error", werr)
				}
			}
		}
		if ctx.Err() != nil {
			return nil
		}
		if err != nil {
			if errors.Is(err, io.EOF) {
				return nil
			}
			return fmt.Errorf("read serial: %w", err)
		}
	}
}
