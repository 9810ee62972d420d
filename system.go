package cadss

import (
	"errors"
	"fmt"
	"io"

	"github.com/rs/zerolog"

	"github.com/archsim/cadss/bus"
	"github.com/archsim/cadss/cache"
	"github.com/archsim/cadss/coherence"
	"github.com/archsim/cadss/coherence/protocol"
)

// ErrUnknownProcessor reports a procNum outside the configured System.
var ErrUnknownProcessor = errors.New("cadss: unknown processor number")

// processor bundles one cache.Controller with the coherence.Controller
// that arbitrates its lines against every other processor's. The two are
// wired in both directions: a line the cache evicts on its own (a
// conflict miss with nowhere to rescue it to) drops out of the coherence
// state map via InvlReq, and a line the coherence module invalidates on a
// peer's behalf is force-dropped from the cache via ForceInvalidate - the
// "cache callback... invoked on snoop-driven completions" the two
// modules' own contracts describe without implementing. The cache reports
// evictions by block address; InvlReq is handed the block-aligned byte
// address, so a coherence entry kept under an unaligned address inside
// that block is not dropped.
type processor struct {
	num   int
	cache *cache.Controller
	coher *coherence.Controller
}

// System is a complete multiprocessor memory hierarchy: numProcessors
// cache+coherence pairs sharing one bus.Interconnect. It is the minimal
// reference collaborator the core packages assume but leave external -
// the trace-driving simulation loop itself is still out of scope; System
// only owns the wiring a real driver would otherwise have to duplicate.
type System struct {
	bus        bus.Interconnect
	processors []processor
	log        zerolog.Logger
}

// NewSystem builds a System of numProcessors identical caches (cacheCfg,
// applied to every processor with its own Log/OnEvict overridden) running
// the given coherence scheme. log is shared by the bus and every
// processor's coherence controller.
func NewSystem(numProcessors int, cacheCfg cache.Config, scheme protocol.Scheme, log zerolog.Logger) (*System, error) {
	b, err := bus.NewSimpleBus(numProcessors, log)
	if err != nil {
		return nil, err
	}

	s := &System{bus: b, log: log}
	s.processors = make([]processor, numProcessors)

	for i := 0; i < numProcessors; i++ {
		proto, err := protocol.New(scheme)
		if err != nil {
			return nil, fmt.Errorf("cadss: processor %d: %w", i, err)
		}

		var p processor
		p.num = i

		cfg := cacheCfg
		cfg.Log = log
		cfg.OnEvict = func(addr uint64) {
			if flush := p.coher.InvlReq(addr << uint(cacheCfg.B)); flush {
				log.Debug().Int("proc", i).Uint64("addr", addr).
					Msg("eviction flushed dirty coherence state to the bus")
			}
		}
		cacheCtrl, err := cache.New(cfg)
		if err != nil {
			return nil, fmt.Errorf("cadss: processor %d: %w", i, err)
		}
		p.cache = cacheCtrl

		onGrant := func(addr uint64, procNum int) {
			log.Debug().Int("proc", procNum).Uint64("addr", addr).
				Msg("coherence permission granted")
		}
		onInvalidate := func(addr uint64, procNum int) {
			found, dirty := cacheCtrl.ForceInvalidate(addr)
			log.Debug().Int("proc", procNum).Uint64("addr", addr).
				Bool("found", found).Bool("dirty", dirty).
				Msg("coherence-driven cache invalidation")
		}
		p.coher = coherence.NewController(i, proto, b, onGrant, onInvalidate, log)

		if err := b.RegisterSnooper(i, p.coher); err != nil {
			return nil, fmt.Errorf("cadss: processor %d: %w", i, err)
		}

		s.processors[i] = p
	}

	return s, nil
}

// MemoryRequest routes a trace operation to procNum's cache, first letting
// its coherence controller settle permission for the address. The bus
// fan-out this triggers is entirely synchronous, so by the time PermReq
// returns, any peer response - real or the bus's synthesized memory
// response - has already been observed; only the cache module's own
// countdown genuinely spans ticks.
func (s *System) MemoryRequest(procNum int, op cache.Op, tag uint64, callback cache.MemCallback) error {
	if procNum < 0 || procNum >= len(s.processors) {
		return fmt.Errorf("%w: %d", ErrUnknownProcessor, procNum)
	}
	p := &s.processors[procNum]

	isRead := op.Kind == cache.LOAD
	if _, err := p.coher.PermReq(isRead, op.MemAddress); err != nil {
		s.log.Warn().Int("proc", procNum).Err(err).Msg("coherence permission request failed")
	}

	p.cache.MemoryRequest(op, procNum, tag, callback)
	return nil
}

// Tick advances every processor's cache controller and the bus by one
// simulated unit.
func (s *System) Tick() {
	s.bus.Tick()
	for i := range s.processors {
		s.processors[i].cache.Tick()
	}
}

// Finish tears the system down, writing a report to w. It never fires
// pending callbacks.
func (s *System) Finish(w io.Writer) error {
	if err := s.bus.Finish(w); err != nil {
		return err
	}
	for i := range s.processors {
		if err := s.processors[i].cache.Finish(w); err != nil {
			return err
		}
	}
	return nil
}

// Destroy releases every processor's resources and the bus's.
func (s *System) Destroy() error {
	for i := range s.processors {
		if err := s.processors[i].cache.Destroy(); err != nil {
			return err
		}
	}
	return s.bus.Destroy()
}

// Scheme reports the coherence scheme every processor in the system runs.
func (s *System) Scheme() protocol.Scheme {
	if len(s.processors) == 0 {
		return protocol.Scheme(-1)
	}
	return s.processors[0].coher.Scheme()
}

// Stats reports a short human-readable summary of the whole system.
func (s *System) Stats() string {
	out := fmt.Sprintf("System{processors=%d, scheme=%s}\n", len(s.processors), s.Scheme())
	if b, ok := s.bus.(interface{ Stats() string }); ok {
		out += "  " + b.Stats() + "\n"
	}
	for i := range s.processors {
		out += "  " + s.processors[i].coher.Stats() + "\n"
	}
	return out
}
