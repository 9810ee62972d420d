// Command cadss runs a small synthetic trace through a cadss.System and
// prints a summary, the same illustrative role SupraX.go's own Example
// plays for the CPU core this package's cache/coherence modules are
// styled after: not a full trace-driven CLI tool, a demonstration that
// the wiring holds together end to end.
package main

import (
	"fmt"
	"io"
	"os"

	"github.com/rs/zerolog"
	flag "github.com/spf13/pflag"

	"github.com/archsim/cadss"
	"github.com/archsim/cadss/cache"
	"github.com/archsim/cadss/coherence/protocol"
)

func schemeFromCode(code int) (protocol.Scheme, error) {
	switch code {
	case 0:
		return protocol.MI, nil
	case 1:
		return protocol.MSI, nil
	case 2:
		return protocol.MESI, nil
	case 3:
		return protocol.MOESI, nil
	case 4:
		return protocol.MESIF, nil
	default:
		return 0, fmt.Errorf("cadss: unsupported coherence scheme code %d", code)
	}
}

func main() {
	if err := run(os.Args[1:], os.Stdout, os.Stderr); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func run(args []string, stdout, stderr io.Writer) error {
	flagSet := flag.NewFlagSet("cadss", flag.ContinueOnError)
	flagSet.SetOutput(stderr)

	assoc := flagSet.IntP("assoc", "E", 4, "cache associativity")
	setBits := flagSet.IntP("set-bits", "s", 4, "set-index bit width (S = 2^s)")
	blockBits := flagSet.IntP("block-bits", "b", 6, "block-offset bit width (B = 2^b)")
	victim := flagSet.IntP("victim", "i", 0, "victim-cache entry count (0 disables)")
	rrpv := flagSet.IntP("rrpv", "R", -1, "RRPV bit width; negative selects LRU mode")
	schemeCode := flagSet.IntP("scheme", "c", 2, "coherence scheme: 0=MI 1=MSI 2=MESI 3=MOESI 4=MESIF")
	procCount := flagSet.IntP("processors", "n", 2, "processor count")
	verbose := flagSet.BoolP("verbose", "v", false, "enable debug logging")

	if err := flagSet.Parse(args); err != nil {
		return err
	}

	log := zerolog.Nop()
	if *verbose {
		log = zerolog.New(zerolog.ConsoleWriter{Out: stderr}).With().Timestamp().Logger()
	}

	scheme, err := schemeFromCode(*schemeCode)
	if err != nil {
		return err
	}

	cfg := cache.Config{E: *assoc, S: *setBits, B: *blockBits, V: *victim, R: *rrpv}
	sys, err := cadss.NewSystem(*procCount, cfg, scheme, log)
	if err != nil {
		return fmt.Errorf("cadss: building system: %w", err)
	}
	defer sys.Destroy()

	runSyntheticTrace(sys, *procCount)

	fmt.Fprint(stdout, sys.Stats())
	return sys.Finish(stdout)
}

// runSyntheticTrace drives a small interleaved access pattern across every
// processor: each touches a shared line, then a processor-private line,
// exercising both coherence fan-out and plain cache replacement without
// needing a real trace file.
func runSyntheticTrace(sys *cadss.System, procCount int) {
	const sharedLine = 0x1000
	pending := 0

	complete := func(int, uint64) { pending-- }

	for p := 0; p < procCount; p++ {
		op := cache.Op{Kind: cache.LOAD, MemAddress: sharedLine}
		if p%2 == 1 {
			op.Kind = cache.STORE
		}
		pending++
		_ = sys.MemoryRequest(p, op, uint64(p), complete)

		privateLine := uint64(0x2000 + p*0x100)
		pending++
		_ = sys.MemoryRequest(p, cache.Op{Kind: cache.LOAD, MemAddress: privateLine}, uint64(p), complete)
	}

	for i := 0; i < 10_000 && pending > 0; i++ {
		sys.Tick()
	}
}
