package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"time"

	"github.com/carved4/go-eemem"
	"github.com/carved4/go-eemem/pkg/config"
	"github.com/carved4/go-eemem/pkg/nodes"
	"github.com/carved4/go-eemem/pkg/remote"
	"github.com/carved4/go-eemem/pkg/resolve"
)

// Smoke tests against a running emulator. Start PCSX2 with a game loaded,
// then run: go run ./test -name pcsx2-qt.exe
func main() {
	name := flag.String("name", config.Default().Process.Name, "emulator process name")
	flag.Parse()

	fmt.Println("=== Testing go-eemem against a live target ===")

	p, err := remote.OpenByName(*name)
	if err != nil {
		fmt.Printf("FAILED: open %s: %v\n", *name, err)
		os.Exit(1)
	}
	defer p.Close()

	mod := testMainModule(p)
	testModuleHeader(p, mod)
	base := testResolveBase(p)
	testResolveIsStable(p, base)
	testListExports(p, mod)
	testSessionPoll(*name)

	fmt.Println("\n=== All tests completed ===")
}

func testMainModule(p remote.Process) remote.Module {
	fmt.Print("Testing MainModule... ")
	mod, err := remote.MainModule(p)
	if err != nil {
		fmt.Printf("FAILED: %v\n", err)
		os.Exit(1)
	}
	fmt.Printf("PASSED: %s\n", mod)
	return mod
}

func testModuleHeader(p remote.Process, mod remote.Module) {
	fmt.Print("Testing ParseModuleHeader... ")
	hdr, err := resolve.ParseModuleHeader(p, mod.Start)
	if err != nil {
		fmt.Printf("FAILED: %v\n", err)
		return
	}
	exports := hdr.DataDirectories[0]
	if exports.VirtualAddress == 0 {
		fmt.Printf("FAILED: main module has no export directory\n")
		return
	}
	fmt.Printf("PASSED: magic 0x%x, exports at RVA 0x%x (%d bytes)\n", hdr.Magic, exports.VirtualAddress, exports.Size)
}

func testResolveBase(p remote.Process) uint64 {
	fmt.Print("Testing Resolve EEmem... ")
	r, err := resolve.NewResolver(resolve.DefaultSymbol, 0)
	if err != nil {
		fmt.Printf("FAILED: %v\n", err)
		return 0
	}
	r.Logger = nil

	base, err := r.Resolve(p)
	if err != nil {
		fmt.Printf("FAILED: %v\n", err)
		return 0
	}
	fmt.Printf("PASSED: EEmem = 0x%X\n", base)
	return base
}

func testResolveIsStable(p remote.Process, want uint64) {
	fmt.Print("Testing repeated resolution... ")
	if want == 0 {
		fmt.Println("SKIPPED: no base")
		return
	}

	r, _ := resolve.NewResolver(resolve.DefaultSymbol, 0)
	r.Logger = nil
	for i := 0; i < 100; i++ {
		got, err := r.Resolve(p)
		if err != nil || got != want {
			fmt.Printf("FAILED: iteration %d got 0x%X, err %v\n", i, got, err)
			return
		}
	}
	fmt.Println("PASSED: 100 identical results")
}

func testListExports(p remote.Process, mod remote.Module) {
	fmt.Print("Testing ListExports... ")
	exports, err := eemem.ListExports(p, mod)
	if err != nil {
		fmt.Printf("FAILED: %v\n", err)
		return
	}
	for _, e := range exports {
		if e.Name == resolve.DefaultSymbol {
			fmt.Printf("PASSED: %d exports, %s at 0x%X\n", len(exports), e.Name, e.Address)
			return
		}
	}
	fmt.Printf("FAILED: %s not among %d exports\n", resolve.DefaultSymbol, len(exports))
}

func testSessionPoll(name string) {
	fmt.Print("Testing session poll... ")
	cfg := config.Default()
	cfg.Process.Name = name
	cfg.PollInterval = 50 * time.Millisecond

	s, err := eemem.Attach(cfg)
	if err != nil {
		fmt.Printf("FAILED: %v\n", err)
		return
	}
	defer s.Detach()

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()

	fresh := 0
	_ = s.Run(ctx, func(row nodes.Row) {
		if len(row.Children) > 0 && row.Children[0].State == nodes.SnapshotFresh {
			fresh++
		}
	})
	if fresh == 0 {
		fmt.Printf("FAILED: no fresh cycles in %d\n", s.Cycles())
		return
	}
	fmt.Printf("PASSED: %d of %d cycles fresh\n", fresh, s.Cycles())
}
