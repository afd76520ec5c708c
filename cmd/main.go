package main

import (
	"bufio"
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"time"

	"github.com/carved4/go-eemem"
	"github.com/carved4/go-eemem/pkg/config"
	"github.com/carved4/go-eemem/pkg/nodes"
	"github.com/carved4/go-eemem/pkg/remote"
	"github.com/carved4/go-eemem/pkg/session"
)

func main() {
	configPath := flag.String("config", "", "YAML config file")
	name := flag.String("name", "", "target process name (overrides config)")
	pid := flag.Int("pid", 0, "target process id (overrides name)")
	layout := flag.String("layout", "", "YAML layout file (overrides config)")
	interval := flag.Duration("interval", 0, "poll interval (overrides config)")
	policy := flag.String("policy", "", "base policy on reattach: reattach or keep")
	verbose := flag.Bool("v", false, "verbose resolver logging")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Fatal(err)
	}
	if *name != "" {
		cfg.Process.Name = *name
	}
	if *pid > 0 {
		cfg.Process.PID = *pid
	}
	if *layout != "" {
		cfg.Layout = *layout
	}
	if *interval > 0 {
		cfg.PollInterval = *interval
	}
	if *policy != "" {
		cfg.BasePolicy = config.BasePolicy(*policy)
	}
	if *verbose {
		cfg.Verbose = true
	}
	if err := cfg.Validate(); err != nil {
		log.Fatal(err)
	}

	s, err := eemem.Attach(cfg)
	if err != nil {
		log.Fatal(err)
	}
	defer s.Detach()

	fmt.Printf("go-eemem attached to %s (pid %d)\n", s.Process().Name(), s.Process().PID())
	showMenu(s, cfg)
}

func showMenu(s *session.Session, cfg *config.Config) {
	scanner := bufio.NewScanner(os.Stdin)

	for {
		fmt.Println("\nchoose an option:")
		fmt.Println("1. resolve EEmem base")
		fmt.Println("2. poll tree once")
		fmt.Println("3. watch tree")
		fmt.Println("4. expand/collapse node")
		fmt.Println("5. list main module exports")
		fmt.Println("6. generate c++ classes")
		fmt.Println("7. save layout")
		fmt.Println("8. reattach")
		fmt.Println("9. reset EEmem base")
		fmt.Println("10. exit")
		fmt.Print("\nenter choice (1-10): ")

		if !scanner.Scan() {
			break
		}

		switch strings.TrimSpace(scanner.Text()) {
		case "1":
			resolveBase(s)
		case "2":
			printTree(os.Stdout, s.Poll())
		case "3":
			watch(s, scanner)
		case "4":
			toggle(s, scanner)
		case "5":
			listExports(s)
		case "6":
			generateCpp(s)
		case "7":
			saveLayout(s, cfg, scanner)
		case "8":
			if err := s.Reattach(); err != nil {
				fmt.Printf("error: %v\n", err)
			}
		case "9":
			s.ResetBase()
			fmt.Println("EEmem base will be resolved again on the next poll.")
		case "10":
			fmt.Println("goodbye!")
			return
		default:
			fmt.Println("invalid choice. please enter a number from 1 to 10.")
		}
	}
}

func resolveBase(s *session.Session) {
	base, err := s.ResolveBase()
	if err != nil {
		fmt.Printf("error: %v\n", err)
		return
	}
	fmt.Printf("EEmem base: 0x%X\n", base)
}

func watch(s *session.Session, scanner *bufio.Scanner) {
	fmt.Print("number of cycles (empty runs until ctrl-c): ")
	if !scanner.Scan() {
		return
	}

	limit, _ := strconv.Atoi(strings.TrimSpace(scanner.Text()))

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	n := 0
	start := time.Now()
	_ = s.Run(ctx, func(row nodes.Row) {
		n++
		fmt.Printf("\n--- cycle %d (%s) ---\n", n, time.Since(start).Round(time.Millisecond))
		printTree(os.Stdout, row)
		if limit > 0 && n >= limit {
			cancel()
		}
	})
}

// toggle flips the expand state of the node at a dotted child-index path,
// e.g. "0.1" for the second field inside the first field's inner class.
func toggle(s *session.Session, scanner *bufio.Scanner) {
	fmt.Print("node path (e.g. 0.1): ")
	if !scanner.Scan() {
		return
	}

	n, err := findNode(s.Root(), strings.TrimSpace(scanner.Text()))
	if err != nil {
		fmt.Printf("error: %v\n", err)
		return
	}

	e, ok := n.(interface {
		Expanded() bool
		SetExpanded(bool)
	})
	if !ok {
		fmt.Printf("%s %q cannot be expanded\n", n.Kind(), n.Name())
		return
	}
	e.SetExpanded(!e.Expanded())
	fmt.Printf("%s %q expanded: %v\n", n.Kind(), n.Name(), e.Expanded())
}

func listExports(s *session.Session) {
	mod, err := remote.MainModule(s.Process())
	if err != nil {
		fmt.Printf("error: %v\n", err)
		return
	}

	exports, err := eemem.ListExports(s.Process(), mod)
	if err != nil {
		fmt.Printf("error: %v\n", err)
		return
	}

	fmt.Printf("%s: %d exports\n", mod, len(exports))
	for _, e := range exports {
		fmt.Printf("  %5d  0x%X  %s\n", e.Ordinal, e.Address, e.Name)
	}
}

func generateCpp(s *session.Session) {
	out, err := eemem.GenerateCpp(s.Root())
	if err != nil {
		fmt.Printf("error: %v\n", err)
		return
	}
	fmt.Print(out)
}

func saveLayout(s *session.Session, cfg *config.Config, scanner *bufio.Scanner) {
	fmt.Printf("path [%s]: ", cfg.Layout)
	if !scanner.Scan() {
		return
	}

	path := strings.TrimSpace(scanner.Text())
	if path == "" {
		path = cfg.Layout
	}
	if path == "" {
		fmt.Println("please enter a path.")
		return
	}

	if err := eemem.SaveLayoutFile(path, s.Root()); err != nil {
		fmt.Printf("error: %v\n", err)
		return
	}
	fmt.Printf("layout saved to %s\n", path)
}
