// Package session ties a foreign process, the base cache and a node tree
// together and drives the poll cycle.
package session

import (
	"context"
	"fmt"
	"log"
	"time"

	"github.com/carved4/go-eemem/pkg/chain"
	"github.com/carved4/go-eemem/pkg/config"
	"github.com/carved4/go-eemem/pkg/errors"
	"github.com/carved4/go-eemem/pkg/nodes"
	"github.com/carved4/go-eemem/pkg/remote"
	"github.com/carved4/go-eemem/pkg/resolve"
	"github.com/carved4/go-eemem/pkg/snapshot"
)

// Opener returns a handle to the target process.
type Opener func(cfg *config.Config) (remote.Process, error)

// OpenConfigured opens cfg.Process.PID when set, otherwise the first
// process named cfg.Process.Name.
func OpenConfigured(cfg *config.Config) (remote.Process, error) {
	if cfg.Process.PID > 0 {
		return remote.Open(cfg.Process.PID)
	}
	return remote.OpenByName(cfg.Process.Name)
}

type Option func(*Session)

func WithLogger(l *log.Logger) Option {
	return func(s *Session) { s.logger = l }
}

func WithOpener(open Opener) Option {
	return func(s *Session) { s.open = open }
}

// WithResolver replaces the PE export resolver used to find the base.
func WithResolver(r chain.Resolver) Option {
	return func(s *Session) { s.resolver = r }
}

// Session owns everything one inspector instance needs. All methods must be
// called from a single goroutine.
type Session struct {
	cfg    *config.Config
	logger *log.Logger
	open   Opener

	process    remote.Process
	resolver   chain.Resolver
	base       *chain.Base
	translator *chain.Translator

	root        *nodes.Class
	rootMemory  *snapshot.Snapshot
	rootAddress uint64
	cycles      uint64
}

func New(cfg *config.Config, root *nodes.Class, opts ...Option) (*Session, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if root == nil {
		return nil, fmt.Errorf("session: nil root class")
	}

	s := &Session{
		cfg:        cfg,
		logger:     log.Default(),
		open:       OpenConfigured,
		root:       root,
		rootMemory: snapshot.New(0),
	}
	for _, opt := range opts {
		opt(s)
	}

	if s.resolver == nil {
		r, err := resolve.NewResolver(cfg.Symbol, cfg.NameCacheSize)
		if err != nil {
			return nil, fmt.Errorf("session: %w", err)
		}
		r.Logger = nil
		if cfg.Verbose {
			r.Logger = s.logger
		}
		s.resolver = r
	}

	s.base = chain.NewBase(s.resolver)
	s.base.Logger = s.logger
	s.translator = chain.NewTranslator(s.base)
	return s, nil
}

// DefaultRoot is the tree used when no layout is configured: an expanded
// EE memory base register over 64 bytes.
func DefaultRoot() *nodes.Class {
	reg := nodes.NewBaseRegister(nil)
	reg.SetExpanded(true)

	root := nodes.NewClass("PCSX2")
	_ = root.Add(reg)
	return root
}

// Attach opens the target. Under the reattach policy the cached base is
// dropped first.
func (s *Session) Attach() error {
	if s.process != nil {
		return fmt.Errorf("session: already attached to pid %d", s.process.PID())
	}

	p, err := s.open(s.cfg)
	if err != nil {
		return fmt.Errorf("session: attach: %w", err)
	}

	if s.cfg.BasePolicy == config.Reattach {
		s.base.Reset()
	}

	s.process = p
	s.rootAddress = s.cfg.RootAddress
	if s.rootAddress == 0 {
		if mod, err := remote.MainModule(p); err == nil {
			s.rootAddress = mod.Start
		} else {
			s.logf("session: no root address: %v", err)
		}
	}

	s.logf("session: attached to %s (pid %d), root at 0x%x", p.Name(), p.PID(), s.rootAddress)
	return nil
}

// Detach closes the target handle. Node trees and their snapshots are kept.
func (s *Session) Detach() error {
	if s.process == nil {
		return nil
	}

	p := s.process
	s.process = nil
	if s.cfg.BasePolicy == config.Reattach {
		s.base.Reset()
	}

	s.logf("session: detached from pid %d after %d cycles", p.PID(), s.cycles)
	return p.Close()
}

// Reattach detaches and attaches again, for a target that restarted.
func (s *Session) Reattach() error {
	if err := s.Detach(); err != nil {
		s.logf("session: close: %v", err)
	}
	return s.Attach()
}

// ResetBase drops the cached base so the next cycle resolves it again. It is
// how a kept base is refreshed when the target reallocated EE memory.
func (s *Session) ResetBase() {
	s.base.Reset()
}

// ResolveBase returns the EE memory base, resolving it if needed.
func (s *Session) ResolveBase() (uint64, error) {
	if s.process == nil {
		return 0, errors.Newf(errors.ForeignReadFailed, "resolve base", "not attached")
	}
	return s.base.Address(s.process)
}

// Poll runs one cycle over the whole tree. Failures show up in the rows;
// Poll itself never fails.
func (s *Session) Poll() nodes.Row {
	s.cycles++

	if s.process == nil || !s.process.IsValid() {
		return nodes.Row{
			Kind:     nodes.KindClass,
			Name:     s.root.Name(),
			State:    nodes.Invalid,
			Expanded: true,
			Err:      errors.Newf(errors.ForeignReadFailed, "poll", "not attached"),
		}
	}

	refreshErr := s.rootMemory.Refresh(s.process, s.rootAddress, s.root.MemorySize())

	ctx := &nodes.Context{
		Process:    s.process,
		Translator: s.translator,
		Logger:     s.logger,
		Address:    s.rootAddress,
		Memory:     s.rootMemory,
		MaxDepth:   s.cfg.MaxDepth,
	}
	row := s.root.Update(ctx)
	if refreshErr != nil {
		row.Err = refreshErr
	}
	return row
}

// Run polls at the configured interval until ctx is done, handing every
// cycle's rows to fn. Cycles run on the calling goroutine.
func (s *Session) Run(ctx context.Context, fn func(nodes.Row)) error {
	ticker := time.NewTicker(s.cfg.PollInterval)
	defer ticker.Stop()

	for {
		fn(s.Poll())

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
		}
	}
}

func (s *Session) Process() remote.Process { return s.process }

func (s *Session) Root() *nodes.Class { return s.root }

func (s *Session) SetRoot(root *nodes.Class) {
	if root != nil {
		s.root = root
	}
}

func (s *Session) Base() *chain.Base { return s.base }

func (s *Session) Cycles() uint64 { return s.cycles }

func (s *Session) logf(format string, args ...interface{}) {
	if s.logger != nil {
		s.logger.Printf(format, args...)
	}
}
