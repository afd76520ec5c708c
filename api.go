package eemem

import (
	"fmt"
	"os"

	"github.com/carved4/go-eemem/pkg/codegen"
	"github.com/carved4/go-eemem/pkg/config"
	"github.com/carved4/go-eemem/pkg/nodes"
	"github.com/carved4/go-eemem/pkg/remote"
	"github.com/carved4/go-eemem/pkg/resolve"
	"github.com/carved4/go-eemem/pkg/serialize"
	"github.com/carved4/go-eemem/pkg/session"
)

var OpenProcess = remote.Open
var OpenProcessByName = remote.OpenByName
var FindPID = remote.FindPID
var MainModule = remote.MainModule

var ParseModuleHeader = resolve.ParseModuleHeader
var ListExports = resolve.ListExports

var GenerateCpp = codegen.Generate
var LoadConfig = config.Load

// ResolveBase opens the process named processName and returns the value of
// symbol in its main module. An empty symbol means EEmem.
func ResolveBase(processName, symbol string) (uint64, error) {
	p, err := remote.OpenByName(processName)
	if err != nil {
		return 0, err
	}
	defer p.Close()

	r, err := resolve.NewResolver(symbol, 0)
	if err != nil {
		return 0, err
	}
	r.Logger = nil
	return r.Resolve(p)
}

// LoadLayoutFile reads a YAML layout from path.
func LoadLayoutFile(path string) (*nodes.Class, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open layout: %w", err)
	}
	defer f.Close()
	return serialize.LoadLayout(f)
}

// SaveLayoutFile writes the tree under root to path as YAML.
func SaveLayoutFile(path string, root *nodes.Class) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create layout: %w", err)
	}
	if err := serialize.SaveLayout(f, root); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}

// Attach builds a session for cfg, with the layout it names or the default
// tree, and attaches it to the target.
func Attach(cfg *config.Config, opts ...session.Option) (*session.Session, error) {
	root := session.DefaultRoot()
	if cfg.Layout != "" {
		var err error
		root, err = LoadLayoutFile(cfg.Layout)
		if err != nil {
			return nil, err
		}
	}

	s, err := session.New(cfg, root, opts...)
	if err != nil {
		return nil, err
	}
	if err := s.Attach(); err != nil {
		return nil, err
	}
	return s, nil
}
