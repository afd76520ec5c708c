package eemem

import (
	"io"
	"log"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/carved4/go-eemem/pkg/config"
	"github.com/carved4/go-eemem/pkg/nodes"
	"github.com/carved4/go-eemem/pkg/remote"
	"github.com/carved4/go-eemem/pkg/session"
)

func TestLayoutFileRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "layout.yaml")

	root := session.DefaultRoot()
	require.NoError(t, SaveLayoutFile(path, root))

	loaded, err := LoadLayoutFile(path)
	require.NoError(t, err)
	require.Equal(t, "PCSX2", loaded.Name())
	reg, ok := loaded.Children()[0].(*nodes.BaseRegister)
	require.True(t, ok)
	require.True(t, reg.Expanded())
	require.Equal(t, 64, reg.Inner().MemorySize())

	_, err = LoadLayoutFile(filepath.Join(t.TempDir(), "missing.yaml"))
	require.Error(t, err)
}

func TestAttachUsesLayout(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "layout.yaml")
	require.NoError(t, SaveLayoutFile(path, session.DefaultRoot()))

	cfg := config.Default()
	cfg.Layout = path
	p := remote.NewMemory("pcsx2.exe", 3)

	s, err := Attach(cfg,
		session.WithLogger(log.New(io.Discard, "", 0)),
		session.WithOpener(func(*config.Config) (remote.Process, error) { return p, nil }))
	require.NoError(t, err)
	require.Equal(t, "PCSX2", s.Root().Name())
	require.Equal(t, p, s.Process())

	cfg.Layout = filepath.Join(dir, "missing.yaml")
	_, err = Attach(cfg)
	require.Error(t, err)
}
