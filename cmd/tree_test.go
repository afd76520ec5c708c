package main

import (
	"bytes"
	"fmt"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/carved4/go-eemem/pkg/errors"
	"github.com/carved4/go-eemem/pkg/nodes"
)

func TestPrintTree(t *testing.T) {
	row := nodes.Row{
		Kind:     nodes.KindClass,
		Name:     "PCSX2",
		Address:  0x140000000,
		Expanded: true,
		Children: []nodes.Row{
			{
				Kind:     nodes.KindBaseRegister,
				Name:     "EEMem",
				Address:  0x140000000,
				Value:    "0x20000000",
				Target:   0x20000000,
				Expanded: true,
				Children: []nodes.Row{
					{Kind: nodes.KindGuestPointer, Name: "player", Offset: 8, Address: 0x20000008, Value: "0x0", State: nodes.Invalid, Err: errors.New(errors.NullOrUnresolvedPointer)},
				},
			},
		},
	}

	var buf bytes.Buffer
	printTree(&buf, row)
	lines := strings.Split(strings.TrimRight(buf.String(), "\n"), "\n")
	require.Len(t, lines, 3)
	require.Equal(t, "    0000 000140000000 Class PCSX2", lines[0])
	require.Equal(t, "  [-] 0000 000140000000 EEMem EEMem = 0x20000000 -> 0x20000000", lines[1])
	require.Equal(t, "    [+] 0008 000020000008 PS2Ptr player = 0x0 [invalid: null or unresolved pointer]", lines[2])
}

func TestFindNode(t *testing.T) {
	player := nodes.NewClass("Player")
	hp := nodes.NewUInt32("hp")
	require.NoError(t, player.Add(hp))

	ee := nodes.NewClass("EE")
	ee.AddBytes(8)
	ptr := nodes.NewGuestPointer("player", player)
	require.NoError(t, ee.Add(ptr))

	root := nodes.NewClass("Root")
	reg := nodes.NewBaseRegister(ee)
	require.NoError(t, root.Add(reg))

	tests := []struct {
		path string
		want nodes.Node
		err  string
	}{
		{path: "0", want: reg},
		{path: "0.1", want: ptr},
		{path: "0.1.0", want: hp},
		{path: "", err: "empty path"},
		{path: "1", err: "no field 1"},
		{path: "0.x", err: `bad index "x"`},
		{path: "0.1.0.0", err: "no inner class"},
	}
	for _, tt := range tests {
		t.Run(fmt.Sprintf("%q", tt.path), func(t *testing.T) {
			got, err := findNode(root, tt.path)
			if tt.err != "" {
				require.ErrorContains(t, err, tt.err)
				return
			}
			require.NoError(t, err)
			require.Same(t, tt.want, got)
		})
	}
}
