// Package serialize stores node kinds and tree layouts. Resolved addresses
// and snapshots are never written.
package serialize

import (
	"encoding/xml"
	"fmt"
	"log"

	"github.com/carved4/go-eemem/pkg/nodes"
)

// Stable type identifiers. The two PCSX2 ids match the ones existing
// ReClass.NET project files use.
const (
	TypeClass         = "Class"
	TypeHex           = "Hex"
	TypeUInt32        = "UInt32"
	TypeFloat         = "Float"
	TypeClassInstance = "ClassInstance"
	TypeBaseRegister  = "PCSX2::EEMem"
	TypeGuestPointer  = "PCSX2::PS2Ptr"
)

// TypeID returns the stable identifier of n's kind.
func TypeID(n nodes.Node) string {
	switch n.(type) {
	case *nodes.Class:
		return TypeClass
	case *nodes.Hex:
		return TypeHex
	case *nodes.UInt32:
		return TypeUInt32
	case *nodes.Float:
		return TypeFloat
	case *nodes.ClassInstance:
		return TypeClassInstance
	case *nodes.BaseRegister:
		return TypeBaseRegister
	case *nodes.GuestPointer:
		return TypeGuestPointer
	}
	panic(fmt.Sprintf("serialize: unhandled node kind %s", n.Kind()))
}

// Element is the XML form of a plugin node inside a ReClass.NET class.
type Element struct {
	XMLName   xml.Name `xml:"node"`
	Type      string   `xml:"type,attr"`
	Name      string   `xml:"name,attr,omitempty"`
	Reference string   `xml:"reference,attr,omitempty"`
}

// NodeSerializer converts the PCSX2 node kinds to and from Elements. Other
// kinds belong to the host and are refused.
type NodeSerializer struct {
	Logger *log.Logger
}

func NewNodeSerializer() *NodeSerializer {
	return &NodeSerializer{Logger: log.Default()}
}

func pluginType(typ string) bool {
	return typ == TypeBaseRegister || typ == TypeGuestPointer
}

func (s *NodeSerializer) CanHandleNode(n nodes.Node) bool {
	return n != nil && pluginType(TypeID(n))
}

func (s *NodeSerializer) CanHandleElement(e *Element) bool {
	return e != nil && pluginType(e.Type)
}

// ElementFromNode returns the element for a plugin node. The inner class is
// stored by name in Reference.
func (s *NodeSerializer) ElementFromNode(n nodes.Node) (*Element, error) {
	if n == nil {
		return nil, fmt.Errorf("nil node")
	}
	if !s.CanHandleNode(n) {
		err := fmt.Errorf("unhandled PS2 node type: %s", n.Kind())
		s.logf("serialize: %v", err)
		return nil, err
	}

	e := &Element{Type: TypeID(n), Name: n.Name()}
	if inner := innerOf(n); inner != nil {
		e.Reference = inner.Name()
	}
	return e, nil
}

// NodeFromElement builds a node from e. classes resolves Reference; a
// missing or unknown reference leaves the node with its default inner class.
func (s *NodeSerializer) NodeFromElement(e *Element, classes map[string]*nodes.Class) (nodes.Node, error) {
	if e == nil || !s.CanHandleElement(e) {
		typ := ""
		if e != nil {
			typ = e.Type
		}
		err := fmt.Errorf("unknown PS2 node type: %q", typ)
		s.logf("serialize: %v", err)
		return nil, err
	}

	inner := classes[e.Reference]
	if e.Reference != "" && inner == nil {
		s.logf("serialize: %s %q references unknown class %q", e.Type, e.Name, e.Reference)
	}

	var n nodes.Node
	if e.Type == TypeBaseRegister {
		n = nodes.NewBaseRegister(inner)
	} else {
		n = nodes.NewGuestPointer(e.Name, inner)
	}
	if e.Name != "" {
		n.SetName(e.Name)
	}
	return n, nil
}

// MarshalElement encodes e as a single XML element.
func MarshalElement(e *Element) ([]byte, error) {
	return xml.Marshal(e)
}

func UnmarshalElement(data []byte) (*Element, error) {
	var e Element
	if err := xml.Unmarshal(data, &e); err != nil {
		return nil, fmt.Errorf("decode node element: %w", err)
	}
	return &e, nil
}

func (s *NodeSerializer) logf(format string, args ...interface{}) {
	if s.Logger != nil {
		s.Logger.Printf(format, args...)
	}
}

func innerOf(n nodes.Node) *nodes.Class {
	switch n := n.(type) {
	case *nodes.ClassInstance:
		return n.Inner()
	case *nodes.BaseRegister:
		return n.Inner()
	case *nodes.GuestPointer:
		return n.Inner()
	}
	return nil
}
