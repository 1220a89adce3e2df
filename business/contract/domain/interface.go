package domain

import (
	"fmt"
	"strings"

	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
)

// Interface is a named contract ABI.
type Interface struct {
	name string
	abi  abi.ABI
}

// Arg is one decoded event argument, in declaration order.
type Arg struct {
	Name    string
	Value   any
	Indexed bool
}

// ParseInterface parses a JSON ABI definition.
func ParseInterface(name, definition string) (*Interface, error) {
	parsed, err := abi.JSON(strings.NewReader(definition))
	if err != nil {
		return nil, fmt.Errorf("parse %s abi: %w", name, err)
	}
	return &Interface{name: name, abi: parsed}, nil
}

// MustParseInterface is ParseInterface for package-level definitions.
func MustParseInterface(name, definition string) *Interface {
	iface, err := ParseInterface(name, definition)
	if err != nil {
		panic(err)
	}
	return iface
}

// Name returns the interface name.
func (i *Interface) Name() string {
	return i.name
}

// ABI returns the parsed definition.
func (i *Interface) ABI() *abi.ABI {
	return &i.abi
}

// Method looks up a method by name.
func (i *Interface) Method(name string) (abi.Method, bool) {
	m, ok := i.abi.Methods[name]
	return m, ok
}

// Event looks up an event by name.
func (i *Interface) Event(name string) (abi.Event, bool) {
	ev, ok := i.abi.Events[name]
	return ev, ok
}

// Compatible reports whether other exposes the same methods and events.
func (i *Interface) Compatible(other *Interface) bool {
	if i == other {
		return true
	}
	if other == nil || len(i.abi.Methods) != len(other.abi.Methods) || len(i.abi.Events) != len(other.abi.Events) {
		return false
	}
	for name, m := range i.abi.Methods {
		om, ok := other.abi.Methods[name]
		if !ok || string(m.ID) != string(om.ID) {
			return false
		}
	}
	for name, ev := range i.abi.Events {
		oev, ok := other.abi.Events[name]
		if !ok || ev.ID != oev.ID {
			return false
		}
	}
	return true
}

// DecodeLog decodes log as an event of this interface. Arguments keep the
// order of the event declaration.
func (i *Interface) DecodeLog(log types.Log) (abi.Event, []Arg, error) {
	if len(log.Topics) == 0 {
		return abi.Event{}, nil, fmt.Errorf("log has no topics")
	}
	ev, err := i.abi.EventByID(log.Topics[0])
	if err != nil {
		return abi.Event{}, nil, err
	}

	values := map[string]any{}
	indexed, nonIndexed := splitIndexed(ev.Inputs)
	if err := abi.ParseTopicsIntoMap(values, indexed, log.Topics[1:]); err != nil {
		return abi.Event{}, nil, fmt.Errorf("parse topics: %w", err)
	}
	if err := nonIndexed.UnpackIntoMap(values, log.Data); err != nil {
		return abi.Event{}, nil, fmt.Errorf("unpack data: %w", err)
	}

	args := make([]Arg, 0, len(ev.Inputs))
	for _, in := range ev.Inputs {
		args = append(args, Arg{Name: in.Name, Value: values[in.Name], Indexed: in.Indexed})
	}
	return *ev, args, nil
}

// Topic returns the topic0 hash of the named event.
func (i *Interface) Topic(event string) (common.Hash, bool) {
	ev, ok := i.abi.Events[event]
	if !ok {
		return common.Hash{}, false
	}
	return ev.ID, true
}

func splitIndexed(args abi.Arguments) (indexed abi.Arguments, nonIndexed abi.Arguments) {
	for _, arg := range args {
		if arg.Indexed {
			indexed = append(indexed, arg)
		} else {
			nonIndexed = append(nonIndexed, arg)
		}
	}
	return indexed, nonIndexed
}
