package main

import (
	"errors"
	"fmt"
	"math/bits"
	"sort"
	"strings"
	"sync/atomic"
)

// CommandKind is what a remote key means to the controller.
type CommandKind int

const (
	// NoMatch is any frame the keymap does not know. It is dropped silently.
	NoMatch CommandKind = iota
	VolumeUp
	VolumeDown
	// SourceNext cycles the DAC input. Only produced when a keymap binds it.
	SourceNext
	// Repeat is a protocol-level "key still held" frame carrying no key code
	// (NEC repeat bursts, evdev autorepeat). The debouncer resolves it.
	Repeat
)

func (k CommandKind) String() string {
	switch k {
	case NoMatch:
		return "no_match"
	case VolumeUp:
		return "volume_up"
	case VolumeDown:
		return "volume_down"
	case SourceNext:
		return "source_next"
	case Repeat:
		return "repeat"
	default:
		return fmt.Sprintf("CommandKind(%d)", int(k))
	}
}

// repeatable reports whether holding the key should keep producing commands.
func (k CommandKind) repeatable() bool {
	return k == VolumeUp || k == VolumeDown
}

func parseCommandKind(s string) (CommandKind, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "volume_up", "up":
		return VolumeUp, nil
	case "volume_down", "down":
		return VolumeDown, nil
	case "source_next", "source":
		return SourceNext, nil
	default:
		return NoMatch, fmt.Errorf("unknown command %q", s)
	}
}

// RemoteFamily identifies the physical remote a code belongs to.
type RemoteFamily int

const (
	FamilyGeneric RemoteFamily = iota
	// FamilySony remotes send a fixed code per key.
	FamilySony
	// FamilyApple remotes vary the low-order bits between presses.
	FamilyApple
)

func (f RemoteFamily) String() string {
	switch f {
	case FamilySony:
		return "sony"
	case FamilyApple:
		return "apple"
	default:
		return "generic"
	}
}

func parseRemoteFamily(s string) (RemoteFamily, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "generic":
		return FamilyGeneric, nil
	case "sony":
		return FamilySony, nil
	case "apple":
		return FamilyApple, nil
	default:
		return FamilyGeneric, fmt.Errorf("unknown remote family %q", s)
	}
}

// IRProtocol is the line encoding a frame was received with.
type IRProtocol int

const (
	// ProtocolUnknown frames (evdev scancodes, IPC) match entries of any protocol.
	ProtocolUnknown IRProtocol = iota
	ProtocolNEC
	ProtocolSony
)

func (p IRProtocol) String() string {
	switch p {
	case ProtocolNEC:
		return "nec"
	case ProtocolSony:
		return "sony"
	default:
		return "unknown"
	}
}

func parseIRProtocol(s string) (IRProtocol, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "unknown", "any":
		return ProtocolUnknown, nil
	case "nec", "apple":
		return ProtocolNEC, nil
	case "sony", "sirc":
		return ProtocolSony, nil
	default:
		return ProtocolUnknown, fmt.Errorf("unknown IR protocol %q", s)
	}
}

// IRFrame is one decoded IR transmission, before keymap lookup.
type IRFrame struct {
	Code     uint32
	Protocol IRProtocol
	// Repeat marks a "still held" frame with no code of its own.
	Repeat bool
}

// RemoteCommand is the decoder output.
type RemoteCommand struct {
	Kind   CommandKind
	Family RemoteFamily
	Code   uint32
}

// KeymapEntry binds a code (under a mask) to a command.
type KeymapEntry struct {
	Name     string
	Command  CommandKind
	Family   RemoteFamily
	Protocol IRProtocol
	Code     uint32
	Mask     uint32
}

func (e KeymapEntry) matches(f IRFrame) bool {
	if e.Protocol != ProtocolUnknown && f.Protocol != ProtocolUnknown && e.Protocol != f.Protocol {
		return false
	}
	return f.Code&e.Mask == e.Code&e.Mask
}

// Keymap is an immutable, ordered set of entries. More specific masks are
// tried first so an exact Sony code can never be shadowed by an Apple prefix.
type Keymap struct {
	entries []KeymapEntry
}

// NewKeymap validates entries and returns a keymap. Two entries that accept the
// same code with different commands are rejected.
func NewKeymap(entries []KeymapEntry) (*Keymap, error) {
	out := make([]KeymapEntry, 0, len(entries))
	for i, e := range entries {
		if e.Mask == 0 {
			return nil, fmt.Errorf("keymap entry %d (%s): mask must not be zero", i, e.Name)
		}
		if e.Command == NoMatch || e.Command == Repeat {
			return nil, fmt.Errorf("keymap entry %d (%s): command %s cannot be bound", i, e.Name, e.Command)
		}
		for _, prev := range out {
			if prev.Mask == e.Mask && prev.Code&prev.Mask == e.Code&e.Mask &&
				protocolsOverlap(prev.Protocol, e.Protocol) && prev.Command != e.Command {
				return nil, fmt.Errorf("keymap entry %d (%s): code 0x%08X conflicts with %s", i, e.Name, e.Code, prev.Name)
			}
		}
		out = append(out, e)
	}
	sort.SliceStable(out, func(i, j int) bool {
		return bits.OnesCount32(out[i].Mask) > bits.OnesCount32(out[j].Mask)
	})
	return &Keymap{entries: out}, nil
}

func protocolsOverlap(a, b IRProtocol) bool {
	return a == ProtocolUnknown || b == ProtocolUnknown || a == b
}

// DefaultKeymap binds the Sony and Apple volume keys the DAC shipped with.
func DefaultKeymap() *Keymap {
	k, err := NewKeymap([]KeymapEntry{
		{Name: "UP_SONY", Command: VolumeUp, Family: FamilySony, Protocol: ProtocolSony, Code: codeSonyVolumeUp, Mask: maskExact},
		{Name: "DOWN_SONY", Command: VolumeDown, Family: FamilySony, Protocol: ProtocolSony, Code: codeSonyVolumeDown, Mask: maskExact},
		{Name: "UP_APPLE", Command: VolumeUp, Family: FamilyApple, Protocol: ProtocolNEC, Code: codeAppleVolumeUp, Mask: maskAppleStable},
		{Name: "DOWN_APPLE", Command: VolumeDown, Family: FamilyApple, Protocol: ProtocolNEC, Code: codeAppleVolumeDown, Mask: maskAppleStable},
	})
	if err != nil {
		panic(err)
	}
	return k
}

// Entries returns a copy of the entries in match order.
func (k *Keymap) Entries() []KeymapEntry {
	return append([]KeymapEntry(nil), k.entries...)
}

// Lookup returns the command for a frame, or NoMatch.
func (k *Keymap) Lookup(f IRFrame) RemoteCommand {
	for _, e := range k.entries {
		if e.matches(f) {
			return RemoteCommand{Kind: e.Command, Family: e.Family, Code: f.Code}
		}
	}
	return RemoteCommand{Kind: NoMatch, Code: f.Code}
}

// Decoder maps frames to commands. The keymap can be swapped at runtime
// (hot reload) while capture goroutines keep decoding.
type Decoder struct {
	keymap atomic.Pointer[Keymap]
}

func NewDecoder(k *Keymap) *Decoder {
	if k == nil {
		k = DefaultKeymap()
	}
	d := &Decoder{}
	d.keymap.Store(k)
	return d
}

func (d *Decoder) SetKeymap(k *Keymap) error {
	if k == nil {
		return errors.New("nil keymap")
	}
	d.keymap.Store(k)
	return nil
}

func (d *Decoder) Keymap() *Keymap { return d.keymap.Load() }

// Decode classifies a frame. Repeat frames are passed through as Repeat
// without consulting the keymap.
func (d *Decoder) Decode(f IRFrame) RemoteCommand {
	if f.Repeat {
		return RemoteCommand{Kind: Repeat, Code: f.Code}
	}
	return d.keymap.Load().Lookup(f)
}
