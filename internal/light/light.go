// Package light defines the capability contract shared by every vendor
// integration, the cached per-device state, and identity helpers.
package light

import (
	"context"
	"fmt"
	"strings"
	"sync"
)

// Family names used as the id prefix
const (
	FamilyHue   = "hue"
	FamilyKasa  = "kasa"
	FamilyGovee = "govee"
)

// Light is a handle onto one controllable device.
//
// Accessors read cached state and never block. Mutators perform I/O and
// update the cache only after the device call returned successfully; on
// error, or if ctx is cancelled first, the cache is left unchanged.
type Light interface {
	ID() string
	Name() string
	IsOn() bool
	SupportsColor() bool
	Red() uint8
	Green() uint8
	Blue() uint8
	Brightness() uint8

	SetOn(ctx context.Context, on bool) error
	SetColor(ctx context.Context, r, g, b uint8) error
	SetBrightness(ctx context.Context, pct uint8) error
}

// Snapshot is a point-in-time copy of a light's cached attributes
type Snapshot struct {
	ID            string `json:"id"`
	Name          string `json:"name"`
	On            bool   `json:"on"`
	Brightness    uint8  `json:"brightness"`
	Red           uint8  `json:"red"`
	Green         uint8  `json:"green"`
	Blue          uint8  `json:"blue"`
	SupportsColor bool   `json:"supports_color"`
	Address       string `json:"address,omitempty"`
}

// Addresser is implemented by lights that know the network address they are reached on
type Addresser interface {
	Address() string
}

// TakeSnapshot copies the cached attributes of l
func TakeSnapshot(l Light) Snapshot {
	return Snapshot{
		ID:            l.ID(),
		Name:          l.Name(),
		On:            l.IsOn(),
		Brightness:    l.Brightness(),
		Red:           l.Red(),
		Green:         l.Green(),
		Blue:          l.Blue(),
		SupportsColor: l.SupportsColor(),
		Address:       AddressOf(l),
	}
}

// AddressOf returns the address of l, or "" if it does not report one
func AddressOf(l Light) string {
	if a, ok := l.(Addresser); ok {
		return a.Address()
	}
	return ""
}

// Initial holds the device values a State starts from
type Initial struct {
	On         bool
	Brightness uint8
	Red        uint8
	Green      uint8
	Blue       uint8
}

// State is the cache embedded by integration light types.
// It provides every accessor of Light and the store methods the mutators
// call after a successful device round trip.
type State struct {
	id            string
	name          string
	supportsColor bool

	mu         sync.RWMutex
	on         bool
	brightness uint8
	red        uint8
	green      uint8
	blue       uint8
}

// NewState builds a cache from initial device values.
// Brightness is clamped to 100.
func NewState(family, vendorID, name string, supportsColor bool, initial Initial) *State {
	return &State{
		id:            QualifiedID(family, vendorID),
		name:          name,
		supportsColor: supportsColor,
		on:            initial.On,
		brightness:    min(initial.Brightness, MaxBrightness),
		red:           initial.Red,
		green:         initial.Green,
		blue:          initial.Blue,
	}
}

func (s *State) ID() string          { return s.id }
func (s *State) Name() string        { return s.name }
func (s *State) SupportsColor() bool { return s.supportsColor }

func (s *State) IsOn() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.on
}

func (s *State) Brightness() uint8 {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.brightness
}

func (s *State) Red() uint8 {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.red
}

func (s *State) Green() uint8 {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.green
}

func (s *State) Blue() uint8 {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.blue
}

// StoreOn records a successfully commanded power state
func (s *State) StoreOn(on bool) {
	s.mu.Lock()
	s.on = on
	s.mu.Unlock()
}

// StoreBrightness records a successfully commanded brightness
func (s *State) StoreBrightness(pct uint8) {
	s.mu.Lock()
	s.brightness = min(pct, MaxBrightness)
	s.mu.Unlock()
}

// StoreColor records a successfully commanded color
func (s *State) StoreColor(r, g, b uint8) {
	s.mu.Lock()
	s.red, s.green, s.blue = r, g, b
	s.mu.Unlock()
}

// String implements fmt.Stringer
func (s *State) String() string {
	return fmt.Sprintf("Light: %s (%s)", s.name, s.id)
}

// MaxBrightness is the upper bound of the brightness percentage
const MaxBrightness uint8 = 100

// CheckBrightness rejects percentages above MaxBrightness
func CheckBrightness(pct uint8) error {
	if pct > MaxBrightness {
		return fmt.Errorf("%w: brightness %d not in [0, %d]", ErrOutOfRange, pct, MaxBrightness)
	}
	return nil
}

// QualifiedID builds "<family>::<vendor-id>"
func QualifiedID(family, vendorID string) string {
	return family + "::" + vendorID
}

// Family returns the family prefix of a qualified id, or "" if there is none
func Family(id string) string {
	family, _, ok := strings.Cut(id, "::")
	if !ok {
		return ""
	}
	return family
}

// Equal reports whether two handles refer to the same device
func Equal(a, b Light) bool {
	if a == nil || b == nil {
		return a == b
	}
	return a.ID() == b.ID()
}

// Describe renders "Light: <name> (<id>)" for any Light
func Describe(l Light) string {
	return fmt.Sprintf("Light: %s (%s)", l.Name(), l.ID())
}
