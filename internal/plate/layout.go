package plate

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"sort"
	"strings"
	"sync"

	"gopkg.in/yaml.v3"
)

var (
	ErrUnknownLayout = errors.New("unknown plate layout")
	ErrInvalidLayout = errors.New("invalid plate layout")
)

// PositionTable is the data form of a PositionRule: explicit digit and letter
// indices, plus a class for every index at or past TailFrom.
type PositionTable struct {
	Digit    []int
	Letter   []int
	TailFrom int
	Tail     Class
}

// Rule compiles the table into a PositionRule.
func (t PositionTable) Rule() PositionRule {
	fixed := make(map[int]Class, len(t.Digit)+len(t.Letter))
	for _, i := range t.Digit {
		fixed[i] = ClassDigit
	}
	for _, i := range t.Letter {
		fixed[i] = ClassLetter
	}
	tailFrom, tail := t.TailFrom, t.Tail

	return func(i int) Class {
		if c, ok := fixed[i]; ok {
			return c
		}
		if tail != ClassNone && i >= tailFrom {
			return tail
		}
		return ClassNone
	}
}

// LayoutSpec is one entry of a layout file.
type LayoutSpec struct {
	Name            string            `yaml:"name"`
	DigitPositions  []int             `yaml:"digit_positions"`
	LetterPositions []int             `yaml:"letter_positions"`
	TailFrom        int               `yaml:"tail_from"`
	TailClass       string            `yaml:"tail_class"`
	DigitSwaps      map[string]string `yaml:"digit_swaps"`
	LetterSwaps     map[string]string `yaml:"letter_swaps"`
}

type layoutFile struct {
	Layouts []LayoutSpec `yaml:"layouts"`
}

// Build validates the entry and turns it into a Layout.
func (s LayoutSpec) Build() (Layout, error) {
	name := strings.TrimSpace(s.Name)
	if name == "" {
		return Layout{}, fmt.Errorf("%w: name is required", ErrInvalidLayout)
	}

	seen := make(map[int]Class)
	for _, positions := range []struct {
		list  []int
		class Class
	}{{s.DigitPositions, ClassDigit}, {s.LetterPositions, ClassLetter}} {
		for _, i := range positions.list {
			if i < 0 {
				return Layout{}, fmt.Errorf("%w: %s: negative position %d", ErrInvalidLayout, name, i)
			}
			if prev, ok := seen[i]; ok && prev != positions.class {
				return Layout{}, fmt.Errorf("%w: %s: position %d is both digit and letter", ErrInvalidLayout, name, i)
			}
			seen[i] = positions.class
		}
	}

	tail, err := parseClass(s.TailClass)
	if err != nil {
		return Layout{}, fmt.Errorf("%w: %s: %v", ErrInvalidLayout, name, err)
	}
	if s.TailFrom < 0 {
		return Layout{}, fmt.Errorf("%w: %s: negative tail_from", ErrInvalidLayout, name)
	}

	digitSwaps, err := parseSwaps(s.DigitSwaps, isDigit)
	if err != nil {
		return Layout{}, fmt.Errorf("%w: %s: digit_swaps: %v", ErrInvalidLayout, name, err)
	}
	letterSwaps, err := parseSwaps(s.LetterSwaps, isLetter)
	if err != nil {
		return Layout{}, fmt.Errorf("%w: %s: letter_swaps: %v", ErrInvalidLayout, name, err)
	}

	table := PositionTable{
		Digit:    s.DigitPositions,
		Letter:   s.LetterPositions,
		TailFrom: s.TailFrom,
		Tail:     tail,
	}
	return Layout{
		Name:            name,
		Rule:            table.Rule(),
		DigitSlotSwaps:  digitSwaps,
		LetterSlotSwaps: letterSwaps,
	}, nil
}

func parseClass(s string) (Class, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "none":
		return ClassNone, nil
	case "digit":
		return ClassDigit, nil
	case "letter":
		return ClassLetter, nil
	}
	return ClassNone, fmt.Errorf("unknown tail_class %q", s)
}

// parseSwaps keeps keys to single ASCII bytes of the class the slot checks,
// so a swap can never change the text length.
func parseSwaps(in map[string]string, keyOK func(byte) bool) (map[byte]byte, error) {
	out := make(map[byte]byte, len(in))
	for k, v := range in {
		if len(k) != 1 || len(v) != 1 {
			return nil, fmt.Errorf("%q -> %q: keys and values must be single ASCII characters", k, v)
		}
		if !keyOK(k[0]) {
			return nil, fmt.Errorf("%q never matches this slot class", k)
		}
		if v[0] >= 0x80 {
			return nil, fmt.Errorf("%q: replacement must be ASCII", v)
		}
		out[k[0]] = v[0]
	}
	return out, nil
}

// ParseLayouts decodes a YAML layout document. Unknown keys are rejected.
func ParseLayouts(data []byte) ([]Layout, error) {
	var f layoutFile
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(&f); err != nil && !errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("%w: %v", ErrInvalidLayout, err)
	}

	layouts := make([]Layout, 0, len(f.Layouts))
	names := make(map[string]bool, len(f.Layouts))
	for _, spec := range f.Layouts {
		l, err := spec.Build()
		if err != nil {
			return nil, err
		}
		if names[l.Name] {
			return nil, fmt.Errorf("%w: duplicate layout %q", ErrInvalidLayout, l.Name)
		}
		names[l.Name] = true
		layouts = append(layouts, l)
	}
	return layouts, nil
}

// LoadLayouts reads and parses a layout file.
func LoadLayouts(path string) ([]Layout, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read layout file %s: %w", path, err)
	}
	return ParseLayouts(data)
}

// Registry holds the layouts known to the process. The built-in default
// layout is always present unless a file overrides it by name.
type Registry struct {
	mu          sync.RWMutex
	layouts     map[string]Layout
	defaultName string
}

func NewRegistry(defaultName string) *Registry {
	if defaultName == "" {
		defaultName = DefaultLayout.Name
	}
	r := &Registry{defaultName: defaultName}
	r.layouts = map[string]Layout{DefaultLayout.Name: DefaultLayout}
	return r
}

// Replace swaps in a new set of layouts on top of the built-in one. A set
// that drops the registry default is rejected and the current set is kept.
func (r *Registry) Replace(layouts []Layout) error {
	next := map[string]Layout{DefaultLayout.Name: DefaultLayout}
	for _, l := range layouts {
		next[l.Name] = l
	}
	if _, ok := next[r.defaultName]; !ok {
		return fmt.Errorf("%w: default layout %q is not defined", ErrInvalidLayout, r.defaultName)
	}

	r.mu.Lock()
	r.layouts = next
	r.mu.Unlock()
	return nil
}

// LoadFile parses path and replaces the current set. On error the current set
// is kept.
func (r *Registry) LoadFile(path string) error {
	layouts, err := LoadLayouts(path)
	if err != nil {
		return err
	}
	return r.Replace(layouts)
}

// Get returns the layout with the given name; an empty name selects the
// registry default.
func (r *Registry) Get(name string) (Layout, error) {
	if name == "" {
		name = r.defaultName
	}

	r.mu.RLock()
	l, ok := r.layouts[name]
	r.mu.RUnlock()
	if !ok {
		return Layout{}, fmt.Errorf("%w: %s", ErrUnknownLayout, name)
	}
	return l, nil
}

func (r *Registry) DefaultName() string {
	return r.defaultName
}

// Names lists the registered layouts in sorted order.
func (r *Registry) Names() []string {
	r.mu.RLock()
	names := make([]string, 0, len(r.layouts))
	for name := range r.layouts {
		names = append(names, name)
	}
	r.mu.RUnlock()

	sort.Strings(names)
	return names
}
