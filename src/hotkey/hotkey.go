package hotkey

import (
	"errors"
	"fmt"
	"log"
	"strings"
	"sync"

	gohook "github.com/robotn/gohook"
)

// ErrInvalidHotkey is returned for combinations containing unknown keys.
var ErrInvalidHotkey = errors.New("invalid hotkey")

// Binding ties a combination such as "Ctrl+Alt+P" to an action.
type Binding struct {
	Name   string
	Combo  string
	Action func()
}

// Listener owns the global keyboard hook. Only one should be active per process.
type Listener struct {
	m        *matcher
	stopOnce sync.Once
	done     chan struct{}
}

// Listen parses every binding and starts the hook. Actions run on the hook
// goroutine and must return quickly.
func Listen(bindings ...Binding) (*Listener, error) {
	m, err := newMatcher(bindings)
	if err != nil {
		return nil, err
	}
	for _, b := range bindings {
		log.Printf("Hotkey listener configured for %s: %s", b.Name, b.Combo)
	}

	l := &Listener{m: m, done: make(chan struct{})}
	go l.run()
	return l, nil
}

func (l *Listener) run() {
	defer close(l.done)
	defer func() {
		if r := recover(); r != nil {
			log.Printf("PANIC in hotkey goroutine: %v", r)
		}
	}()

	evChan := gohook.Start()
	if evChan == nil {
		log.Printf("ERROR: gohook.Start() returned nil channel")
		return
	}
	for ev := range evChan {
		switch ev.Kind {
		case gohook.KeyDown:
			l.m.keyDown(ev.Rawcode)
		case gohook.KeyUp:
			l.m.keyUp(ev.Rawcode)
		}
	}
	log.Printf("Hotkey event channel closed")
}

// Stop ends the hook. Safe to call more than once.
func (l *Listener) Stop() {
	l.stopOnce.Do(gohook.End)
}

// Done is closed once the hook goroutine has exited.
func (l *Listener) Done() <-chan struct{} { return l.done }

type keyState struct {
	name     string
	rawcodes []uint16
	pressed  bool
}

type combo struct {
	binding Binding
	keys    []keyState
}

// matcher tracks key state for every binding. A combination fires once when
// its last key goes down and re-arms when any of its keys is released.
type matcher struct {
	mu     sync.Mutex
	combos []*combo
}

func newMatcher(bindings []Binding) (*matcher, error) {
	m := &matcher{}
	for _, b := range bindings {
		names := parseHotkey(b.Combo)
		if len(names) == 0 {
			return nil, fmt.Errorf("%w %q for %s: empty", ErrInvalidHotkey, b.Combo, b.Name)
		}
		c := &combo{binding: b}
		for _, name := range names {
			codes := keyNameToRawcodes(name)
			if len(codes) == 0 {
				return nil, fmt.Errorf("%w %q for %s: unknown key %q", ErrInvalidHotkey, b.Combo, b.Name, name)
			}
			c.keys = append(c.keys, keyState{name: name, rawcodes: codes})
		}
		m.combos = append(m.combos, c)
	}
	return m, nil
}

func (m *matcher) keyDown(raw uint16) {
	var fire []func()
	m.mu.Lock()
	for _, c := range m.combos {
		if !c.press(raw) {
			continue
		}
		if c.allPressed() {
			log.Printf("Hotkey %s (%s) activated", c.binding.Name, c.binding.Combo)
			c.reset()
			if c.binding.Action != nil {
				fire = append(fire, c.binding.Action)
			}
		}
	}
	m.mu.Unlock()

	for _, fn := range fire {
		fn()
	}
}

func (m *matcher) keyUp(raw uint16) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, c := range m.combos {
		for i := range c.keys {
			if c.keys[i].matches(raw) {
				c.keys[i].pressed = false
			}
		}
	}
}

func (c *combo) press(raw uint16) bool {
	hit := false
	for i := range c.keys {
		if c.keys[i].matches(raw) {
			c.keys[i].pressed = true
			hit = true
		}
	}
	return hit
}

func (c *combo) allPressed() bool {
	for i := range c.keys {
		if !c.keys[i].pressed {
			return false
		}
	}
	return true
}

func (c *combo) reset() {
	for i := range c.keys {
		c.keys[i].pressed = false
	}
}

func (k keyState) matches(raw uint16) bool {
	for _, r := range k.rawcodes {
		if r == raw {
			return true
		}
	}
	return false
}

// parseHotkey converts a hotkey string like "Ctrl+Alt+p" to normalized key names
func parseHotkey(hotkeyConfig string) []string {
	var keys []string
	for _, part := range strings.Split(strings.ToLower(hotkeyConfig), "+") {
		part = strings.TrimSpace(part)
		switch part {
		case "":
			continue
		case "control":
			keys = append(keys, "ctrl")
		case "win", "cmd", "super":
			keys = append(keys, "cmd")
		default:
			keys = append(keys, part)
		}
	}
	return keys
}

var specialKeys = map[string][]uint16{
	// modifiers: left and right variants
	"ctrl":  {162, 163},
	"alt":   {164, 165},
	"shift": {160, 161},
	"cmd":   {91, 92},

	"space":     {32},
	"enter":     {13},
	"return":    {13},
	"esc":       {27},
	"escape":    {27},
	"tab":       {9},
	"backspace": {8},
	"delete":    {46},
	"del":       {46},
	"insert":    {45},
	"ins":       {45},
	"home":      {36},
	"end":       {35},
	"pageup":    {33},
	"pgup":      {33},
	"pagedown":  {34},
	"pgdn":      {34},
	"pause":     {19},
	"left":      {37},
	"up":        {38},
	"right":     {39},
	"down":      {40},
}

// keyNameToRawcodes maps a key name to its Windows virtual key code rawcodes.
func keyNameToRawcodes(keyName string) []uint16 {
	keyName = strings.ToLower(strings.TrimSpace(keyName))
	if keyName == "win" || keyName == "super" {
		keyName = "cmd"
	}
	if codes, ok := specialKeys[keyName]; ok {
		return codes
	}

	if len(keyName) == 1 {
		switch c := keyName[0]; {
		case c >= 'a' && c <= 'z':
			return []uint16{uint16(c-'a') + 65}
		case c >= '0' && c <= '9':
			return []uint16{uint16(c-'0') + 48}
		}
	}

	var n int
	if _, err := fmt.Sscanf(keyName, "f%d", &n); err == nil && n >= 1 && n <= 24 && keyName == fmt.Sprintf("f%d", n) {
		return []uint16{uint16(111 + n)} // VK_F1 = 112
	}

	log.Printf("WARNING: Unknown key name '%s', cannot map to rawcode", keyName)
	return nil
}
