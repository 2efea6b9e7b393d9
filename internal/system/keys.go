package system

import "strings"

// Linux input-event-codes.h
var keyCodes = map[string]int{
	"ESC":       1,
	"BACKSPACE": 14,
	"ENTER":     28,
	"F1":        59,
	"F2":        60,
	"F3":        61,
	"F4":        62,
	"F5":        63,
	"F6":        64,
	"F7":        65,
	"F8":        66,
	"F9":        67,
	"F10":       68,
	"F11":       87,
	"F12":       88,
	"PAUSE":     119,
}

// KeyCode maps a key name to its evdev code. Names are case-insensitive.
func KeyCode(name string) (int, bool) {
	code, ok := keyCodes[strings.ToUpper(strings.TrimSpace(name))]
	return code, ok
}
