// Package hotkey registers a global hotkey combination and invokes a
// callback when it fires. The combination string is "+"-separated, e.g.
// "F2" or "Ctrl+Shift+S"; key names are passed to the hook library in
// lower case.
package hotkey

import (
	"fmt"
	"log"
	"strings"

	hook "github.com/robotn/gohook"
)

// Listen registers combo and starts the event hook on a background
// goroutine. The callback runs on the hook goroutine; it should hand work
// off (e.g. post into an event loop) rather than block.
func Listen(combo string, callback func()) error {
	keys := parseCombo(combo)
	if len(keys) == 0 {
		return fmt.Errorf("empty hotkey combination %q", combo)
	}
	if callback == nil {
		return fmt.Errorf("hotkey callback is required")
	}

	hook.Register(hook.KeyDown, keys, func(e hook.Event) {
		log.Printf("Hotkey: %s fired", combo)
		callback()
	})

	go func() {
		defer func() {
			if r := recover(); r != nil {
				log.Printf("Hotkey: hook goroutine panicked: %v", r)
			}
		}()
		s := hook.Start()
		<-hook.Process(s)
	}()

	log.Printf("Hotkey: listening for %s", combo)
	return nil
}

// Stop ends the global event hook.
func Stop() {
	hook.End()
}

func parseCombo(combo string) []string {
	var keys []string
	for _, part := range strings.Split(combo, "+") {
		if k := strings.ToLower(strings.TrimSpace(part)); k != "" {
			keys = append(keys, k)
		}
	}
	return keys
}
