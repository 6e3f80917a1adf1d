package cmd

import "os"

// connectivity events delivered to `guard` by OS signals.
type event int

const (
	eventNone event = iota
	eventVisible
	eventOnline
	eventOffline
)

// connectivityEvent maps a received signal to a guard event.
func connectivityEvent(sig os.Signal) event {
	for s, ev := range connectivitySignals() {
		if s == sig {
			return ev
		}
	}
	return eventNone
}
