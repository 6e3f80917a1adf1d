//go:build windows

package cmd

import (
	"os"
)

// gracefulSignals returns the OS signals to capture for graceful shutdown.
// On Windows: only os.Interrupt (Ctrl+C).
func gracefulSignals() []os.Signal {
	return []os.Signal{os.Interrupt}
}

// connectivitySignals is empty on Windows, which has no user signals.
func connectivitySignals() map[os.Signal]event {
	return nil
}

// notifyConnectivity is a no-op on Windows.
func notifyConnectivity(ch chan<- os.Signal) {}
