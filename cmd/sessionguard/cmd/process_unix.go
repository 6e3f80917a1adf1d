//go:build !windows

package cmd

import (
	"os"
	"os/signal"
	"syscall"
)

// gracefulSignals returns the OS signals to capture for graceful shutdown.
// On Unix: SIGINT (Ctrl+C) and SIGTERM (kill).
func gracefulSignals() []os.Signal {
	return []os.Signal{syscall.SIGINT, syscall.SIGTERM}
}

// connectivitySignals maps signals to guard events.
// SIGCONT: surface visible again. SIGUSR1: online. SIGUSR2: offline.
func connectivitySignals() map[os.Signal]event {
	return map[os.Signal]event{
		syscall.SIGCONT: eventVisible,
		syscall.SIGUSR1: eventOnline,
		syscall.SIGUSR2: eventOffline,
	}
}

// notifyConnectivity relays connectivity signals to ch.
func notifyConnectivity(ch chan<- os.Signal) {
	sigs := make([]os.Signal, 0, 3)
	for s := range connectivitySignals() {
		sigs = append(sigs, s)
	}
	signal.Notify(ch, sigs...)
}
