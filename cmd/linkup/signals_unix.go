//go:build unix

package main

import (
	"os"
	"os/signal"
	"syscall"
)

// notifyRefresh delivers SIGUSR1 to c.
func notifyRefresh(c chan<- os.Signal) {
	signal.Notify(c, syscall.SIGUSR1)
}
