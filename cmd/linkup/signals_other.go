//go:build !unix

package main

import "os"

// notifyRefresh is a no-op where SIGUSR1 does not exist.
func notifyRefresh(chan<- os.Signal) {}
