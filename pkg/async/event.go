package async

import (
	"bufio"
	"os"
	"os/signal"
	"syscall"
)

func EnterKey() <-chan struct{} {
	done := make(chan struct{})
	go func() {
		bufio.NewReader(os.Stdin).ReadBytes('\n')
		close(done)
	}()
	return done
}

// Interrupt is closed on the first SIGINT or SIGTERM.
func Interrupt() <-chan struct{} {
	sig := make(chan os.Signal, 1)
	signal.Notify(sig, os.Interrupt, syscall.SIGTERM)
	return Job(func() {
		<-sig
		signal.Stop(sig)
	})
}
