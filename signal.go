// Copyright 2026 Bob Vawter (bob@vawter.org)
// SPDX-License-Identifier: Apache-2.0

package drain

// A Shutdowner begins and reports a graceful drain. It is implemented
// by [Service].
type Shutdowner interface {
	Shutdown()
	Draining() <-chan struct{}
}

// ShutdownOnReceive will shut the Service down when a value is received
// from the channel or if the channel is closed. ShutdownOnReceive can
// be used, for example, with [os/signal.Notify]. The monitoring
// goroutine also exits when the service starts draining for any other
// reason, so it is never leaked.
func ShutdownOnReceive[T any](s Shutdowner, ch <-chan T) {
	go func() {
		select {
		case <-ch:
			s.Shutdown()
		case <-s.Draining():
		}
	}()
}
