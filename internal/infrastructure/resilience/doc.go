/*
Package resilience provides a circuit breaker for operations that fail for
environmental reasons, such as spawning processes when the host is out of
PTYs or file descriptors.

# Usage

	breaker := resilience.New("pty-spawn", resilience.Settings{
		Cooldown: 30 * time.Second,
		ShouldTrip: func(counts resilience.Counts) bool {
			return counts.ConsecutiveFailures >= 5
		},
		Counts: func(err error) bool {
			return errors.Is(err, terminal.ErrSpawnFailed)
		},
	})

	sess, err := resilience.Execute(breaker, func() (*Session, error) {
		return spawn(...)
	})

Errors rejected by Settings.Counts (caller mistakes such as a bad working
directory) pass through without moving the breaker.

# States

	Closed --[failures]-> Open --[cooldown]-> Half-Open --[probes succeed]-> Closed
	                                              |
	                                          [failure]
	                                              v
	                                            Open
*/
package resilience
