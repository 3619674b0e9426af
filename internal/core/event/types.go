package event

// Session lifecycle events. Emitted during tick N, delivered in tick N+1.

// PlayerAuthenticated fires when a pending login and a connection meet.
type PlayerAuthenticated struct {
	SessionID uint64
	CharID    int64
	Name      string
}

// PlayerDisconnected fires when a bound session is reaped.
type PlayerDisconnected struct {
	SessionID uint64
	CharID    int64
	Name      string
}

// LoginExpired fires when an authorization was never claimed in time.
type LoginExpired struct {
	CharID int64
	Name   string
}
