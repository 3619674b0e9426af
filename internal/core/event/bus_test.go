package event

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestBusDeliversNextTick(t *testing.T) {
	bus := NewBus()
	var got []PlayerAuthenticated
	Subscribe(bus, func(ev PlayerAuthenticated) { got = append(got, ev) })

	Emit(bus, PlayerAuthenticated{SessionID: 1, CharID: 10, Name: "Ada"})
	bus.DispatchAll()
	assert.Empty(t, got, "events are not visible in the tick they were emitted")

	bus.SwapBuffers()
	bus.DispatchAll()
	assert.Equal(t, []PlayerAuthenticated{{SessionID: 1, CharID: 10, Name: "Ada"}}, got)

	bus.SwapBuffers()
	bus.DispatchAll()
	assert.Len(t, got, 1, "delivered events are not replayed")
}

func TestBusRoutesByType(t *testing.T) {
	bus := NewBus()
	var expired, disconnected int
	Subscribe(bus, func(LoginExpired) { expired++ })
	Subscribe(bus, func(PlayerDisconnected) { disconnected++ })

	Emit(bus, LoginExpired{CharID: 1})
	Emit(bus, LoginExpired{CharID: 2})
	Emit(bus, PlayerDisconnected{SessionID: 3})
	bus.SwapBuffers()
	bus.DispatchAll()

	assert.Equal(t, 2, expired)
	assert.Equal(t, 1, disconnected)
}
