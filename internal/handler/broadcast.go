package handler

import (
	"github.com/tmwgo/server/internal/net/packet"
	"github.com/tmwgo/server/internal/world"
)

// SayAround sends S_OPCODE_SAY{name, text} to every session whose character
// is on the speaker's map and within AroundAreaInTiles on both axes. The
// speaker is one of them. Returns the number of recipients.
func SayAround(deps *Deps, speaker *world.Player, text string) int {
	w := packet.NewWriterWithOpcode(packet.S_OPCODE_SAY)
	w.WriteString(speaker.Name)
	w.WriteString(text)
	data := w.Bytes()

	sent := 0
	for _, listener := range deps.World.Nearby(speaker) {
		if listener.Session == nil || listener.Session.IsClosed() {
			continue
		}
		listener.Session.Send(data)
		sent++
	}
	return sent
}

// SendTo delivers data to the session bound to p's character, looked up by
// identity. Returns false if that character is not online.
func SendTo(deps *Deps, p *world.Player, data []byte) bool {
	target := deps.World.GetByCharID(p.ID)
	if target == nil || target.Session == nil || target.Session.IsClosed() {
		return false
	}
	target.Session.Send(data)
	return true
}
