package handler

import (
	"github.com/tmwgo/server/internal/net"
	"github.com/tmwgo/server/internal/net/packet"
)

// HandleWalk processes C_OPCODE_WALK: x, y.
// Only the destination is recorded; nothing walks the character there.
func HandleWalk(sess *net.Session, r *packet.Reader, deps *Deps) (*packet.Writer, error) {
	x := r.ReadUint16()
	y := r.ReadUint16()
	if r.Overrun() {
		return nil, packet.ErrTruncated
	}

	player := playerOf(sess, deps)
	if player == nil {
		return nil, nil
	}
	player.SetDestination(int(x), int(y))
	return nil, nil
}
