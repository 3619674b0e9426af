package handler

import (
	"strings"
	"unicode"

	"go.uber.org/zap"
	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"

	"github.com/tmwgo/server/internal/net"
	"github.com/tmwgo/server/internal/net/packet"
)

// chatCleaner normalizes chat text and strips control characters.
var chatCleaner = transform.Chain(norm.NFC, runes.Remove(runes.In(unicode.Cc)))

// HandleSay processes C_OPCODE_SAY: text.
func HandleSay(sess *net.Session, r *packet.Reader, deps *Deps) (*packet.Writer, error) {
	raw := r.ReadString()
	if r.Overrun() {
		return nil, packet.ErrTruncated
	}

	player := playerOf(sess, deps)
	if player == nil {
		return nil, nil
	}

	text := cleanChat(raw)
	if text == "" {
		return nil, nil
	}

	n := SayAround(deps, player, text)
	deps.Log.Debug("C_Say",
		zap.String("player", player.Name),
		zap.String("text", text),
		zap.Int("listeners", n),
	)
	return nil, nil
}

func cleanChat(s string) string {
	out, _, err := transform.String(chatCleaner, s)
	if err != nil {
		return ""
	}
	return strings.TrimSpace(out)
}
