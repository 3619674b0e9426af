package packet

import (
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
	"pgregory.net/rapid"
)

func TestWriterLayout(t *testing.T) {
	w := NewWriterWithOpcode(C_OPCODE_EQUIP)
	w.WriteUint32(0x01020304)
	w.WriteUint8(7)

	assert.Equal(t, []byte{0x50, 0x01, 0x04, 0x03, 0x02, 0x01, 0x07}, w.Bytes())
	assert.Equal(t, 7, w.Len())
}

func TestReaderFields(t *testing.T) {
	w := NewWriterWithOpcode(C_OPCODE_WALK)
	w.WriteUint16(120)
	w.WriteUint16(64)
	w.WriteString("héllo")
	w.WriteFixedString("abc", 8)

	r := NewReader(w.Bytes())
	assert.Equal(t, C_OPCODE_WALK, r.Opcode())
	assert.Equal(t, uint16(120), r.ReadUint16())
	assert.Equal(t, uint16(64), r.ReadUint16())
	assert.Equal(t, "héllo", r.ReadString())
	assert.Equal(t, "abc", r.ReadFixedString(8))
	assert.Zero(t, r.Remaining())
	assert.False(t, r.Overrun())
}

func TestReaderOverrun(t *testing.T) {
	r := NewReader([]byte{0x20, 0x01, 0xAA, 0xBB})
	assert.Equal(t, uint32(0), r.ReadUint32())
	assert.True(t, r.Overrun())
	assert.Zero(t, r.Remaining())
}

func TestReaderShortFixedString(t *testing.T) {
	r := NewReader(append([]byte{0x50, 0x00}, "short"...))
	assert.Equal(t, "short", r.ReadFixedString(32))
	assert.True(t, r.Overrun())
}

func TestReaderReplacesIllFormedUTF8(t *testing.T) {
	w := NewWriterWithOpcode(C_OPCODE_SAY)
	w.WriteString("ok\xffok")
	r := NewReader(w.Bytes())
	assert.Equal(t, "ok�ok", r.ReadString())
}

func TestWriteFixedStringTruncates(t *testing.T) {
	w := NewWriter()
	w.WriteFixedString(strings.Repeat("x", 40), 32)
	assert.Equal(t, 32, w.Len())
}

func TestStringRoundTripProperty(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		s := rapid.StringN(0, 200, -1).Draw(t, "s")
		w := NewWriterWithOpcode(C_OPCODE_SAY)
		w.WriteString(s)
		r := NewReader(w.Bytes())
		if got := r.ReadString(); got != s {
			t.Fatalf("got %q, want %q", got, s)
		}
	})
}

func TestRegistryDispatch(t *testing.T) {
	reg := NewRegistry(zaptest.NewLogger(t))
	var gotItem uint32
	reg.Register(C_OPCODE_PICKUP, []SessionState{StateAuthenticated}, func(sess any, r *Reader) (*Writer, error) {
		gotItem = r.ReadUint32()
		if r.Overrun() {
			return nil, ErrTruncated
		}
		w := NewWriterWithOpcode(S_OPCODE_PICKUP_RESPONSE)
		w.WriteUint8(ResultOK)
		return w, nil
	})

	msg := NewWriterWithOpcode(C_OPCODE_PICKUP)
	msg.WriteUint32(501)

	t.Run("allowed", func(t *testing.T) {
		resp, err := reg.Dispatch(nil, StateAuthenticated, msg.Bytes())
		require.NoError(t, err)
		require.NotNil(t, resp)
		assert.Equal(t, uint32(501), gotItem)
		assert.Equal(t, []byte{0x21, 0x01, ResultOK}, resp.Bytes())
	})

	t.Run("wrong state", func(t *testing.T) {
		_, err := reg.Dispatch(nil, StateConnected, msg.Bytes())
		assert.ErrorIs(t, err, ErrStateNotAllowed)
		assert.True(t, IsProtocolViolation(err))
	})

	t.Run("unknown opcode", func(t *testing.T) {
		_, err := reg.Dispatch(nil, StateAuthenticated, []byte{0xEE, 0x0E})
		assert.ErrorIs(t, err, ErrUnknownOpcode)
	})

	t.Run("empty", func(t *testing.T) {
		_, err := reg.Dispatch(nil, StateAuthenticated, []byte{0x01})
		assert.ErrorIs(t, err, ErrEmptyPacket)
	})

	t.Run("truncated", func(t *testing.T) {
		_, err := reg.Dispatch(nil, StateAuthenticated, []byte{0x20, 0x01, 0x01})
		assert.ErrorIs(t, err, ErrTruncated)
	})
}

func TestRegistryRecoversPanics(t *testing.T) {
	reg := NewRegistry(zaptest.NewLogger(t))
	reg.Register(C_OPCODE_SAY, []SessionState{StateAuthenticated}, func(any, *Reader) (*Writer, error) {
		panic("boom")
	})

	resp, err := reg.Dispatch(nil, StateAuthenticated, []byte{0x10, 0x01})
	require.Error(t, err)
	assert.Nil(t, resp)
	assert.Contains(t, err.Error(), "boom")
	assert.False(t, IsProtocolViolation(err))
	assert.False(t, errors.Is(err, ErrUnknownOpcode))
}
