package packet

// Opcodes are the 2-byte message type at the head of every payload.
// C_ = client → server, S_ = server → client.

// Account server.
const (
	C_OPCODE_REGISTER            uint16 = 0x0000 // username, password
	S_OPCODE_REGISTER_RESPONSE   uint16 = 0x0002
	C_OPCODE_UNREGISTER          uint16 = 0x0003 // username, password
	S_OPCODE_UNREGISTER_RESPONSE uint16 = 0x0004

	C_OPCODE_LOGIN           uint16 = 0x0010 // username, password
	S_OPCODE_LOGIN_RESPONSE  uint16 = 0x0012
	C_OPCODE_LOGOUT          uint16 = 0x0013
	S_OPCODE_LOGOUT_RESPONSE uint16 = 0x0014

	C_OPCODE_CHAR_CREATE          uint16 = 0x0020 // name
	S_OPCODE_CHAR_CREATE_RESPONSE uint16 = 0x0021
	C_OPCODE_CHAR_SELECT          uint16 = 0x0026 // slot
	S_OPCODE_CHAR_SELECT_RESPONSE uint16 = 0x0027

	C_OPCODE_PASSWORD_CHANGE          uint16 = 0x0030 // old, new
	S_OPCODE_PASSWORD_CHANGE_RESPONSE uint16 = 0x0031
)

// Game server.
const (
	C_OPCODE_CONNECT          uint16 = 0x0050 // token[32]
	S_OPCODE_CONNECT_RESPONSE uint16 = 0x0051

	C_OPCODE_SAY uint16 = 0x0110 // text
	S_OPCODE_SAY uint16 = 0x0111 // speaker name, text

	C_OPCODE_PICKUP          uint16 = 0x0120 // item id
	S_OPCODE_PICKUP_RESPONSE uint16 = 0x0121

	C_OPCODE_USE_ITEM     uint16 = 0x0130 // item id
	S_OPCODE_USE_RESPONSE uint16 = 0x0131

	C_OPCODE_WALK uint16 = 0x0140 // x, y

	C_OPCODE_EQUIP          uint16 = 0x0150 // item id, slot
	S_OPCODE_EQUIP_RESPONSE uint16 = 0x0151
)

// S_OPCODE_INVALID answers a message the session may not send. No payload.
const S_OPCODE_INVALID uint16 = 0x7FFF

// Result codes carried as the first byte of *_RESPONSE messages.
const (
	ResultOK              byte = 0
	ResultFailure         byte = 1
	ResultNoLogin         byte = 2
	ResultInvalidArgument byte = 3
	ResultExistsUsername  byte = 4
	ResultExistsName      byte = 5
	ResultTooMany         byte = 6
)
