package packet

// Client -> server opcodes.
const (
	C_HELLO   byte = 0x01 // name, role, password
	C_INPUT   byte = 0x02 // tick, dx, dy, flags
	C_COMMAND byte = 0x03 // version, name, target, msgpack args
	C_PING    byte = 0x04 // client timestamp
	C_BYE     byte = 0x05
)

// Server -> client opcodes.
const (
	S_WELCOME byte = 0x40 // peer, avatar, tick, tick rate, command version, match, role, reconcile
	S_SPAWN   byte = 0x41 // entity, kind, role of the receiving peer
	S_DESPAWN byte = 0x42 // entity
	S_STATE   byte = 0x43 // tick, batch of field changes
	S_COMMAND byte = 0x44 // command delivered to this peer
	S_PONG    byte = 0x45 // echoed timestamp, server tick
	S_REJECT  byte = 0x46 // reason code, message
)

// Reject reasons carried by S_REJECT.
const (
	RejectBadPassword byte = 1
	RejectRoleFull    byte = 2
	RejectBadName     byte = 3
	RejectBadRole     byte = 4
	RejectMatchOver   byte = 5
	RejectCommand     byte = 6
)

// Input flags carried by C_INPUT.
const (
	InputRun    byte = 1 << 0
	InputAttack byte = 1 << 1
)
