package bytecode

type OpCode byte

// There are no per-operator opcodes: arithmetic, comparison and logic all go
// through OpInvoke with the operator's selector name, so user classes can
// overload them like any other method.
const (
	OpConstant OpCode = iota
	OpNil
	OpPop
	OpDup
	OpJump
	OpJumpIfFalse
	OpLoop
	OpGetGlobal
	OpSetGlobal
	OpGetLocal
	OpSetLocal
	OpGetProperty
	OpSetProperty
	OpGetIndex
	OpSetIndex
	OpInvoke
	OpCall
	OpReturn
)

var opNames = map[OpCode]string{
	OpConstant:    "CONSTANT",
	OpNil:         "NIL",
	OpPop:         "POP",
	OpDup:         "DUP",
	OpJump:        "JUMP",
	OpJumpIfFalse: "JUMP_IF_FALSE",
	OpLoop:        "LOOP",
	OpGetGlobal:   "GET_GLOBAL",
	OpSetGlobal:   "SET_GLOBAL",
	OpGetLocal:    "GET_LOCAL",
	OpSetLocal:    "SET_LOCAL",
	OpGetProperty: "GET_PROPERTY",
	OpSetProperty: "SET_PROPERTY",
	OpGetIndex:    "GET_INDEX",
	OpSetIndex:    "SET_INDEX",
	OpInvoke:      "INVOKE",
	OpCall:        "CALL",
	OpReturn:      "RETURN",
}

func (op OpCode) String() string {
	if name, ok := opNames[op]; ok {
		return name
	}
	return "UNKNOWN"
}
