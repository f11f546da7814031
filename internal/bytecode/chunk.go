package bytecode

// Chunk is a compiled instruction stream plus its constant pool. Constants are
// held as plain Go values (int64, float64, bool, string, nil) or as opaque
// function objects supplied by the embedder; the runtime converts them on load.
type Chunk struct {
	Code      []byte
	Constants []interface{}
}

func NewChunk() *Chunk {
	return &Chunk{
		Code:      []byte{},
		Constants: []interface{}{},
	}
}

func (c *Chunk) WriteOp(op OpCode) {
	c.Code = append(c.Code, byte(op))
}

func (c *Chunk) WriteByte(b byte) {
	c.Code = append(c.Code, b)
}

// WriteShort emits a 16-bit big-endian operand (jump offsets)
func (c *Chunk) WriteShort(v int) {
	c.Code = append(c.Code, byte(v>>8), byte(v))
}

func (c *Chunk) AddConstant(val interface{}) int {
	c.Constants = append(c.Constants, val)
	return len(c.Constants) - 1
}

// Emit appends an opcode followed by single-byte operands
func (c *Chunk) Emit(op OpCode, operands ...byte) {
	c.WriteOp(op)
	c.Code = append(c.Code, operands...)
}
