package classfile

// JVM opcodes the decoder treats specially. Everything else is carried
// as a generic opcode instruction.
const (
	opGetstatic       = 178
	opPutstatic       = 179
	opGetfield        = 180
	opPutfield        = 181
	opInvokevirtual   = 182
	opInvokespecial   = 183
	opInvokestatic    = 184
	opInvokeinterface = 185
	opInvokedynamic   = 186

	opTableswitch  = 170
	opLookupswitch = 171
	opWide         = 196
)

// operandVariable marks opcodes whose operand length depends on the
// instruction stream (switches, wide).
const operandVariable = -1

// operandWidth maps each opcode to the number of operand bytes that
// follow it (JVMS §6.5). Field and invoke opcodes are listed here too
// even though the decoder reads their operands itself.
var operandWidth = [256]int{
	16: 1, // bipush
	17: 2, // sipush
	18: 1, // ldc
	19: 2, // ldc_w
	20: 2, // ldc2_w
	21: 1, // iload
	22: 1, // lload
	23: 1, // fload
	24: 1, // dload
	25: 1, // aload
	54: 1, // istore
	55: 1, // lstore
	56: 1, // fstore
	57: 1, // dstore
	58: 1, // astore

	132: 2, // iinc

	// Conditional and unconditional branches.
	153: 2, 154: 2, 155: 2, 156: 2, 157: 2, 158: 2,
	159: 2, 160: 2, 161: 2, 162: 2, 163: 2, 164: 2,
	165: 2, 166: 2, 167: 2, 168: 2,
	169: 1, // ret

	opTableswitch:  operandVariable,
	opLookupswitch: operandVariable,

	opGetstatic:       2,
	opPutstatic:       2,
	opGetfield:        2,
	opPutfield:        2,
	opInvokevirtual:   2,
	opInvokespecial:   2,
	opInvokestatic:    2,
	opInvokeinterface: 4,
	opInvokedynamic:   4,

	187: 2, // new
	188: 1, // newarray
	189: 2, // anewarray
	192: 2, // checkcast
	193: 2, // instanceof

	opWide: operandVariable,

	197: 3, // multianewarray
	198: 2, // ifnull
	199: 2, // ifnonnull
	200: 4, // goto_w
	201: 4, // jsr_w
}

func isFieldOp(op uint8) bool {
	return op >= opGetstatic && op <= opPutfield
}

func isInvokeOp(op uint8) bool {
	return op >= opInvokevirtual && op <= opInvokeinterface
}
