package classfile

import (
	"fmt"
	"sort"

	"github.com/bytecut/bytecut/pkg/model"
)

// lineEntry is one LineNumberTable row.
type lineEntry struct {
	startPC uint16
	line    uint16
}

// decodeCode turns a Code attribute into the instruction union,
// interleaving line markers from the LineNumberTable at their bytecode
// offsets.
func decodeCode(data []byte, pool *constPool) ([]model.Instruction, error) {
	r := newReader(data)

	// max_stack, max_locals
	if err := r.skip(4); err != nil {
		return nil, err
	}
	codeLen, err := r.u32()
	if err != nil {
		return nil, err
	}
	code, err := r.bytes(int(codeLen))
	if err != nil {
		return nil, err
	}

	// exception_table
	excCount, err := r.u16()
	if err != nil {
		return nil, err
	}
	if err := r.skip(int(excCount) * 8); err != nil {
		return nil, err
	}

	var lines []lineEntry
	attrCount, err := r.u16()
	if err != nil {
		return nil, err
	}
	for i := 0; i < int(attrCount); i++ {
		name, attrData, err := readAttribute(r, pool)
		if err != nil {
			return nil, err
		}
		if name == "LineNumberTable" {
			entries, err := decodeLineNumberTable(attrData)
			if err != nil {
				return nil, err
			}
			lines = append(lines, entries...)
		}
	}
	sort.SliceStable(lines, func(i, j int) bool { return lines[i].startPC < lines[j].startPC })

	insns, pcs, err := decodeInstructions(code, pool)
	if err != nil {
		return nil, err
	}

	// Merge line markers into body order: each marker precedes the
	// first instruction at or after its start_pc.
	merged := make([]model.Instruction, 0, len(insns)+len(lines))
	li := 0
	for i, insn := range insns {
		for li < len(lines) && lines[li].startPC <= uint16(pcs[i]) {
			merged = append(merged, model.LineInsn{Line: lines[li].line})
			li++
		}
		merged = append(merged, insn)
	}
	for ; li < len(lines); li++ {
		merged = append(merged, model.LineInsn{Line: lines[li].line})
	}
	return merged, nil
}

func decodeLineNumberTable(data []byte) ([]lineEntry, error) {
	r := newReader(data)
	count, err := r.u16()
	if err != nil {
		return nil, err
	}
	entries := make([]lineEntry, 0, count)
	for i := 0; i < int(count); i++ {
		pc, err := r.u16()
		if err != nil {
			return nil, err
		}
		line, err := r.u16()
		if err != nil {
			return nil, err
		}
		entries = append(entries, lineEntry{startPC: pc, line: line})
	}
	return entries, nil
}

// decodeInstructions walks the bytecode stream once, producing one
// Instruction per opcode plus its offset. Field and invoke operands
// are resolved through the constant pool; every other opcode keeps
// only its identity.
func decodeInstructions(code []byte, pool *constPool) ([]model.Instruction, []int, error) {
	r := newReader(code)
	var insns []model.Instruction
	var pcs []int

	for r.remaining() > 0 {
		pc := r.off
		op, err := r.u8()
		if err != nil {
			return nil, nil, err
		}

		switch {
		case isFieldOp(op):
			idx, err := r.u16()
			if err != nil {
				return nil, nil, err
			}
			owner, name, _, err := pool.memberRef(idx)
			if err != nil {
				return nil, nil, err
			}
			insns = append(insns, model.FieldInsn{Op: op, Owner: owner, Name: name})

		case isInvokeOp(op):
			idx, err := r.u16()
			if err != nil {
				return nil, nil, err
			}
			if op == opInvokeinterface {
				// count byte and the mandatory zero
				if err := r.skip(2); err != nil {
					return nil, nil, err
				}
			}
			owner, name, desc, err := pool.memberRef(idx)
			if err != nil {
				return nil, nil, err
			}
			insns = append(insns, model.InvokeInsn{Op: op, Owner: owner, Name: name, Desc: desc})

		case op == opTableswitch:
			if err := skipSwitchPadding(r, pc); err != nil {
				return nil, nil, err
			}
			// default
			if err := r.skip(4); err != nil {
				return nil, nil, err
			}
			low, err := r.s32()
			if err != nil {
				return nil, nil, err
			}
			high, err := r.s32()
			if err != nil {
				return nil, nil, err
			}
			if high < low {
				return nil, nil, fmt.Errorf("tableswitch bounds %d..%d at pc %d", low, high, pc)
			}
			if err := r.skip(4 * (int(high) - int(low) + 1)); err != nil {
				return nil, nil, err
			}
			insns = append(insns, model.OpInsn{Op: op})

		case op == opLookupswitch:
			if err := skipSwitchPadding(r, pc); err != nil {
				return nil, nil, err
			}
			// default
			if err := r.skip(4); err != nil {
				return nil, nil, err
			}
			npairs, err := r.s32()
			if err != nil {
				return nil, nil, err
			}
			if npairs < 0 {
				return nil, nil, fmt.Errorf("lookupswitch pair count %d at pc %d", npairs, pc)
			}
			if err := r.skip(8 * int(npairs)); err != nil {
				return nil, nil, err
			}
			insns = append(insns, model.OpInsn{Op: op})

		case op == opWide:
			inner, err := r.u8()
			if err != nil {
				return nil, nil, err
			}
			// wide iinc carries two u16 operands, every other
			// widened opcode carries one.
			width := 2
			if inner == 132 {
				width = 4
			}
			if err := r.skip(width); err != nil {
				return nil, nil, err
			}
			insns = append(insns, model.OpInsn{Op: op})

		default:
			if err := r.skip(operandWidth[op]); err != nil {
				return nil, nil, err
			}
			insns = append(insns, model.OpInsn{Op: op})
		}
		pcs = append(pcs, pc)
	}
	return insns, pcs, nil
}

// skipSwitchPadding advances past the 0-3 alignment bytes that follow
// a tableswitch or lookupswitch opcode (JVMS §4.7.3: operands start at
// a 4-byte boundary relative to the code array).
func skipSwitchPadding(r *reader, pc int) error {
	pad := (3 - pc) % 4
	if pad < 0 {
		pad += 4
	}
	return r.skip(pad)
}
