// Package image decides whether the first block of a transfer looks like a
// program image before anything is written to flash.
package image

// Validator inspects the first block of an image
type Validator interface {
	Valid(block []byte) bool
}

// ValidatorFunc adapts a function to the [Validator] interface
type ValidatorFunc func(block []byte) bool

func (f ValidatorFunc) Valid(block []byte) bool {
	return f(block)
}

// AcceptAll accepts any first block, including empty ones
var AcceptAll = ValidatorFunc(func([]byte) bool { return true })

const (
	avrJmpLow    = 0x0C
	avrJmpHigh   = 0x94
	avrRjmpMask  = 0xF0
	avrRjmpHigh  = 0xC0
	vectorSize   = 4
	vectorsCheck = 13
)

// VectorTable checks that an AVR image starts with an interrupt vector table,
// i.e. that each of the first Vectors entries is a JMP instruction.
// Devices with 2 byte vectors (no JMP instruction) set Rjmp.
type VectorTable struct {
	Vectors int
	Rjmp    bool
}

// AVRVectorTable is the check used for ATmega devices with 4 byte vectors
var AVRVectorTable = VectorTable{Vectors: vectorsCheck}

func (v VectorTable) Valid(block []byte) bool {
	if v.Rjmp {
		if len(block) < v.Vectors*2 {
			return false
		}
		for i := 0; i < v.Vectors*2; i += 2 {
			if block[i+1]&avrRjmpMask != avrRjmpHigh {
				return false
			}
		}
		return true
	}
	if len(block) < v.Vectors*vectorSize {
		return false
	}
	for i := 0; i < v.Vectors*vectorSize; i += vectorSize {
		if block[i] != avrJmpLow || block[i+1] != avrJmpHigh {
			return false
		}
	}
	return true
}
