package reg

import "strconv"

type (
	// Reg is a physical machine register.
	// Registers 0..31 are general purpose, 32..63 are floating point / vector.
	Reg int

	Bank int8

	Width int8
)

const (
	GP Bank = iota
	FP
)

const (
	Width64 Width = iota + 1
	Width128
)

const (
	NumGPRs = 32
	NumFPRs = 32

	FirstFPR Reg = NumGPRs
	NumRegs      = NumGPRs + NumFPRs

	None Reg = -1
)

func GPR(i int) Reg { return Reg(i) }
func FPR(i int) Reg { return FirstFPR + Reg(i) }

func (r Reg) Bank() Bank {
	if r >= FirstFPR {
		return FP
	}

	return GP
}

func (r Reg) Valid() bool { return r >= 0 && r < NumRegs }

// Index is the register number within its bank.
func (r Reg) Index() int {
	if r >= FirstFPR {
		return int(r - FirstFPR)
	}

	return int(r)
}

func (r Reg) String() string {
	switch {
	case !r.Valid():
		return "<noreg>"
	case r.Bank() == FP:
		return "f" + strconv.Itoa(r.Index())
	default:
		return "r" + strconv.Itoa(r.Index())
	}
}

func (b Bank) String() string {
	if b == FP {
		return "fp"
	}

	return "gp"
}

func (w Width) Bytes() int {
	switch w {
	case Width64:
		return 8
	case Width128:
		return 16
	default:
		panic(w)
	}
}

// Align is the natural alignment of a spilled value of width w.
func (w Width) Align() int { return w.Bytes() }

func (w Width) String() string {
	switch w {
	case Width64:
		return "64"
	case Width128:
		return "128"
	default:
		return "w" + strconv.Itoa(int(w))
	}
}

// Conservative is the widest width a register of the bank can hold.
func (b Bank) Conservative() Width {
	if b == FP {
		return Width128
	}

	return Width64
}
