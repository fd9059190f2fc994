package machine

const (
	// MinMemSize is the smallest guest RAM we accept. Anything below
	// 1 MiB cannot hold a kernel linked at the conventional base.
	MinMemSize = 1 << 20

	// CR0 bits.
	CR0xPE = 1
	CR0xMP = (1 << 1)
	CR0xEM = (1 << 2)
	CR0xTS = (1 << 3)
	CR0xET = (1 << 4)
	CR0xNE = (1 << 5)
	CR0xWP = (1 << 16)
	CR0xAM = (1 << 18)
	CR0xNW = (1 << 29)
	CR0xCD = (1 << 30)
	CR0xPG = (1 << 31)
)

// Segment descriptor type fields for the flat protected-mode GDT
// entries: execute/read accessed code, read/write accessed data.
const (
	segTypeCode = 11
	segTypeData = 3

	selCode = 1 << 3
	selData = 2 << 3
)
