package format

// AlignDown rounds addr down to the previous Alignment boundary.
//
// Example:
//
//	AlignDown(984) = 984
//	AlignDown(983) = 976
func AlignDown(addr uint64) uint64 {
	return addr &^ AlignmentMask
}

// AlignUp rounds n up to the next Alignment boundary.
//
// Example:
//
//	AlignUp(1)  = 8
//	AlignUp(8)  = 8
//	AlignUp(9)  = 16
func AlignUp(n uint64) uint64 {
	return (n + AlignmentMask) &^ AlignmentMask
}
