package hyperloglog

// maxPrecision bounds a sketch to 2^24 registers (16 MB); New and
// UnmarshalBinary both enforce it.
const maxPrecision = 24

// MarshalBinary encodes the sketch into a binary format.
// Format: [precision:1byte][registers:m bytes]
func (h *HyperLogLog) MarshalBinary() ([]byte, error) {
	data := make([]byte, 1+len(h.registers))
	data[0] = h.precision
	copy(data[1:], h.registers)
	return data, nil
}

// UnmarshalBinary decodes a sketch from binary format. The register array
// and bucket count are restored exactly; alpha is rederived from the
// bucket count.
func (h *HyperLogLog) UnmarshalBinary(data []byte) error {
	if len(data) < 2 {
		return ErrInvalidData
	}

	precision := data[0]
	if precision > maxPrecision {
		return ErrInvalidData
	}

	m := 1 << precision
	if len(data) != 1+m {
		return ErrInvalidData
	}

	restored, err := New(m)
	if err != nil {
		return ErrInvalidData
	}

	copy(restored.registers, data[1:])
	*h = *restored

	return nil
}

// FromBytes creates a new sketch from serialized bytes.
func FromBytes(data []byte) (*HyperLogLog, error) {
	h := &HyperLogLog{}
	if err := h.UnmarshalBinary(data); err != nil {
		return nil, err
	}
	return h, nil
}
