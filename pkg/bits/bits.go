package bits

// HID reports pack fields least-significant-bit first within a little-endian
// byte stream. All positions and sizes below are in bits; sizes above 32 are
// not representable in a single field and read as zero.

func Extract(buf []byte, pos, size uint32) uint32 {
	if size == 0 || size > 32 {
		return 0
	}
	start := pos / 8
	end := (pos + size + 7) / 8
	var v uint64
	for i := start; i < end; i++ {
		if int(i) >= len(buf) {
			break
		}
		v |= uint64(buf[i]) << (8 * (i - start))
	}
	v >>= pos % 8
	if size < 64 {
		v &= 1<<size - 1
	}
	return uint32(v)
}

func ExtractSigned(buf []byte, pos, size uint32) int32 {
	v := Extract(buf, pos, size)
	if size == 0 || size >= 32 {
		return int32(v)
	}
	if v&(1<<(size-1)) != 0 {
		v |= ^uint32(0) << size
	}
	return int32(v)
}

func Put(buf []byte, pos, size uint32, value uint32) {
	if size == 0 || size > 32 {
		return
	}
	mask := uint64(1)<<size - 1
	v := (uint64(value) & mask) << (pos % 8)
	m := mask << (pos % 8)
	for i := pos / 8; m != 0; i++ {
		if int(i) >= len(buf) {
			return
		}
		buf[i] = buf[i]&^byte(m) | byte(v)
		v >>= 8
		m >>= 8
	}
}
