package block

const (
	// Edge blocks of at least 2^BloomFilterThreshold bytes reserve a bloom
	// filter region of blockSize >> BloomFilterPortion bytes directly after
	// the header. Whether a block carries a filter is a function of its
	// order alone, keeping blocks self-describing.
	BloomFilterPortion   = uint8(8)
	BloomFilterThreshold = uint8(16)
)

func bloomBytes(order uint8) int {
	if order < BloomFilterThreshold {
		return 0
	}
	return 1 << (order - BloomFilterPortion)
}

// OrderForEdgeBlock returns the smallest order whose block can hold size
// payload bytes plus the bloom filter region that order requires.
func OrderForEdgeBlock(size uint64) uint8 {
	order := SizeToOrder(size)
	for size+uint64(bloomBytes(order)) > uint64(1)<<order {
		order += 1
	}
	return order
}

// BloomFilter is a view of the filter region of an edge block; a zero
// length view is valid and matches everything.
type BloomFilter []byte

func (bf BloomFilter) Valid() bool {
	return len(bf) > 0
}

func (bf BloomFilter) Add(dst uint64) {
	if len(bf) == 0 {
		return
	}
	h1, h2 := bloomHashes(dst)
	bits := uint64(len(bf)) * 8
	bf.setBit(h1 % bits)
	bf.setBit(h2 % bits)
}

// MayContain reports whether dst could have been added; false positives
// are possible, false negatives are not.
func (bf BloomFilter) MayContain(dst uint64) bool {
	if len(bf) == 0 {
		return true
	}
	h1, h2 := bloomHashes(dst)
	bits := uint64(len(bf)) * 8
	return bf.testBit(h1%bits) && bf.testBit(h2%bits)
}

func (bf BloomFilter) setBit(bit uint64) {
	bf[bit>>3] |= 1 << (bit & 7)
}

func (bf BloomFilter) testBit(bit uint64) bool {
	return bf[bit>>3]&(1<<(bit&7)) != 0
}

func bloomHashes(dst uint64) (uint64, uint64) {
	h := dst
	h ^= h >> 33
	h *= 0xff51afd7ed558ccd
	h ^= h >> 33
	h *= 0xc4ceb9fe1a85ec53
	h ^= h >> 33
	return h, h>>32 | h<<32
}

func (eb EdgeBlock) Bloom() BloomFilter {
	n := bloomBytes(eb.Order())
	if n == 0 {
		return nil
	}
	return BloomFilter(eb[EdgeHeaderSize : EdgeHeaderSize+n])
}
