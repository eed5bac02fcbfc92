package offsetscore

// Nucleotide bases in canonical order; a base's index is its position here.
const bases = "ACGT"

const numBases = len(bases)

// noOffset marks a (ref, alt) pair with no byte in a position record.
const noOffset = -1

// baseIndex returns the index of an upper-case nucleotide in bases.
func baseIndex(b byte) (int, bool) {
	switch b {
	case 'A':
		return 0, true
	case 'C':
		return 1, true
	case 'G':
		return 2, true
	case 'T':
		return 3, true
	}
	return 0, false
}

// upper maps a lower-case ASCII letter to upper case.
func upper(b byte) byte {
	if 'a' <= b && b <= 'z' {
		return b - ('a' - 'A')
	}
	return b
}

// complement returns the Watson-Crick complement of a single base.
func complement(b byte) byte {
	switch b {
	case 'A':
		return 'T'
	case 'T':
		return 'A'
	case 'C':
		return 'G'
	case 'G':
		return 'C'
	}
	return b
}

// offsetTable maps (ref, alt) base indices to a byte offset within one
// position record, or noOffset.
type offsetTable [numBases][numBases]int

// buildOffsetTable enumerates, for every reference base, the alternate bases
// in the given order (self-substitution skipped) and assigns them offsets
// 0, 1, 2. It returns false unless each reference gets exactly
// bytesPerPosition alternates, which holds only for bytesPerPosition == 3.
func buildOffsetTable(order string, bytesPerPosition int) (offsetTable, bool) {
	var t offsetTable
	for i := range t {
		for j := range t[i] {
			t[i][j] = noOffset
		}
	}
	if len(order) != numBases || bytesPerPosition != numBases-1 {
		return t, false
	}

	var seen [numBases]bool
	for k := 0; k < len(order); k++ {
		idx, ok := baseIndex(order[k])
		if !ok || seen[idx] {
			return t, false
		}
		seen[idx] = true
	}

	for r := 0; r < numBases; r++ {
		ref := bases[r]
		next := 0
		for k := 0; k < len(order); k++ {
			if order[k] == ref {
				continue
			}
			alt, _ := baseIndex(order[k])
			t[r][alt] = next
			next++
		}
	}
	return t, true
}

// tableFromMap converts an explicit {ref: {alt: offset}} override into an
// offsetTable, validating that each reference base has exactly
// bytesPerPosition alternates whose offsets are a permutation of
// 0..bytesPerPosition-1.
func tableFromMap(m map[string]map[string]int, bytesPerPosition int) (offsetTable, bool) {
	var t offsetTable
	for i := range t {
		for j := range t[i] {
			t[i][j] = noOffset
		}
	}
	if len(m) != numBases || bytesPerPosition != numBases-1 {
		return t, false
	}

	for refBase, alts := range m {
		if len(refBase) != 1 || len(alts) != bytesPerPosition {
			return t, false
		}
		r, ok := baseIndex(refBase[0])
		if !ok {
			return t, false
		}
		used := make([]bool, bytesPerPosition)
		for altBase, off := range alts {
			if len(altBase) != 1 || altBase == refBase {
				return t, false
			}
			a, ok := baseIndex(altBase[0])
			if !ok || off < 0 || off >= bytesPerPosition || used[off] {
				return t, false
			}
			used[off] = true
			t[r][a] = off
		}
	}
	return t, true
}

// lookup returns the offset for a (ref, alt) pair, or false when the pair has
// no entry: non-ACGT bases or ref == alt.
func (t *offsetTable) lookup(ref, alt byte) (int, bool) {
	r, ok := baseIndex(ref)
	if !ok {
		return 0, false
	}
	a, ok := baseIndex(alt)
	if !ok {
		return 0, false
	}
	off := t[r][a]
	return off, off != noOffset
}
