package store

import "strings"

// minContainedRunes is the shortest text that counts as restated inside a
// longer one.
const minContainedRunes = 12

// Similarity returns a case-insensitive similarity score in [0,1].
//
// The score is the Ratcliff/Obershelp ratio 2*M/T, where M is the number of
// characters in matching blocks and T the total length of both strings. A
// text of reasonable length that appears verbatim inside the other, and
// covers at least half of it, scores 1: it is the same statement with
// extra detail.
func Similarity(a, b string) float64 {
	la, lb := fold(a), fold(b)
	if contained(la, lb) {
		return 1
	}
	return ratio(la, lb)
}

// Ratio is Similarity without the containment rule. It is 1 only for texts
// that are equal ignoring case and surrounding space.
func Ratio(a, b string) float64 {
	return ratio(fold(a), fold(b))
}

func fold(s string) []rune {
	return []rune(strings.ToLower(strings.TrimSpace(s)))
}

func ratio(a, b []rune) float64 {
	total := len(a) + len(b)
	if total == 0 {
		return 1
	}
	return 2 * float64(newMatcher(a, b).matches()) / float64(total)
}

func contained(a, b []rune) bool {
	short, long := a, b
	if len(short) > len(long) {
		short, long = long, short
	}
	if len(short) < minContainedRunes || 2*len(short) < len(long) {
		return false
	}
	return strings.Contains(string(long), string(short))
}

// matcher finds matching blocks the way difflib.SequenceMatcher does, with
// no junk function and the popular-element heuristic for long inputs.
type matcher struct {
	a, b []rune
	b2j  map[rune][]int
}

func newMatcher(a, b []rune) *matcher {
	m := &matcher{a: a, b: b, b2j: make(map[rune][]int)}
	for j, r := range b {
		m.b2j[r] = append(m.b2j[r], j)
	}
	if n := len(b); n >= 200 {
		ntest := n/100 + 1
		for r, idxs := range m.b2j {
			if len(idxs) > ntest {
				delete(m.b2j, r)
			}
		}
	}
	return m
}

func (m *matcher) longest(alo, ahi, blo, bhi int) (int, int, int) {
	besti, bestj, bestsize := alo, blo, 0
	j2len := map[int]int{}
	for i := alo; i < ahi; i++ {
		next := map[int]int{}
		for _, j := range m.b2j[m.a[i]] {
			if j < blo {
				continue
			}
			if j >= bhi {
				break
			}
			k := j2len[j-1] + 1
			next[j] = k
			if k > bestsize {
				besti, bestj, bestsize = i-k+1, j-k+1, k
			}
		}
		j2len = next
	}
	for besti > alo && bestj > blo && m.a[besti-1] == m.b[bestj-1] {
		besti, bestj, bestsize = besti-1, bestj-1, bestsize+1
	}
	for besti+bestsize < ahi && bestj+bestsize < bhi && m.a[besti+bestsize] == m.b[bestj+bestsize] {
		bestsize++
	}
	return besti, bestj, bestsize
}

// matches returns the total size of all matching blocks.
func (m *matcher) matches() int {
	type span struct{ alo, ahi, blo, bhi int }
	queue := []span{{0, len(m.a), 0, len(m.b)}}
	total := 0
	for len(queue) > 0 {
		s := queue[len(queue)-1]
		queue = queue[:len(queue)-1]

		i, j, k := m.longest(s.alo, s.ahi, s.blo, s.bhi)
		if k == 0 {
			continue
		}
		total += k
		if s.alo < i && s.blo < j {
			queue = append(queue, span{s.alo, i, s.blo, j})
		}
		if i+k < s.ahi && j+k < s.bhi {
			queue = append(queue, span{i + k, s.ahi, j + k, s.bhi})
		}
	}
	return total
}
