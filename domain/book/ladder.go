package book

import "sort"

// ladder keeps one side's price levels strictly ordered best-first:
// descending for bids, ascending for asks. Levels live in a sorted slice
// with a map index for O(1) price lookup; empty levels are dropped.
type ladder struct {
	desc   bool
	levels []*PriceLevel
	index  map[int64]*PriceLevel
}

func newLadder(desc bool) *ladder {
	return &ladder{
		desc:  desc,
		index: make(map[int64]*PriceLevel),
	}
}

// rank is the insertion position keeping best-first order.
func (l *ladder) rank(price int64) int {
	return sort.Search(len(l.levels), func(i int) bool {
		if l.desc {
			return l.levels[i].Price <= price
		}
		return l.levels[i].Price >= price
	})
}

func (l *ladder) getOrCreate(price int64) *PriceLevel {
	if lvl, ok := l.index[price]; ok {
		return lvl
	}
	lvl := &PriceLevel{Price: price}
	i := l.rank(price)
	l.levels = append(l.levels, nil)
	copy(l.levels[i+1:], l.levels[i:])
	l.levels[i] = lvl
	l.index[price] = lvl
	return lvl
}

// best returns the top level, nil when the side is empty.
func (l *ladder) best() *PriceLevel {
	if len(l.levels) == 0 {
		return nil
	}
	return l.levels[0]
}

// drop removes an emptied level.
func (l *ladder) drop(price int64) {
	if _, ok := l.index[price]; !ok {
		return
	}
	i := l.rank(price)
	l.levels = append(l.levels[:i], l.levels[i+1:]...)
	delete(l.index, price)
}

// walk visits levels best-first.
func (l *ladder) walk(fn func(*PriceLevel)) {
	for _, lvl := range l.levels {
		fn(lvl)
	}
}
