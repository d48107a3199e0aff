package reminder

// DefaultDaysBefore is the notice policy used when none is configured.
var DefaultDaysBefore = []int{30, 7, 1}

// Policy is the set of days-before-expiry offsets to materialize.
type Policy struct {
	offsets []int
}

// NewPolicy keeps the first occurrence of every positive offset, in order.
// Zero and negative offsets are dropped.
func NewPolicy(daysBefore []int) Policy {
	seen := make(map[int]struct{}, len(daysBefore))
	offsets := make([]int, 0, len(daysBefore))
	for _, d := range daysBefore {
		if d <= 0 {
			continue
		}
		if _, dup := seen[d]; dup {
			continue
		}
		seen[d] = struct{}{}
		offsets = append(offsets, d)
	}
	return Policy{offsets: offsets}
}

func (p Policy) Offsets() []int {
	out := make([]int, len(p.offsets))
	copy(out, p.offsets)
	return out
}

func (p Policy) Empty() bool { return len(p.offsets) == 0 }
