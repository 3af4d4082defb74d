package matcher

// automaton is an Aho-Corasick trie. Node 0 is the root. After link() every node's out
// list also contains the patterns of its failure chain, so a scan reports all matches
// ending at a position by reading one list.
type automaton struct {
	nodes []acNode
}

type acNode struct {
	next map[rune]int32
	fail int32
	out  []int32
}

func newAutomaton() *automaton {
	return &automaton{nodes: []acNode{{next: make(map[rune]int32)}}}
}

func (a *automaton) insert(p []rune, id int32) {
	cur := int32(0)
	for _, r := range p {
		nxt, ok := a.nodes[cur].next[r]
		if !ok {
			nxt = int32(len(a.nodes))
			a.nodes = append(a.nodes, acNode{next: make(map[rune]int32)})
			a.nodes[cur].next[r] = nxt
		}
		cur = nxt
	}
	a.nodes[cur].out = append(a.nodes[cur].out, id)
}

// link computes failure links breadth-first. A node's failure target is always
// shallower, so its out list is final by the time it is merged.
func (a *automaton) link() {
	queue := make([]int32, 0, len(a.nodes))
	for _, child := range a.nodes[0].next {
		a.nodes[child].fail = 0
		queue = append(queue, child)
	}
	for head := 0; head < len(queue); head++ {
		cur := queue[head]
		for r, child := range a.nodes[cur].next {
			f := a.nodes[cur].fail
			for {
				if nxt, ok := a.nodes[f].next[r]; ok && nxt != child {
					a.nodes[child].fail = nxt
					break
				}
				if f == 0 {
					a.nodes[child].fail = 0
					break
				}
				f = a.nodes[f].fail
			}
			if inherited := a.nodes[a.nodes[child].fail].out; len(inherited) > 0 {
				merged := make([]int32, 0, len(a.nodes[child].out)+len(inherited))
				merged = append(merged, a.nodes[child].out...)
				a.nodes[child].out = append(merged, inherited...)
			}
			queue = append(queue, child)
		}
	}
}

func (a *automaton) step(state int32, r rune) int32 {
	for {
		if nxt, ok := a.nodes[state].next[r]; ok {
			return nxt
		}
		if state == 0 {
			return 0
		}
		state = a.nodes[state].fail
	}
}
