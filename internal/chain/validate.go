package chain

import (
	"errors"
	"fmt"
)

// ErrCorrupt is returned by Validate when a chain breaks one of its
// structural rules.
var ErrCorrupt = errors.New("chain corrupt")

// Validate checks the chain's links, node count and segment geometry.
func (e *Engine) Validate(chain ChainID) error {
	rec, ok := e.chains[chain]
	if !ok {
		return fmt.Errorf("%w: %q", ErrChainNotFound, chain)
	}

	if rec.count == 0 {
		return fmt.Errorf("%w: %q is empty but registered", ErrCorrupt, chain)
	}
	if h := e.nodes[rec.head]; h == nil || h.Prev != 0 {
		return fmt.Errorf("%w: head of %q has a predecessor", ErrCorrupt, chain)
	}
	if t := e.nodes[rec.tail]; t == nil || t.Next != 0 {
		return fmt.Errorf("%w: tail of %q has a successor", ErrCorrupt, chain)
	}

	count := 0
	segments := 0
	var prev NodeID
	for id := rec.head; id != 0; {
		n, ok := e.nodes[id]
		if !ok {
			return fmt.Errorf("%w: %q links to missing %s", ErrCorrupt, chain, id)
		}
		if n.Chain != chain {
			return fmt.Errorf("%w: %s is tagged %q inside %q", ErrCorrupt, id, n.Chain, chain)
		}
		if n.Prev != prev {
			return fmt.Errorf("%w: %s prev is %s, expected %s", ErrCorrupt, id, n.Prev, prev)
		}
		if n.point == nil || n.point.Position != n.Position {
			return fmt.Errorf("%w: %s marker is stale", ErrCorrupt, id)
		}
		count++
		if count > rec.count {
			return fmt.Errorf("%w: %q has more nodes than recorded", ErrCorrupt, chain)
		}

		if n.Next == 0 {
			if n.out != nil {
				return fmt.Errorf("%w: tail %s owns a segment", ErrCorrupt, id)
			}
		} else {
			next, ok := e.nodes[n.Next]
			if !ok {
				return fmt.Errorf("%w: %s links to missing %s", ErrCorrupt, id, n.Next)
			}
			if n.out == nil {
				return fmt.Errorf("%w: %s has no segment to %s", ErrCorrupt, id, n.Next)
			}
			if n.out.Start != n.Position || n.out.End != next.Position {
				return fmt.Errorf("%w: segment %s→%s is stale", ErrCorrupt, id, n.Next)
			}
			segments++
		}
		prev = id
		id = n.Next
	}

	if prev != rec.tail {
		return fmt.Errorf("%w: forward walk of %q ends at %s, tail is %s", ErrCorrupt, chain, prev, rec.tail)
	}
	if count != rec.count {
		return fmt.Errorf("%w: %q has %d nodes, recorded %d", ErrCorrupt, chain, count, rec.count)
	}
	if segments != max(count-1, 0) {
		return fmt.Errorf("%w: %q has %d segments for %d nodes", ErrCorrupt, chain, segments, count)
	}

	back, _ := e.Backward(chain)
	fwd, _ := e.Nodes(chain)
	for i := range fwd {
		if fwd[i] != back[len(back)-1-i] {
			return fmt.Errorf("%w: forward and backward walks of %q differ", ErrCorrupt, chain)
		}
	}
	return nil
}

// ValidateAll validates every chain.
func (e *Engine) ValidateAll() error {
	var errs []error
	for id := range e.chains {
		if err := e.Validate(id); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
