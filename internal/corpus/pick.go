package corpus

import (
	"context"
	"math/rand/v2"
)

// Rand is the randomness Pick consumes. *rand.Rand satisfies it.
type Rand interface {
	Int64N(n int64) int64
}

type globalRand struct{}

func (globalRand) Int64N(n int64) int64 { return rand.Int64N(n) }

// DefaultRand draws from the process-wide source.
var DefaultRand Rand = globalRand{}

// Weighted selects one template with probability total/sum over the
// templates whose total is positive. Templates with total <= 0 are never
// chosen. It returns false when nothing has weight.
//
// Selection walks the slice in order, so a fixed input order and a fixed
// draw always give the same template.
func Weighted(templates []Template, rng Rand) (Template, bool) {
	var sum int64
	for _, t := range templates {
		if t.Total > 0 {
			sum += t.Total
		}
	}
	if sum <= 0 {
		return Template{}, false
	}

	r := rng.Int64N(sum)
	for _, t := range templates {
		if t.Total <= 0 {
			continue
		}
		if r < t.Total {
			return t, true
		}
		r -= t.Total
	}
	// unreachable: r < sum
	return Template{}, false
}

// Pick selects an eligible template weighted by total.
func (c *Corpus) Pick(ctx context.Context, f Filter, rng Rand) (Template, error) {
	templates, err := c.ListEligible(ctx, f)
	if err != nil {
		return Template{}, err
	}
	t, ok := Weighted(templates, rng)
	if !ok {
		return Template{}, ErrNoEligible
	}
	return t, nil
}

// Random selects an eligible template uniformly, ignoring weight.
func (c *Corpus) Random(ctx context.Context, f Filter, rng Rand) (Template, error) {
	templates, err := c.ListEligible(ctx, f)
	if err != nil {
		return Template{}, err
	}
	if len(templates) == 0 {
		return Template{}, ErrNoEligible
	}
	return templates[rng.Int64N(int64(len(templates)))], nil
}
