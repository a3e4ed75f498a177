package profile

import (
	"sync"
	"time"

	"sounding_parser/internal/parsers/ttaa"
	"sounding_parser/internal/parsers/ttbb"
	"sounding_parser/internal/registry"
	"sounding_parser/internal/sounding"
)

// Key identifies one ascent. Day and Hour are sounding.Unknown when the header
// was unreadable.
type Key struct {
	Station string
	Day     int
	Hour    int
}

func keyOf(station string, day, hour *int) Key {
	k := Key{Station: station, Day: sounding.Unknown, Hour: sounding.Unknown}
	if day != nil {
		k.Day = *day
	}
	if hour != nil {
		k.Hour = *hour
	}
	return k
}

// Collated is a profile assembled by the Collator.
type Collated struct {
	Key
	Profile  *sounding.Profile
	Errors   []error
	Complete bool   // both parts were seen
	TTAA     string // raw report text as received
	TTBB     string
}

type pending struct {
	aa     *ttaa.Section
	bb     *ttbb.Section
	aaText string
	bbText string
	first  time.Time
}

// Collator pairs TTAA and TTBB parts that arrive as separate messages.
// It is safe for concurrent use.
type Collator struct {
	mu      sync.Mutex
	pending map[Key]*pending
	now     func() time.Time
}

// NewCollator creates an empty Collator.
func NewCollator() *Collator {
	return &Collator{
		pending: make(map[Key]*pending),
		now:     time.Now,
	}
}

// Add feeds a registry result to the collator. It returns the assembled
// profile once both parts of an ascent have been seen. Results of other types
// are ignored.
func (c *Collator) Add(r registry.Result) (*Collated, bool) {
	switch v := r.(type) {
	case *ttaa.Result:
		return c.AddTTAA(v.Section, v.Raw)
	case *ttbb.Result:
		return c.AddTTBB(v.Section, v.Raw)
	default:
		return nil, false
	}
}

// AddTTAA records a TTAA part. A later TTAA for the same ascent replaces it.
func (c *Collator) AddTTAA(s ttaa.Section, raw string) (*Collated, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	k := keyOf(s.Station, s.Day, s.Hour)
	p := c.entry(k)
	p.aa = &s
	p.aaText = raw
	return c.complete(k, p)
}

// AddTTBB records a TTBB part. A later TTBB for the same ascent replaces it.
func (c *Collator) AddTTBB(s ttbb.Section, raw string) (*Collated, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	k := keyOf(s.Station, s.Day, s.Hour)
	p := c.entry(k)
	p.bb = &s
	p.bbText = raw
	return c.complete(k, p)
}

func (c *Collator) entry(k Key) *pending {
	p, ok := c.pending[k]
	if !ok {
		p = &pending{first: c.now()}
		c.pending[k] = p
	}
	return p
}

func (c *Collator) complete(k Key, p *pending) (*Collated, bool) {
	if p.aa == nil || p.bb == nil {
		return nil, false
	}
	delete(c.pending, k)

	prof, errs := Assemble(*p.aa, p.bb)
	return &Collated{
		Key:      k,
		Profile:  prof,
		Errors:   errs,
		Complete: true,
		TTAA:     p.aaText,
		TTBB:     p.bbText,
	}, true
}

// Flush removes ascents that have waited longer than maxAge. Those with a
// TTAA part are returned as TTAA-only profiles; TTBB parts without a TTAA are
// dropped and counted.
func (c *Collator) Flush(maxAge time.Duration) (ready []Collated, dropped int) {
	c.mu.Lock()
	defer c.mu.Unlock()

	cutoff := c.now().Add(-maxAge)
	for k, p := range c.pending {
		if p.first.After(cutoff) {
			continue
		}
		delete(c.pending, k)

		if p.aa == nil {
			dropped++
			continue
		}
		prof, errs := Assemble(*p.aa, nil)
		ready = append(ready, Collated{Key: k, Profile: prof, Errors: errs, TTAA: p.aaText})
	}
	return ready, dropped
}

// Pending returns the number of ascents waiting for their other part.
func (c *Collator) Pending() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.pending)
}
