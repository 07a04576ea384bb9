package sim

// Counter tallies generated actions by kind.
type Counter struct {
	Registrations int
	ByKind        map[ActionKind]int
}

func (c *Counter) AddRegistration() {
	c.Registrations++
}

func (c *Counter) Add(a Action) {
	if c.ByKind == nil {
		c.ByKind = make(map[ActionKind]int)
	}
	c.ByKind[a.Kind]++
}

func (c Counter) Total() int {
	total := c.Registrations
	for _, n := range c.ByKind {
		total += n
	}
	return total
}
