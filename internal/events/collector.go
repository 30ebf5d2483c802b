package events

// Collector queues the events raised inside one transaction.
// It is owned by a single unit of work and is not safe for concurrent use.
type Collector struct {
	queued []DomainEvent
}

func NewCollector() *Collector {
	return &Collector{}
}

func (c *Collector) Add(events ...DomainEvent) {
	c.queued = append(c.queued, events...)
}

func (c *Collector) Len() int {
	return len(c.queued)
}

// Drain returns the queued events in order and empties the collector.
func (c *Collector) Drain() []DomainEvent {
	out := c.queued
	c.queued = nil
	return out
}

// Snapshot returns a copy of the queued events without draining them.
func (c *Collector) Snapshot() []DomainEvent {
	out := make([]DomainEvent, len(c.queued))
	copy(out, c.queued)
	return out
}
