package observability

import "context"

// MultiObserver delivers each Event to several sinks, in registration order.
type MultiObserver struct {
	observers []Observer
}

// NewMultiObserver combines observers. Nil entries and NoOpObservers are
// skipped, and nested MultiObservers are flattened so each sink is called
// directly.
func NewMultiObserver(observers ...Observer) *MultiObserver {
	m := &MultiObserver{}
	for _, obs := range observers {
		m.add(obs)
	}
	return m
}

func (m *MultiObserver) add(obs Observer) {
	switch o := obs.(type) {
	case nil, NoOpObserver:
	case *MultiObserver:
		m.observers = append(m.observers, o.observers...)
	default:
		m.observers = append(m.observers, obs)
	}
}

// Len reports how many sinks receive events.
func (m *MultiObserver) Len() int {
	return len(m.observers)
}

func (m *MultiObserver) OnEvent(ctx context.Context, event Event) {
	for _, obs := range m.observers {
		obs.OnEvent(ctx, event)
	}
}
