package chat

// connectionSet keeps a room's members in registration order. It is not
// synchronized; the owning Room serializes access.
type connectionSet struct {
	order []*Connection
	byID  map[string]*Connection
}

func newConnectionSet() *connectionSet {
	return &connectionSet{byID: make(map[string]*Connection)}
}

// add appends c unless a connection with the same id is already present.
func (s *connectionSet) add(c *Connection) bool {
	if _, ok := s.byID[c.ID()]; ok {
		return false
	}
	s.byID[c.ID()] = c
	s.order = append(s.order, c)
	return true
}

func (s *connectionSet) remove(c *Connection) bool {
	if _, ok := s.byID[c.ID()]; !ok {
		return false
	}
	delete(s.byID, c.ID())
	for i, member := range s.order {
		if member.ID() == c.ID() {
			s.order = append(s.order[:i], s.order[i+1:]...)
			break
		}
	}
	return true
}

func (s *connectionSet) contains(id string) bool {
	_, ok := s.byID[id]
	return ok
}

func (s *connectionSet) len() int {
	return len(s.order)
}

// snapshot returns the members in registration order.
func (s *connectionSet) snapshot() []*Connection {
	out := make([]*Connection, len(s.order))
	copy(out, s.order)
	return out
}

// random returns one member chosen by pick, which must return a value in [0, n).
func (s *connectionSet) random(pick func(n int) int) *Connection {
	if len(s.order) == 0 {
		return nil
	}
	return s.order[pick(len(s.order))]
}

func (s *connectionSet) clear() []*Connection {
	out := s.order
	s.order = nil
	s.byID = make(map[string]*Connection)
	return out
}
