package monetization

// PaymentStream is one frame's ordered set of payment sessions. All access is
// serialized by the owning manager's lock.
type PaymentStream struct {
	frameID  int
	order    []string
	sessions map[string]*PaymentSession
}

func newPaymentStream(frameID int) *PaymentStream {
	return &PaymentStream{
		frameID:  frameID,
		sessions: make(map[string]*PaymentSession),
	}
}

func (s *PaymentStream) FrameID() int { return s.frameID }

func (s *PaymentStream) session(sessionID string) (*PaymentSession, bool) {
	session, ok := s.sessions[sessionID]
	return session, ok
}

func (s *PaymentStream) add(session *PaymentSession) {
	if _, ok := s.sessions[session.ID()]; ok {
		return
	}
	s.sessions[session.ID()] = session
	s.order = append(s.order, session.ID())
}

func (s *PaymentStream) remove(sessionID string) {
	if _, ok := s.sessions[sessionID]; !ok {
		return
	}
	delete(s.sessions, sessionID)
	for i, id := range s.order {
		if id == sessionID {
			s.order = append(s.order[:i], s.order[i+1:]...)
			break
		}
	}
}

func (s *PaymentStream) ordered() []*PaymentSession {
	out := make([]*PaymentSession, 0, len(s.order))
	for _, id := range s.order {
		out = append(out, s.sessions[id])
	}
	return out
}
