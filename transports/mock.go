package transports

// MockTransport implements a scriptable module for testing.
//
// Bytes in RxData are returned one Read at a time. Each Write moves the next
// entry of Replies into RxData, so a reply only becomes readable after the
// command that provokes it has been sent; Flush discards RxData.
type MockTransport struct {
	RxData    []byte
	Replies   [][]byte
	ReadErr   error
	WriteData []byte
	WriteErr  error
	FlushErr  error
	Closed    bool

	Writes    int // number of Write calls
	Flushes   int // number of Flush calls
	Discarded int // bytes dropped by Flush

	// ReadFunc allows custom read behavior for complex tests
	ReadFunc func(p []byte) (int, error)
}

func (m *MockTransport) Read(p []byte) (int, error) {
	if m.ReadFunc != nil {
		return m.ReadFunc(p)
	}
	if m.ReadErr != nil {
		return 0, m.ReadErr
	}
	n := copy(p, m.RxData)
	m.RxData = m.RxData[n:]
	return n, nil
}

func (m *MockTransport) Write(p []byte) (int, error) {
	if m.WriteErr != nil {
		return 0, m.WriteErr
	}
	m.Writes++
	m.WriteData = append(m.WriteData, p...)
	if len(m.Replies) > 0 {
		m.RxData = append(m.RxData, m.Replies[0]...)
		m.Replies = m.Replies[1:]
	}
	return len(p), nil
}

func (m *MockTransport) Close() error {
	m.Closed = true
	return nil
}

func (m *MockTransport) Flush() error {
	if m.FlushErr != nil {
		return m.FlushErr
	}
	m.Flushes++
	m.Discarded += len(m.RxData)
	m.RxData = nil
	return nil
}
