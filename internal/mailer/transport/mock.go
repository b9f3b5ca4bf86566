package transport

import (
	"sync"
	"time"

	"github.com/jordan-wright/email"
)

const defaultWaitTimeout = time.Second * 10

type MockMailTransport struct {
	sync.RWMutex
	mails      []*email.Email
	OnMailSent func(mail email.Email) // non pointer to prevent concurrent read errors
	wg         sync.WaitGroup
	expected   int
}

func NewMock() *MockMailTransport {
	return &MockMailTransport{
		OnMailSent: func(_ email.Email) {},
	}
}

func (m *MockMailTransport) Send(mail *email.Email) error {
	m.Lock()
	defer m.Unlock()

	m.mails = append(m.mails, mail)
	m.OnMailSent(*mail)

	// only mails announced through Expect release Wait
	if m.expected > 0 {
		m.expected--
		m.wg.Done()
	}

	return nil
}

func (m *MockMailTransport) GetLastSentMail() *email.Email {
	m.RLock()
	defer m.RUnlock()

	if len(m.mails) == 0 {
		return nil
	}

	return m.mails[len(m.mails)-1]
}

func (m *MockMailTransport) GetSentMails() []*email.Email {
	m.RLock()
	defer m.RUnlock()

	return m.mails
}

// Expect adds the number of mails a test is about to wait for.
func (m *MockMailTransport) Expect(mailCnt int) {
	m.Lock()
	defer m.Unlock()

	m.expected += mailCnt
	m.wg.Add(mailCnt)
}

// Wait blocks until all expected mails were sent or the timeout hits.
func (m *MockMailTransport) Wait() bool {
	return m.WaitWithTimeout(defaultWaitTimeout)
}

func (m *MockMailTransport) WaitWithTimeout(timeout time.Duration) bool {
	done := make(chan struct{})
	go func() {
		m.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		return true
	case <-time.After(timeout):
		return false
	}
}
