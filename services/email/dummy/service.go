package dummymail

import (
	"sync"

	"github.com/trezcool/shule/core"
)

var (
	// SentMessages records everything "sent"; tests assert on it.
	SentMessages = make([]core.EmailMessage, 0)
	mu           sync.Mutex
)

type service struct {
	conf *core.Config
}

var _ core.EmailService = (*service)(nil)

// NewService returns a recording EmailService for tests.
// Messages are rendered and recorded synchronously so tests need no waiting.
func NewService(conf *core.Config) core.EmailService {
	return &service{conf: conf}
}

func (svc service) SendMessages(messages ...*core.EmailMessage) {
	mu.Lock()
	defer mu.Unlock()
	for _, msg := range messages {
		if err := msg.Render(svc.conf); err != nil {
			continue
		}
		if msg.HasRecipients() && msg.HasContent() {
			SentMessages = append(SentMessages, *msg)
		}
	}
}

// Reset clears the recorded messages between tests.
func Reset() {
	mu.Lock()
	defer mu.Unlock()
	SentMessages = SentMessages[:0]
}
