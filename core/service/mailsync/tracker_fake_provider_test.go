package mailsync

import (
	"context"
	"sync"

	"golang.org/x/oauth2"

	"tracker_server/core/domain"
	"tracker_server/core/port/out"
)

// fakeProvider serves scripted messages in insertion order.
type fakeProvider struct {
	mu sync.Mutex

	order    []string
	messages map[string]*domain.MailMessage
	bodies   map[string]string

	listErr     error
	metadataErr map[string]error
	bodyErr     map[string]error

	lastQuery out.CandidateQuery
	listCalls int
	metaCalls int
	bodyCalls map[string]int
}

func newFakeProvider() *fakeProvider {
	return &fakeProvider{
		messages:    make(map[string]*domain.MailMessage),
		bodies:      make(map[string]string),
		metadataErr: make(map[string]error),
		bodyErr:     make(map[string]error),
		bodyCalls:   make(map[string]int),
	}
}

func (p *fakeProvider) add(msg domain.MailMessage) {
	p.order = append(p.order, msg.ID)
	p.messages[msg.ID] = &msg
}

func (p *fakeProvider) ListCandidateMessages(ctx context.Context, token *oauth2.Token, q out.CandidateQuery) ([]out.MessageRef, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.listCalls++
	p.lastQuery = q
	if p.listErr != nil {
		return nil, p.listErr
	}
	refs := make([]out.MessageRef, 0, len(p.order))
	for _, id := range p.order {
		refs = append(refs, out.MessageRef{ID: id, ThreadID: p.messages[id].ThreadID})
	}
	return refs, nil
}

func (p *fakeProvider) FetchMetadata(ctx context.Context, token *oauth2.Token, ref out.MessageRef) (*domain.MailMessage, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.metaCalls++
	if err := p.metadataErr[ref.ID]; err != nil {
		return nil, err
	}
	msg := *p.messages[ref.ID]
	return &msg, nil
}

func (p *fakeProvider) FetchFullBody(ctx context.Context, token *oauth2.Token, messageID string) (string, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.bodyCalls[messageID]++
	if err := p.bodyErr[messageID]; err != nil {
		return "", err
	}
	return p.bodies[messageID], nil
}

func (p *fakeProvider) calls() (list, meta int) {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.listCalls, p.metaCalls
}
