// Package state owns the chat-scoped client state shared across features:
// which chat is open and whether it exists on the server yet. Components
// observe changes through subscriptions instead of reading globals.
package state

import (
	"context"
	"fmt"
	"sync"

	"github.com/sagechat/sage/pkg/api"
)

// Change describes one state transition delivered to subscribers.
type Change struct {
	ChatID    string
	IsNewChat bool
	Title     string
}

// State is the single owner of the chat session identity. It is safe for
// concurrent use; notifications run synchronously on the mutating
// goroutine, in subscription order.
type State struct {
	mu     sync.RWMutex
	chatID string
	isNew  bool
	title  string

	nextSub int
	subs    []subscriber
}

type subscriber struct {
	id int
	fn func(Change)
}

// New creates the client state for a page of the app. A blank chatID marks
// a not-yet-created chat that will be materialized lazily on the first
// submission.
func New(chatID string) *State {
	return &State{
		chatID: chatID,
		isNew:  chatID == "",
	}
}

// ChatID returns the current chat ID, empty while the chat is still new.
func (s *State) ChatID() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.chatID
}

// IsNewChat reports whether the chat has not been created server-side yet.
func (s *State) IsNewChat() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.isNew
}

// Title returns the chat title, if known.
func (s *State) Title() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.title
}

// Subscribe registers fn for state changes and returns an unsubscribe
// function.
func (s *State) Subscribe(fn func(Change)) func() {
	s.mu.Lock()
	defer s.mu.Unlock()

	id := s.nextSub
	s.nextSub++
	s.subs = append(s.subs, subscriber{id: id, fn: fn})

	return func() {
		s.mu.Lock()
		defer s.mu.Unlock()
		for i, sub := range s.subs {
			if sub.id == id {
				s.subs = append(s.subs[:i], s.subs[i+1:]...)
				return
			}
		}
	}
}

// SetTitle records a new chat title and notifies subscribers.
func (s *State) SetTitle(title string) {
	s.mu.Lock()
	s.title = title
	change := Change{ChatID: s.chatID, IsNewChat: s.isNew, Title: title}
	subs := s.snapshot()
	s.mu.Unlock()

	for _, fn := range subs {
		fn(change)
	}
}

// ChatCreator creates a chat server-side. The API client satisfies this.
type ChatCreator interface {
	CreateChat(ctx context.Context) (api.CreateChatResponse, error)
}

// EnsureChat returns the current chat ID, creating the chat first if this
// is still a new one. The new-to-existing transition happens at most once;
// concurrent callers all observe the created chat.
func (s *State) EnsureChat(ctx context.Context, creator ChatCreator) (string, error) {
	s.mu.RLock()
	if !s.isNew {
		id := s.chatID
		s.mu.RUnlock()
		return id, nil
	}
	s.mu.RUnlock()

	s.mu.Lock()
	if !s.isNew {
		id := s.chatID
		s.mu.Unlock()
		return id, nil
	}

	resp, err := creator.CreateChat(ctx)
	if err != nil {
		s.mu.Unlock()
		return "", fmt.Errorf("creating chat lazily: %w", err)
	}
	if !resp.Success || resp.ChatID == "" {
		s.mu.Unlock()
		return "", fmt.Errorf("backend refused chat creation")
	}

	s.chatID = resp.ChatID
	s.isNew = false
	if resp.Title != "" {
		s.title = resp.Title
	}
	change := Change{ChatID: s.chatID, IsNewChat: false, Title: s.title}
	subs := s.snapshot()
	s.mu.Unlock()

	for _, fn := range subs {
		fn(change)
	}
	return resp.ChatID, nil
}

// snapshot copies the subscriber list; callers must hold the lock.
func (s *State) snapshot() []func(Change) {
	subs := make([]func(Change), 0, len(s.subs))
	for _, sub := range s.subs {
		subs = append(subs, sub.fn)
	}
	return subs
}
