// Package conversation provides the conversation message store.
//
// Information Hiding:
// - The ordered message log and the tool-result index form one atomic unit;
//   every mutation path updates both or neither
// - Index structure hidden behind query operations
// - Thread-safe access via RWMutex hidden behind the API
package conversation

import (
	"encoding/json"
	"errors"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/mkarlsen/daedalus/model"
)

// ErrIndexOutOfRange is returned by RewindTo for a user-message index
// outside [0, userMessageCount).
var ErrIndexOutOfRange = errors.New("user message index out of range")

// Store owns the ordered message list and a secondary index from tool-call
// identifier to the position of its result message, enabling constant-time
// "was this read" queries without a linear scan.
type Store struct {
	mu          sync.RWMutex
	messages    []model.Message
	resultIndex map[string]int
}

// NewStore creates an empty conversation store.
func NewStore() *Store {
	return &Store{
		resultIndex: make(map[string]int),
	}
}

// Append adds a message, assigning an id and timestamp if absent. Tool-result
// messages are indexed by their tool-call identifier atomically with the
// append.
func (s *Store) Append(msg model.Message) model.Message {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.appendLocked(msg)
}

// AppendMany adds messages in order.
func (s *Store) AppendMany(msgs []model.Message) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, msg := range msgs {
		s.appendLocked(msg)
	}
}

func (s *Store) appendLocked(msg model.Message) model.Message {
	if msg.ID == "" {
		msg.ID = uuid.New().String()
	}
	if msg.CreatedAt.IsZero() {
		msg.CreatedAt = time.Now()
	}
	s.messages = append(s.messages, msg)
	if msg.IsToolResult() {
		s.resultIndex[msg.ToolCallID] = len(s.messages) - 1
	}
	return msg
}

// ReplaceAll swaps the entire message list, assigning ids as needed and
// rebuilding the tool-result index from scratch.
func (s *Store) ReplaceAll(msgs []model.Message) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.messages = nil
	s.resultIndex = make(map[string]int)
	for _, msg := range msgs {
		s.appendLocked(msg)
	}
}

// RemoveWhere deletes every message matching the predicate and returns the
// removed count. The tool-result index is rebuilt so it never references a
// removed message or a stale position.
func (s *Store) RemoveWhere(pred func(model.Message) bool) int {
	s.mu.Lock()
	defer s.mu.Unlock()

	kept := s.messages[:0]
	removed := 0
	for _, msg := range s.messages {
		if pred(msg) {
			removed++
			continue
		}
		kept = append(kept, msg)
	}
	if removed > 0 {
		s.messages = kept
		s.rebuildIndexLocked()
	}
	return removed
}

func (s *Store) rebuildIndexLocked() {
	s.resultIndex = make(map[string]int)
	for i, msg := range s.messages {
		if msg.IsToolResult() {
			s.resultIndex[msg.ToolCallID] = i
		}
	}
}

// All returns an ordered snapshot of the messages.
func (s *Store) All() []model.Message {
	s.mu.RLock()
	defer s.mu.RUnlock()

	snapshot := make([]model.Message, len(s.messages))
	copy(snapshot, s.messages)
	return snapshot
}

// Len returns the number of stored messages.
func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.messages)
}

// SystemMessage returns the first message if it has the system role.
func (s *Store) SystemMessage() (model.Message, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if len(s.messages) > 0 && s.messages[0].Role == model.RoleSystem {
		return s.messages[0], true
	}
	return model.Message{}, false
}

// LastUserMessage returns the most recent user-role message.
func (s *Store) LastUserMessage() (model.Message, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	for i := len(s.messages) - 1; i >= 0; i-- {
		if s.messages[i].Role == model.RoleUser {
			return s.messages[i], true
		}
	}
	return model.Message{}, false
}

// RewindTo truncates history to just before the Nth user message (counting
// only user-role messages) and returns that message's content. A leading
// system message survives truncation. Fails with ErrIndexOutOfRange when the
// index is not within [0, userMessageCount).
func (s *Store) RewindTo(userIndex int) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if userIndex < 0 {
		return "", ErrIndexOutOfRange
	}
	seen := 0
	for i, msg := range s.messages {
		if msg.Role != model.RoleUser {
			continue
		}
		if seen == userIndex {
			content := msg.Content
			s.messages = s.messages[:i]
			s.rebuildIndexLocked()
			return content, nil
		}
		seen++
	}
	return "", ErrIndexOutOfRange
}

// resultPayload is the portion of a tool-result message consulted by read
// queries. Results are stored as the JSON encoding of a tool result.
type resultPayload struct {
	Success bool `json:"success"`
}

// HasSuccessfulReadFor reports whether a read-like tool call referencing the
// path has a successful result in the conversation. Lookup goes through the
// tool-result index, not a scan of result messages.
func (s *Store) HasSuccessfulReadFor(path string) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()

	for _, msg := range s.messages {
		for _, call := range msg.ToolCalls {
			if !model.IsReadTool(call.Function.Name) {
				continue
			}
			if !referencesPath(call.Function.Arguments, path) {
				continue
			}
			pos, ok := s.resultIndex[call.ID]
			if !ok {
				continue
			}
			var payload resultPayload
			if err := json.Unmarshal([]byte(s.messages[pos].Content), &payload); err != nil {
				continue
			}
			if payload.Success {
				return true
			}
		}
	}
	return false
}

func referencesPath(args map[string]any, path string) bool {
	for _, p := range model.CallPaths(args) {
		if p == path {
			return true
		}
	}
	return false
}

// ForCompaction returns the messages that feed summarization: everything
// except the leading system message and any ephemeral-flagged messages.
func (s *Store) ForCompaction() []model.Message {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]model.Message, 0, len(s.messages))
	for i, msg := range s.messages {
		if i == 0 && msg.Role == model.RoleSystem {
			continue
		}
		if msg.IsEphemeral() {
			continue
		}
		out = append(out, msg)
	}
	return out
}
