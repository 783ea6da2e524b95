package evaluator

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"

	"github.com/google/uuid"

	"guardrail/internal/logging"
)

// MockClient serves canned responses from a JSON file keyed by guideline
// title, for offline runs and tests. The first key found inside the prompt
// wins; unmatched prompts get the default response.
type MockClient struct {
	responses map[string]string
	keys      []string // match order: longest first, then lexical
	fallback  string
	logger    logging.Logger

	mu       sync.Mutex
	uploads  map[string]string // ref id -> original path
	evalLog  []string          // prompts seen, in call order
}

var _ Evaluator = (*MockClient)(nil)

type mockResponseFile struct {
	Default   string            `json:"default"`
	Responses map[string]string `json:"responses"`
}

// NewMockClient loads canned responses from path. An empty path yields a
// client that always answers with a compliant verdict.
func NewMockClient(path string, logger logging.Logger) (*MockClient, error) {
	client := &MockClient{
		responses: map[string]string{},
		fallback:  `{"result": 1, "explanation": "Mock evaluation: no canned response configured."}`,
		logger:    logging.OrNop(logger),
		uploads:   map[string]string{},
	}
	if path == "" {
		return client, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read mock responses %s: %w", path, err)
	}
	var parsed mockResponseFile
	if err := json.Unmarshal(data, &parsed); err != nil {
		return nil, fmt.Errorf("parse mock responses %s: %w", path, err)
	}
	if parsed.Responses != nil {
		client.responses = parsed.Responses
	}
	if parsed.Default != "" {
		client.fallback = parsed.Default
	}
	client.keys = orderedKeys(client.responses)
	return client, nil
}

// orderedKeys fixes the match order: the most specific (longest) key wins
// when several occur in one prompt, and ties break lexically so runs are
// reproducible.
func orderedKeys(responses map[string]string) []string {
	keys := make([]string, 0, len(responses))
	for key := range responses {
		keys = append(keys, key)
	}
	sort.Slice(keys, func(i, j int) bool {
		if len(keys[i]) != len(keys[j]) {
			return len(keys[i]) > len(keys[j])
		}
		return keys[i] < keys[j]
	})
	return keys
}

// UploadDocument records the path and hands back a synthetic ref.
func (m *MockClient) UploadDocument(ctx context.Context, path string) (DocumentRef, error) {
	if _, err := os.Stat(path); err != nil {
		return DocumentRef{}, fmt.Errorf("stat document: %w", err)
	}
	ref := DocumentRef{ID: "mock-" + uuid.NewString(), Name: filepath.Base(path)}
	m.mu.Lock()
	m.uploads[ref.ID] = path
	m.mu.Unlock()
	m.logger.Debug("mock upload %s -> %s", path, ref.ID)
	return ref, nil
}

// DeleteDocument forgets a synthetic ref.
func (m *MockClient) DeleteDocument(ctx context.Context, ref DocumentRef) error {
	m.mu.Lock()
	delete(m.uploads, ref.ID)
	m.mu.Unlock()
	return nil
}

// Evaluate matches canned response keys against the prompt.
func (m *MockClient) Evaluate(ctx context.Context, refs []DocumentRef, prompt string) (string, error) {
	select {
	case <-ctx.Done():
		return "", ctx.Err()
	default:
	}

	m.mu.Lock()
	m.evalLog = append(m.evalLog, prompt)
	m.mu.Unlock()

	for _, key := range m.keys {
		if strings.Contains(prompt, key) {
			return m.responses[key], nil
		}
	}
	return m.fallback, nil
}

// EvaluationCount reports how many Evaluate calls the client has served.
func (m *MockClient) EvaluationCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.evalLog)
}
