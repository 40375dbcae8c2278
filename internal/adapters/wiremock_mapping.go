package adapters

import (
	"bytes"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"net/http"
	"reflect"
	"regexp"
	"sort"
	"strings"
	"sync"

	"github.com/google/uuid"
)

// Mappings without a priority sort after every explicit one, the way the
// WireMock engine orders them.
const defaultMappingPriority = 5

// wireMockMapping is a single stub in the WireMock JSON mapping format.
type wireMockMapping struct {
	ID       string           `json:"id,omitempty"`
	UUID     string           `json:"uuid,omitempty"`
	Name     string           `json:"name,omitempty"`
	Priority int              `json:"priority,omitempty"`
	Request  wireMockRequest  `json:"request"`
	Response wireMockResponse `json:"response"`
	Source   string           `json:"-"`
	order    int
}

type wireMockRequest struct {
	Method          string                     `json:"method,omitempty"`
	URL             string                     `json:"url,omitempty"`
	URLPath         string                     `json:"urlPath,omitempty"`
	URLPattern      string                     `json:"urlPattern,omitempty"`
	URLPathPattern  string                     `json:"urlPathPattern,omitempty"`
	Headers         map[string]wireMockMatcher `json:"headers,omitempty"`
	QueryParameters map[string]wireMockMatcher `json:"queryParameters,omitempty"`
	BodyPatterns    []wireMockMatcher          `json:"bodyPatterns,omitempty"`
}

type wireMockMatcher struct {
	EqualTo         *string         `json:"equalTo,omitempty"`
	Contains        string          `json:"contains,omitempty"`
	Matches         string          `json:"matches,omitempty"`
	DoesNotMatch    string          `json:"doesNotMatch,omitempty"`
	EqualToJSON     json.RawMessage `json:"equalToJson,omitempty"`
	Absent          bool            `json:"absent,omitempty"`
	CaseInsensitive bool            `json:"caseInsensitive,omitempty"`
}

type wireMockResponse struct {
	Status           int               `json:"status"`
	Headers          map[string]string `json:"headers,omitempty"`
	Body             string            `json:"body,omitempty"`
	Base64Body       string            `json:"base64Body,omitempty"`
	JSONBody         json.RawMessage   `json:"jsonBody,omitempty"`
	FixedDelayMillis int               `json:"fixedDelayMilliseconds,omitempty"`
}

// parseWireMockMappings accepts a single mapping, an array of mappings or
// the {"mappings": [...]} wrapper.
func parseWireMockMappings(data []byte) ([]wireMockMapping, error) {
	trimmed := bytes.TrimSpace(data)
	if len(trimmed) == 0 {
		return nil, fmt.Errorf("empty mapping file")
	}
	if trimmed[0] == '[' {
		var mappings []wireMockMapping
		if err := json.Unmarshal(trimmed, &mappings); err != nil {
			return nil, err
		}
		return mappings, nil
	}
	var wrapper struct {
		Mappings []wireMockMapping `json:"mappings"`
	}
	if err := json.Unmarshal(trimmed, &wrapper); err == nil && len(wrapper.Mappings) > 0 {
		return wrapper.Mappings, nil
	}
	var single wireMockMapping
	if err := json.Unmarshal(trimmed, &single); err != nil {
		return nil, err
	}
	if !single.Request.hasTarget() {
		return nil, fmt.Errorf("mapping has no request")
	}
	return []wireMockMapping{single}, nil
}

func (r wireMockRequest) hasTarget() bool {
	return r.Method != "" || r.URL != "" || r.URLPath != "" || r.URLPattern != "" || r.URLPathPattern != ""
}

func (m *wireMockMapping) normalize(order int) {
	if m.ID == "" {
		m.ID = m.UUID
	}
	if m.ID == "" {
		m.ID = uuid.NewString()
	}
	if m.Priority <= 0 {
		m.Priority = defaultMappingPriority
	}
	if m.Response.Status == 0 {
		m.Response.Status = http.StatusOK
	}
	m.order = order
}

// sortMappings orders by priority; among equal priorities the most
// recently registered mapping wins.
func sortMappings(mappings []wireMockMapping) {
	sort.SliceStable(mappings, func(i, j int) bool {
		if mappings[i].Priority != mappings[j].Priority {
			return mappings[i].Priority < mappings[j].Priority
		}
		return mappings[i].order > mappings[j].order
	})
}

var patternCache sync.Map

func compilePattern(pattern string) (*regexp.Regexp, error) {
	if cached, ok := patternCache.Load(pattern); ok {
		return cached.(*regexp.Regexp), nil
	}
	compiled, err := regexp.Compile("^(?:" + pattern + ")$")
	if err != nil {
		return nil, err
	}
	patternCache.Store(pattern, compiled)
	return compiled, nil
}

func fullMatch(pattern string, value string) bool {
	compiled, err := compilePattern(pattern)
	if err != nil {
		return false
	}
	return compiled.MatchString(value)
}

func (m wireMockMapping) matches(r *http.Request, body []byte) bool {
	req := m.Request
	if req.Method != "" && req.Method != "ANY" && !strings.EqualFold(req.Method, r.Method) {
		return false
	}
	if !req.matchesURL(r) {
		return false
	}
	for name, matcher := range req.Headers {
		values, present := r.Header[http.CanonicalHeaderKey(name)]
		if !matcher.matchesValues(values, present) {
			return false
		}
	}
	query := r.URL.Query()
	for name, matcher := range req.QueryParameters {
		values, present := query[name]
		if !matcher.matchesValues(values, present) {
			return false
		}
	}
	for _, pattern := range req.BodyPatterns {
		if !pattern.matchesBody(body) {
			return false
		}
	}
	return true
}

func (r wireMockRequest) matchesURL(req *http.Request) bool {
	pathOnly := req.URL.Path
	full := req.URL.RequestURI()
	switch {
	case r.URL != "":
		return r.URL == full
	case r.URLPath != "":
		return r.URLPath == pathOnly
	case r.URLPattern != "":
		return fullMatch(r.URLPattern, full)
	case r.URLPathPattern != "":
		return fullMatch(r.URLPathPattern, pathOnly)
	}
	return true
}

func (m wireMockMatcher) matchesValues(values []string, present bool) bool {
	if m.Absent {
		return !present
	}
	if !present {
		return false
	}
	for _, value := range values {
		if m.matchesValue(value) {
			return true
		}
	}
	return false
}

func (m wireMockMatcher) matchesValue(value string) bool {
	compareValue := value
	if m.CaseInsensitive {
		compareValue = strings.ToLower(value)
	}
	if m.EqualTo != nil {
		expected := *m.EqualTo
		if m.CaseInsensitive {
			expected = strings.ToLower(expected)
		}
		if compareValue != expected {
			return false
		}
	}
	if m.Contains != "" && !strings.Contains(value, m.Contains) {
		return false
	}
	if m.Matches != "" && !fullMatch(m.Matches, value) {
		return false
	}
	if m.DoesNotMatch != "" && fullMatch(m.DoesNotMatch, value) {
		return false
	}
	if len(m.EqualToJSON) > 0 && !equalJSON(m.EqualToJSON, []byte(value)) {
		return false
	}
	return true
}

func (m wireMockMatcher) matchesBody(body []byte) bool {
	return m.matchesValue(string(body))
}

// equalJSON compares documents semantically. An expected value given as a
// JSON string holding a document is unwrapped first.
func equalJSON(expected json.RawMessage, actual []byte) bool {
	var want any
	if err := json.Unmarshal(expected, &want); err != nil {
		return false
	}
	if text, ok := want.(string); ok {
		if err := json.Unmarshal([]byte(text), &want); err != nil {
			return false
		}
	}
	var got any
	if err := json.Unmarshal(actual, &got); err != nil {
		return false
	}
	return reflect.DeepEqual(want, got)
}

// body renders the response body of the mapping.
func (r wireMockResponse) body() ([]byte, error) {
	switch {
	case r.Base64Body != "":
		return base64.StdEncoding.DecodeString(r.Base64Body)
	case len(r.JSONBody) > 0:
		return r.JSONBody, nil
	}
	return []byte(r.Body), nil
}
