package alerting

import (
	"bytes"
	"context"
	"crypto/tls"
	"encoding/json"
	"io"
	"net/http"
	"net/smtp"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/santhosh-tekuri/jsonschema/v6"
	"github.com/stretchr/testify/require"

	"github.com/Kargones/errwatch/internal/entity/monitoring"
)

// mockHTTPClient записывает тела запросов и отвечает через DoFunc.
type mockHTTPClient struct {
	mu       sync.Mutex
	DoFunc   func(req *http.Request) (*http.Response, error)
	Requests []*http.Request
	Bodies   [][]byte
}

func (m *mockHTTPClient) Do(req *http.Request) (*http.Response, error) {
	body, _ := io.ReadAll(req.Body)
	req.Body = io.NopCloser(bytes.NewReader(body))

	m.mu.Lock()
	m.Requests = append(m.Requests, req)
	m.Bodies = append(m.Bodies, body)
	m.mu.Unlock()

	if m.DoFunc != nil {
		return m.DoFunc(req)
	}
	return okResponse(), nil
}

func (m *mockHTTPClient) calls() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.Requests)
}

func okResponse() *http.Response {
	return &http.Response{StatusCode: http.StatusOK, Body: io.NopCloser(strings.NewReader(`ok`))}
}

func statusResponse(code int, body string) *http.Response {
	return &http.Response{StatusCode: code, Body: io.NopCloser(strings.NewReader(body))}
}

// noSleep убирает задержки между повторами.
func noSleep(p *poster) {
	p.sleep = func(ctx context.Context, _ time.Duration) error { return ctx.Err() }
}

func testAlert() monitoring.AlertEvent {
	ts := time.Date(2026, 3, 14, 9, 26, 53, 589_000_000, time.UTC)
	return monitoring.AlertEvent{
		ID:        monitoring.AlertID("error_spike_network", ts),
		Key:       "error_spike_network",
		Type:      monitoring.AlertErrorSpike,
		Severity:  monitoring.SeverityHigh,
		Title:     "Всплеск ошибок: network",
		Message:   "12 новых ошибок категории network",
		Data:      map[string]any{"category": "network", "count": 12},
		Timestamp: ts,
		Channels:  monitoring.AllChannels(),
	}
}

func loadSchema(t *testing.T, name string) *jsonschema.Schema {
	t.Helper()
	compiler := jsonschema.NewCompiler()
	schema, err := compiler.Compile(filepath.Join("testdata", "schema", name))
	require.NoError(t, err, "не удалось загрузить JSON Schema")
	return schema
}

func validateAgainst(t *testing.T, schema *jsonschema.Schema, body []byte) {
	t.Helper()
	var doc any
	require.NoError(t, json.Unmarshal(body, &doc))
	require.NoError(t, schema.Validate(doc))
}

// mockSMTPClient реализует SMTPClient для тестирования.
type mockSMTPClient struct {
	startTLSCalled bool
	authCalled     bool
	mailFrom       string
	rcptTo         []string
	messageData    string
	closeCalled    bool

	authErr    error
	rcptErr    error
	extensions map[string]string
}

func (m *mockSMTPClient) StartTLS(*tls.Config) error {
	m.startTLSCalled = true
	return nil
}

func (m *mockSMTPClient) Auth(smtp.Auth) error {
	m.authCalled = true
	return m.authErr
}

func (m *mockSMTPClient) Mail(from string) error {
	m.mailFrom = from
	return nil
}

func (m *mockSMTPClient) Rcpt(to string) error {
	m.rcptTo = append(m.rcptTo, to)
	return m.rcptErr
}

func (m *mockSMTPClient) Data() (WriteCloser, error) {
	return &mockWriteCloser{client: m}, nil
}

func (m *mockSMTPClient) Close() error {
	m.closeCalled = true
	return nil
}

func (m *mockSMTPClient) Extension(ext string) (bool, string) {
	if m.extensions == nil {
		m.extensions = map[string]string{"STARTTLS": ""}
	}
	v, ok := m.extensions[ext]
	return ok, v
}

type mockWriteCloser struct {
	client *mockSMTPClient
	buf    bytes.Buffer
}

func (w *mockWriteCloser) Write(p []byte) (int, error) { return w.buf.Write(p) }

func (w *mockWriteCloser) Close() error {
	w.client.messageData = w.buf.String()
	return nil
}

type mockSMTPDialer struct {
	client  *mockSMTPClient
	dialErr error
	addr    string
}

func (d *mockSMTPDialer) DialContext(_ context.Context, addr string) (SMTPClient, error) {
	d.addr = addr
	if d.dialErr != nil {
		return nil, d.dialErr
	}
	return d.client, nil
}
