package alerting

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Kargones/errwatch/internal/entity/monitoring"
	"github.com/Kargones/errwatch/internal/pkg/testutil"
)

func newTestEmailChannel(t *testing.T, config EmailConfig) (*EmailChannel, *mockSMTPClient, *mockSMTPDialer, *testutil.RecordingLogger) {
	t.Helper()
	logger := testutil.NewRecordingLogger()
	ch, err := NewEmailChannel(config, logger)
	require.NoError(t, err)
	client := &mockSMTPClient{}
	dialer := &mockSMTPDialer{client: client}
	ch.SetDialer(dialer)
	return ch, client, dialer, logger
}

func baseEmailConfig() EmailConfig {
	return EmailConfig{
		Enabled:      true,
		SMTPHost:     "smtp.example.com",
		SMTPPort:     587,
		SMTPUser:     "bot",
		SMTPPassword: "secret",
		UseTLS:       true,
		From:         "alerts@example.com",
		To:           []string{"oncall@example.com", "dev@example.com"},
	}
}

func TestEmailChannel_Send_Success(t *testing.T) {
	ch, client, dialer, logger := newTestEmailChannel(t, baseEmailConfig())

	alert := testAlert()
	alert.Title = "Memory usage high"
	alert.Severity = monitoring.SeverityCritical

	require.NoError(t, ch.Send(context.Background(), alert))

	assert.Equal(t, "smtp.example.com:587", dialer.addr)
	assert.True(t, client.startTLSCalled)
	assert.True(t, client.authCalled)
	assert.True(t, client.closeCalled)
	assert.Equal(t, "alerts@example.com", client.mailFrom)
	assert.Equal(t, []string{"oncall@example.com", "dev@example.com"}, client.rcptTo)
	assert.Contains(t, client.messageData, "Subject: [CRITICAL] Memory usage high\r\n")
	assert.Contains(t, client.messageData, "To: oncall@example.com, dev@example.com\r\n")
	assert.Contains(t, client.messageData, "  category: network\n")
	assert.Contains(t, client.messageData, "X-Errwatch-Alert-Id: "+alert.ID+"\r\n")
	assert.Contains(t, client.messageData, "X-Errwatch-Severity: critical\r\n")
	assert.Len(t, logger.Infos(), 1)
}

func TestEmailChannel_ImplicitTLS_NoStartTLS(t *testing.T) {
	cfg := baseEmailConfig()
	cfg.SMTPPort = SMTPPortImplicitTLS
	ch, client, _, _ := newTestEmailChannel(t, cfg)

	require.NoError(t, ch.Send(context.Background(), testAlert()))
	assert.False(t, client.startTLSCalled)
}

func TestEmailChannel_NoStartTLSExtension_Warns(t *testing.T) {
	ch, client, _, logger := newTestEmailChannel(t, baseEmailConfig())
	client.extensions = map[string]string{}

	require.NoError(t, ch.Send(context.Background(), testAlert()))
	assert.False(t, client.startTLSCalled)
	assert.Len(t, logger.Warns(), 1)
}

func TestEmailChannel_DialError(t *testing.T) {
	ch, _, dialer, _ := newTestEmailChannel(t, baseEmailConfig())
	dialer.dialErr = errors.New("connection refused")

	err := ch.Send(context.Background(), testAlert())
	assert.ErrorIs(t, err, ErrSMTPConnection)
}

func TestEmailChannel_AuthError_NoCredentialLeak(t *testing.T) {
	ch, client, _, _ := newTestEmailChannel(t, baseEmailConfig())
	client.authErr = errors.New("535 bad credentials for bot:secret")

	err := ch.Send(context.Background(), testAlert())

	require.ErrorIs(t, err, ErrSMTPAuth)
	assert.NotContains(t, err.Error(), "secret")
}

func TestEmailChannel_PartialCredentials_Warning(t *testing.T) {
	cfg := baseEmailConfig()
	cfg.SMTPPassword = ""
	ch, client, _, logger := newTestEmailChannel(t, cfg)

	require.NoError(t, ch.Send(context.Background(), testAlert()))
	assert.False(t, client.authCalled)
	assert.Len(t, logger.Warns(), 1)
}

func TestEmailChannel_ContextCanceled(t *testing.T) {
	ch, _, _, _ := newTestEmailChannel(t, baseEmailConfig())
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	assert.ErrorIs(t, ch.Send(ctx, testAlert()), context.Canceled)
}

func TestEmailChannel_CyrillicSubjectEncoded(t *testing.T) {
	ch, client, _, _ := newTestEmailChannel(t, baseEmailConfig())

	require.NoError(t, ch.Send(context.Background(), testAlert()))

	subjectLine := ""
	for _, line := range strings.Split(client.messageData, "\r\n") {
		if strings.HasPrefix(line, "Subject: ") {
			subjectLine = line
		}
	}
	assert.True(t, strings.HasPrefix(subjectLine, "Subject: =?UTF-8?b?"), subjectLine)
}

func TestNewEmailChannel_InvalidSubjectTemplate(t *testing.T) {
	cfg := baseEmailConfig()
	cfg.SubjectTemplate = "{{.Title"
	_, err := NewEmailChannel(cfg, testutil.NewRecordingLogger())
	assert.Error(t, err)
}

func TestEncodeRFC2047(t *testing.T) {
	assert.Equal(t, "[HIGH] plain", encodeRFC2047("[HIGH] plain"))
	assert.Equal(t, "=?UTF-8?b?0KLQtdGB0YI=?=", encodeRFC2047("Тест"))

	long := encodeRFC2047(strings.Repeat("Память ", 20))
	words := strings.Fields(long)
	require.Greater(t, len(words), 1, "длинная тема делится на несколько encoded-word")
	for _, w := range words {
		assert.LessOrEqual(t, len(w), 75)
	}
}

func TestEmailConfig_Validate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*EmailConfig)
		wantErr error
	}{
		{"корректный", func(*EmailConfig) {}, nil},
		{"без хоста", func(c *EmailConfig) { c.SMTPHost = "" }, ErrSMTPHostRequired},
		{"без отправителя", func(c *EmailConfig) { c.From = "" }, ErrFromRequired},
		{"без получателей", func(c *EmailConfig) { c.To = nil }, ErrToRequired},
		{"CRLF в From", func(c *EmailConfig) { c.From = "a@b.c\r\nBcc: x@y.z" }, ErrEmailAddressInvalid},
		{"HTAB в To", func(c *EmailConfig) { c.To = []string{"a@b.c\t"} }, ErrEmailAddressInvalid},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := baseEmailConfig()
			tt.mutate(&cfg)
			err := cfg.Validate()
			if tt.wantErr == nil {
				assert.NoError(t, err)
				return
			}
			assert.ErrorIs(t, err, tt.wantErr)
		})
	}
}
