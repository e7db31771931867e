package alerting

import (
	"bytes"
	"cmp"
	"context"
	"crypto/tls"
	"fmt"
	"io"
	"mime"
	"net"
	"net/smtp"
	"strconv"
	"strings"
	"text/template"
	"time"

	"github.com/Kargones/errwatch/internal/entity/monitoring"
	"github.com/Kargones/errwatch/internal/pkg/logging"
)

const emailBodyTemplate = `{{.Title}}

Type: {{.Type}}
Severity: {{.SeverityUpper}}
Time: {{.Timestamp}}

{{.Message}}
{{if .Fields}}
Details:
{{range .Fields}}  {{.Name}}: {{.Value}}
{{end}}{{end}}
Alert ID: {{.ID}}

---
This is an automated alert from errwatch.
`

// SMTPDialer создаёт SMTP соединения; подменяется в тестах.
type SMTPDialer interface {
	DialContext(ctx context.Context, addr string) (SMTPClient, error)
}

// SMTPClient — используемое подмножество *smtp.Client.
type SMTPClient interface {
	StartTLS(config *tls.Config) error
	Auth(a smtp.Auth) error
	Mail(from string) error
	Rcpt(to string) error
	Data() (WriteCloser, error)
	Close() error
	Extension(ext string) (bool, string)
}

// WriteCloser — тело письма после команды DATA.
type WriteCloser = io.WriteCloser

type emailField struct {
	Name  string
	Value string
}

type emailTemplateData struct {
	ID            string
	Type          string
	SeverityUpper string
	Title         string
	Message       string
	Timestamp     string
	Fields        []emailField
}

// EmailChannel отправляет алерт письмом через SMTP.
type EmailChannel struct {
	config      EmailConfig
	logger      logging.Logger
	dialer      SMTPDialer
	subjectTmpl *template.Template
	bodyTmpl    *template.Template
}

// NewEmailChannel создаёт EmailChannel. Возвращает ошибку при некорректном шаблоне темы.
func NewEmailChannel(config EmailConfig, logger logging.Logger) (*EmailChannel, error) {
	subjectTemplate := config.SubjectTemplate
	if subjectTemplate == "" {
		subjectTemplate = DefaultSubjectTemplate
	}
	subjectTmpl, err := template.New("subject").Parse(subjectTemplate)
	if err != nil {
		return nil, fmt.Errorf("alerting: invalid subject template: %w", err)
	}
	bodyTmpl, err := template.New("body").Parse(emailBodyTemplate)
	if err != nil {
		return nil, fmt.Errorf("alerting: invalid body template: %w", err)
	}
	if config.SMTPPort == 0 {
		config.SMTPPort = DefaultSMTPPort
	}

	return &EmailChannel{
		config: config,
		logger: logger,
		dialer: &smtpDialer{
			timeout:    cmp.Or(config.Timeout, DefaultSMTPTimeout),
			implicit:   config.UseTLS && config.SMTPPort == SMTPPortImplicitTLS,
			serverName: config.SMTPHost,
		},
		subjectTmpl: subjectTmpl,
		bodyTmpl:    bodyTmpl,
	}, nil
}

// SetDialer заменяет способ подключения к SMTP серверу.
func (e *EmailChannel) SetDialer(dialer SMTPDialer) {
	e.dialer = dialer
}

// Type реализует Channel.
func (e *EmailChannel) Type() monitoring.ChannelType { return monitoring.ChannelEmail }

// Send реализует Channel.
func (e *EmailChannel) Send(ctx context.Context, alert monitoring.AlertEvent) error {
	subject, body, err := e.formatEmail(alert)
	if err != nil {
		return err
	}
	if err := e.sendEmail(ctx, alert, subject, body); err != nil {
		return err
	}
	e.logger.Info("email алерт отправлен",
		"alert_id", alert.ID,
		"severity", string(alert.Severity),
		"recipients", len(e.config.To),
	)
	return nil
}

func (e *EmailChannel) formatEmail(alert monitoring.AlertEvent) (subject, body string, err error) {
	data := emailTemplateData{
		ID:            alert.ID,
		Type:          string(alert.Type),
		SeverityUpper: strings.ToUpper(string(alert.Severity)),
		Title:         alert.Title,
		Message:       alert.Message,
		Timestamp:     alert.Timestamp.Format(time.RFC3339),
	}
	for _, k := range sortedKeys(alert.Data) {
		data.Fields = append(data.Fields, emailField{Name: k, Value: formatValue(alert.Data[k])})
	}

	var subjectBuf bytes.Buffer
	if err := e.subjectTmpl.Execute(&subjectBuf, data); err != nil {
		return "", "", fmt.Errorf("failed to format subject: %w", err)
	}
	var bodyBuf bytes.Buffer
	if err := e.bodyTmpl.Execute(&bodyBuf, data); err != nil {
		return "", "", fmt.Errorf("failed to format body: %w", err)
	}
	return subjectBuf.String(), bodyBuf.String(), nil
}

// SMTP порты.
const (
	SMTPPortStartTLS    = 587
	SMTPPortImplicitTLS = 465
	SMTPPortPlain       = 25
)

// sendEmail проходит SMTP-сессию: TLS, авторизация, конверт, письмо.
func (e *EmailChannel) sendEmail(ctx context.Context, alert monitoring.AlertEvent, subject, body string) error {
	addr := net.JoinHostPort(e.config.SMTPHost, strconv.Itoa(e.config.SMTPPort))
	client, err := e.dialer.DialContext(ctx, addr)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrSMTPConnection, err)
	}
	defer client.Close()

	steps := []func(SMTPClient) error{
		e.secure,
		e.authenticate,
		func(c SMTPClient) error { return e.envelope(ctx, c) },
		func(c SMTPClient) error { return e.deliver(c, e.buildMessage(alert, subject, body)) },
	}
	for _, step := range steps {
		if err := step(client); err != nil {
			return err
		}
	}
	return nil
}

// secure переводит соединение в TLS через STARTTLS. Порт 465 уже зашифрован.
func (e *EmailChannel) secure(c SMTPClient) error {
	if !e.config.UseTLS || e.config.SMTPPort == SMTPPortImplicitTLS {
		return nil
	}
	if ok, _ := c.Extension("STARTTLS"); !ok {
		e.logger.Warn("SMTP сервер не поддерживает STARTTLS, письмо уйдёт без шифрования",
			"smtp_host", e.config.SMTPHost)
		return nil
	}
	if err := c.StartTLS(tlsConfigFor(e.config.SMTPHost)); err != nil {
		return fmt.Errorf("alerting: STARTTLS: %w", err)
	}
	return nil
}

func (e *EmailChannel) authenticate(c SMTPClient) error {
	user, password := e.config.SMTPUser, e.config.SMTPPassword
	switch {
	case user != "" && password != "":
		if err := c.Auth(smtp.PlainAuth("", user, password, e.config.SMTPHost)); err != nil {
			return ErrSMTPAuth
		}
	case user != "" || password != "":
		e.logger.Warn("неполные SMTP credentials, авторизация пропущена",
			"smtp_host", e.config.SMTPHost,
			"has_user", user != "",
			"has_password", password != "",
		)
	}
	return nil
}

func (e *EmailChannel) envelope(ctx context.Context, c SMTPClient) error {
	if err := c.Mail(e.config.From); err != nil {
		return fmt.Errorf("alerting: MAIL FROM: %w", err)
	}
	for _, to := range e.config.To {
		if err := ctx.Err(); err != nil {
			return err
		}
		if err := c.Rcpt(to); err != nil {
			return fmt.Errorf("alerting: RCPT TO %s: %w", to, err)
		}
	}
	return nil
}

func (e *EmailChannel) deliver(c SMTPClient, msg []byte) error {
	w, err := c.Data()
	if err != nil {
		return fmt.Errorf("alerting: DATA: %w", err)
	}
	if _, err := w.Write(msg); err != nil {
		_ = w.Close()
		return fmt.Errorf("%w: %v", ErrSMTPSend, err)
	}
	if err := w.Close(); err != nil {
		return fmt.Errorf("%w: %v", ErrSMTPSend, err)
	}
	return nil
}

// buildMessage собирает письмо text/plain с заголовками алерта.
func (e *EmailChannel) buildMessage(alert monitoring.AlertEvent, subject, body string) []byte {
	headers := [][2]string{
		{"From", e.config.From},
		{"To", strings.Join(e.config.To, ", ")},
		{"Subject", encodeRFC2047(subject)},
		{"Date", alert.Timestamp.Format(time.RFC1123Z)},
		{"X-Errwatch-Alert-Id", alert.ID},
		{"X-Errwatch-Severity", string(alert.Severity)},
		{"MIME-Version", "1.0"},
		{"Content-Type", `text/plain; charset="utf-8"`},
		{"Content-Transfer-Encoding", "8bit"},
	}
	var b strings.Builder
	for _, h := range headers {
		b.WriteString(h[0] + ": " + h[1] + "\r\n")
	}
	b.WriteString("\r\n")
	b.WriteString(body)
	return []byte(b.String())
}

// encodeRFC2047 кодирует заголовок с non-ASCII символами. Длинный текст
// делится на несколько encoded-word.
func encodeRFC2047(s string) string {
	return mime.BEncoding.Encode("UTF-8", s)
}

func tlsConfigFor(host string) *tls.Config {
	return &tls.Config{ServerName: host, MinVersion: tls.VersionTLS12}
}

// smtpDialer открывает TCP соединение и, для порта 465, сразу TLS.
type smtpDialer struct {
	timeout    time.Duration
	implicit   bool
	serverName string
}

func (d *smtpDialer) DialContext(ctx context.Context, addr string) (SMTPClient, error) {
	host, _, err := net.SplitHostPort(addr)
	if err != nil {
		return nil, fmt.Errorf("alerting: некорректный SMTP адрес %q: %w", addr, err)
	}
	if d.serverName != "" {
		host = d.serverName
	}

	conn, err := (&net.Dialer{Timeout: d.timeout}).DialContext(ctx, "tcp", addr)
	if err != nil {
		return nil, err
	}
	if d.implicit {
		conn = tls.Client(conn, tlsConfigFor(host))
	}
	client, err := smtp.NewClient(conn, host)
	if err != nil {
		_ = conn.Close()
		return nil, err
	}
	return smtpClient{client}, nil
}

// smtpClient приводит Data() *smtp.Client к интерфейсу SMTPClient.
type smtpClient struct {
	*smtp.Client
}

func (c smtpClient) Data() (WriteCloser, error) { return c.Client.Data() }
