package tracker

import (
	"context"
	"crypto/tls"
	"fmt"
	"net"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/ClickHouse/clickhouse-go/v2"
	"github.com/ClickHouse/clickhouse-go/v2/lib/driver"

	"github.com/Kargones/errwatch/internal/pkg/apperrors"
	"github.com/Kargones/errwatch/internal/pkg/logging"
)

// Параметры ClickHouseSink по умолчанию.
const (
	DefaultBatchSize     = 100
	DefaultFlushInterval = 5 * time.Second
	DefaultMaxBuffered   = 10000
)

const insertJSErrors = `INSERT INTO error_logs.js_errors
	(id, member_id, timestamp, type, message, source, lineno, colno, stack, url, userAgent, is_script_blocked, is_mobile)`

// jsErrorRow — строка таблицы error_logs.js_errors.
type jsErrorRow struct {
	ID        string
	MemberID  string
	Timestamp time.Time
	Type      string
	Message   string
	Source    string
	Stack     string
	URL       string
	UserAgent string
	IsMobile  uint8
}

// rowWriter записывает пачку строк.
type rowWriter interface {
	WriteRows(ctx context.Context, rows []jsErrorRow) error
	Close() error
}

// ClickHouseConfig — параметры подключения.
type ClickHouseConfig struct {
	Host          string
	Port          int
	Database      string
	User          string
	Password      string
	BatchSize     int
	FlushInterval time.Duration
}

// ClickHouseSink накапливает ошибки и пачками пишет их в error_logs.js_errors.
// Сообщения уровня warning и выше тоже пишутся, с типом "message".
// Следы не сохраняются.
type ClickHouseSink struct {
	writer        rowWriter
	logger        logging.Logger
	batchSize     int
	flushInterval time.Duration
	maxBuffered   int

	mu      sync.Mutex
	buf     []jsErrorRow
	dropped int
	kick    chan struct{}
}

// NewClickHouseSink открывает соединение с ClickHouse и проверяет его.
func NewClickHouseSink(ctx context.Context, cfg ClickHouseConfig, logger logging.Logger) (*ClickHouseSink, error) {
	options := &clickhouse.Options{
		Addr: []string{net.JoinHostPort(cfg.Host, strconv.Itoa(cfg.Port))},
		Auth: clickhouse.Auth{
			Database: cfg.Database,
			Username: cfg.User,
			Password: cfg.Password,
		},
		DialTimeout:      5 * time.Second,
		MaxOpenConns:     3,
		MaxIdleConns:     2,
		ConnMaxLifetime:  5 * time.Minute,
		ConnOpenStrategy: clickhouse.ConnOpenInOrder,
		Compression:      &clickhouse.Compression{Method: clickhouse.CompressionLZ4},
	}
	if !privateHost(cfg.Host) {
		options.TLS = &tls.Config{MinVersion: tls.VersionTLS12}
	}

	conn, err := clickhouse.Open(options)
	if err != nil {
		return nil, apperrors.NewAppError(apperrors.ErrSinkWrite, "не удалось открыть соединение с ClickHouse", err)
	}
	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := conn.Ping(pingCtx); err != nil {
		_ = conn.Close() //nolint:errcheck // соединение не используется
		return nil, apperrors.NewAppError(apperrors.ErrSinkWrite, "ClickHouse недоступен", err)
	}
	return newClickHouseSink(clickhouseWriter{conn: conn}, cfg, logger), nil
}

func newClickHouseSink(w rowWriter, cfg ClickHouseConfig, logger logging.Logger) *ClickHouseSink {
	s := &ClickHouseSink{
		writer:        w,
		logger:        logger.With("sink", "clickhouse"),
		batchSize:     cfg.BatchSize,
		flushInterval: cfg.FlushInterval,
		maxBuffered:   DefaultMaxBuffered,
		kick:          make(chan struct{}, 1),
	}
	if s.batchSize <= 0 {
		s.batchSize = DefaultBatchSize
	}
	if s.flushInterval <= 0 {
		s.flushInterval = DefaultFlushInterval
	}
	return s
}

func privateHost(host string) bool {
	switch host {
	case "localhost", "127.0.0.1", "::1", "host.docker.internal":
		return true
	}
	ip := net.ParseIP(host)
	return ip != nil && (ip.IsPrivate() || ip.IsLoopback())
}

// CaptureException ставит ошибку в очередь записи.
func (s *ClickHouseSink) CaptureException(_ context.Context, ex Exception) error {
	s.enqueue(jsErrorRow{
		ID:        ex.EventID,
		MemberID:  ex.Context.UserID,
		Timestamp: ex.Timestamp,
		Type:      string(ex.Category),
		Message:   ex.Message,
		Source:    ex.Context.Source,
		Stack:     ex.Stack,
		URL:       ex.Context.URL,
		UserAgent: ex.Context.UserAgent,
		IsMobile:  mobileFlag(ex.Context.UserAgent),
	})
	return nil
}

// CaptureMessage ставит сообщение в очередь записи. Сообщения уровня info
// не сохраняются.
func (s *ClickHouseSink) CaptureMessage(_ context.Context, m Message) error {
	if m.Level == LevelInfo {
		return nil
	}
	s.enqueue(jsErrorRow{
		ID:        m.EventID,
		Timestamp: m.Timestamp,
		Type:      "message",
		Message:   m.Text,
		Source:    string(m.Level),
	})
	return nil
}

// AddBreadcrumb ничего не делает: следы в таблицу не пишутся.
func (s *ClickHouseSink) AddBreadcrumb(Breadcrumb) {}

func (s *ClickHouseSink) enqueue(row jsErrorRow) {
	s.mu.Lock()
	if len(s.buf) >= s.maxBuffered {
		s.buf = s.buf[1:]
		s.dropped++
	}
	s.buf = append(s.buf, row)
	full := len(s.buf) >= s.batchSize
	s.mu.Unlock()

	if full {
		select {
		case s.kick <- struct{}{}:
		default:
		}
	}
}

// Run сбрасывает буфер каждые flushInterval и при заполнении пачки до отмены ctx.
func (s *ClickHouseSink) Run(ctx context.Context) {
	ticker := time.NewTicker(s.flushInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		case <-s.kick:
		}
		if err := s.Flush(ctx); err != nil {
			s.logger.Warn("ошибка записи в ClickHouse", "error", err)
		}
	}
}

// Flush записывает накопленные строки пачками по batchSize. При ошибке
// неотправленные строки возвращаются в начало буфера.
func (s *ClickHouseSink) Flush(ctx context.Context) error {
	s.mu.Lock()
	rows := s.buf
	s.buf = nil
	dropped := s.dropped
	s.dropped = 0
	s.mu.Unlock()

	if dropped > 0 {
		s.logger.Warn("буфер ClickHouse переполнен, строки отброшены", "dropped", dropped)
	}

	for len(rows) > 0 {
		n := min(len(rows), s.batchSize)
		if err := s.writer.WriteRows(ctx, rows[:n]); err != nil {
			s.requeue(rows)
			return apperrors.NewAppError(apperrors.ErrSinkWrite, fmt.Sprintf("не записано строк: %d", len(rows)), err)
		}
		rows = rows[n:]
	}
	return nil
}

func (s *ClickHouseSink) requeue(rows []jsErrorRow) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.buf = append(rows, s.buf...)
	if over := len(s.buf) - s.maxBuffered; over > 0 {
		s.buf = s.buf[over:]
		s.dropped += over
	}
}

// Close сбрасывает буфер и закрывает соединение.
func (s *ClickHouseSink) Close(ctx context.Context) error {
	flushErr := s.Flush(ctx)
	if err := s.writer.Close(); err != nil && flushErr == nil {
		return err
	}
	return flushErr
}

func mobileFlag(userAgent string) uint8 {
	if strings.Contains(userAgent, "Mobi") || strings.Contains(userAgent, "Android") {
		return 1
	}
	return 0
}

// clickhouseWriter пишет строки через пакетную вставку драйвера.
type clickhouseWriter struct {
	conn driver.Conn
}

func (w clickhouseWriter) WriteRows(ctx context.Context, rows []jsErrorRow) error {
	batch, err := w.conn.PrepareBatch(ctx, insertJSErrors)
	if err != nil {
		return fmt.Errorf("подготовка пачки: %w", err)
	}
	for _, r := range rows {
		if err := batch.Append(
			r.ID, r.MemberID, r.Timestamp, r.Type, r.Message, r.Source,
			uint32(0), uint32(0), r.Stack, r.URL, r.UserAgent, uint8(0), r.IsMobile,
		); err != nil {
			_ = batch.Abort() //nolint:errcheck // пачка уже невалидна
			return fmt.Errorf("добавление строки %s: %w", r.ID, err)
		}
	}
	return batch.Send()
}

func (w clickhouseWriter) Close() error { return w.conn.Close() }
