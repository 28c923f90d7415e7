package notify

import (
	"context"
	"fmt"
	"net/smtp"
	"os"
	"path/filepath"
	"strings"

	"visabulletin/internal/components/assert"
	"visabulletin/internal/components/chrono"
	"visabulletin/internal/components/telemetry"

	"github.com/jordan-wright/email"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/codes"
)

var tracer = otel.Tracer("visabulletin.internal.notify")

const (
	report_smtp_send    = "smtp.send"
	report_preview_send = "preview.send"
)

// Sender delivers a message.
type Sender interface {
	Send(ctx context.Context, msg Message) error
}

type SMTPConfig struct {
	Server   string `json:"server"`
	Port     int    `json:"port"`
	Username string `json:"username"`
	Password string `json:"password"`
	From     string `json:"from"`
}

type SMTPSender struct {
	config SMTPConfig
	tel    telemetry.API
}

func NewSMTPSender(config SMTPConfig, tel telemetry.API) SMTPSender {
	assert.NotNil(tel)
	assert.NotEmptyStr(config.Server)
	if config.Port == 0 {
		config.Port = 587
	}
	if config.Username == "" {
		config.Username = config.From
	}
	return SMTPSender{config: config, tel: telemetry.NewScopedAPI("notify", tel)}
}

func (s SMTPSender) Send(ctx context.Context, msg Message) error {
	_, span := tracer.Start(ctx, "smtp:Send")
	defer span.End()

	mail := email.NewEmail()
	mail.From = fmt.Sprintf("Visa Bulletin <%s>", s.config.From)
	mail.To = []string{msg.To}
	mail.Subject = msg.Subject
	mail.HTML = []byte(msg.HTML)
	mail.Text = []byte(msg.Text)

	addr := fmt.Sprintf("%s:%d", s.config.Server, s.config.Port)
	err := mail.Send(
		addr,
		smtp.PlainAuth("", s.config.Username, s.config.Password, s.config.Server),
	)
	if err != nil && strings.Contains(err.Error(), "server doesn't support AUTH") {
		err = mail.Send(addr, nil)
	}
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "failed to send email")
		s.tel.ReportBroken(report_smtp_send, err, msg.To)
		return fmt.Errorf("send email to %s: %w", msg.To, err)
	}
	return nil
}

// PreviewSender writes every message as a standalone html page instead of
// sending it.
type PreviewSender struct {
	dir  string
	tel  telemetry.API
	time chrono.API
}

func NewPreviewSender(dir string, tel telemetry.API, time chrono.API) PreviewSender {
	assert.NotNil(tel)
	assert.NotNil(time)
	if dir == "" {
		dir = os.TempDir()
	}
	return PreviewSender{dir: dir, tel: telemetry.NewScopedAPI("notify", tel), time: time}
}

// PreviewPath is the file a message to `to` is previewed in.
func (p PreviewSender) PreviewPath(to string) string {
	safe := strings.NewReplacer("@", "_at_", ".", "_").Replace(to)
	name := fmt.Sprintf("email_preview_%s_%s.html", safe, p.time.Now().Format("20060102_150405"))
	return filepath.Join(p.dir, name)
}

func (p PreviewSender) Send(ctx context.Context, msg Message) error {
	page, err := previewPage(msg)
	if err != nil {
		p.tel.ReportBroken(report_preview_send, err, msg.To)
		return err
	}

	path := p.PreviewPath(msg.To)
	err = os.MkdirAll(filepath.Dir(path), 0777)
	if err != nil {
		p.tel.ReportBroken(report_preview_send, err, msg.To)
		return fmt.Errorf("preview %s: %w", msg.To, err)
	}
	err = os.WriteFile(path, []byte(page), 0666)
	if err != nil {
		p.tel.ReportBroken(report_preview_send, err, msg.To)
		return fmt.Errorf("preview %s: %w", msg.To, err)
	}

	p.tel.ReportDebug("preview saved", path)
	return nil
}
