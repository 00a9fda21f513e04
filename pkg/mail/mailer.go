package mail

import (
	"encoding/base64"
	"fmt"
	"net/http"

	"github.com/sendgrid/sendgrid-go"
	sgmail "github.com/sendgrid/sendgrid-go/helpers/mail"
	"go.uber.org/zap"

	"github.com/noah-isme/uni-records-api/pkg/config"
)

var (
	sendgridHost     = "https://api.sendgrid.com"
	sendgridEndpoint = "/v3/mail/send"
)

// Message is an outbound email with an optional single attachment.
type Message struct {
	To          string
	Subject     string
	Body        string
	Attachment  []byte
	AttachName  string
	ContentType string
}

// Transport delivers messages. Implementations must be safe for concurrent use.
type Transport interface {
	Send(msg Message) error
}

// SendgridTransport sends mail through the SendGrid v3 API.
type SendgridTransport struct {
	key  string
	from *sgmail.Email
}

// NewSendgridTransport builds a SendGrid-backed transport.
func NewSendgridTransport(cfg config.MailConfig, sender string) *SendgridTransport {
	return &SendgridTransport{
		key:  cfg.APIKey,
		from: sgmail.NewEmail(cfg.SenderName, sender),
	}
}

// Send delivers a message through the SendGrid API.
func (t *SendgridTransport) Send(msg Message) error {
	if msg.To == "" {
		return fmt.Errorf("mail requires a recipient")
	}
	req := sendgrid.GetRequest(t.key, sendgridEndpoint, sendgridHost)
	req.Method = http.MethodPost
	req.Body = sgmail.GetRequestBody(buildV3Mail(t.from, msg))

	res, err := sendgrid.API(req)
	if err != nil {
		return fmt.Errorf("sendgrid send to %s: %w", msg.To, err)
	}
	if res.StatusCode >= http.StatusBadRequest {
		return fmt.Errorf("sendgrid send to %s: status %d", msg.To, res.StatusCode)
	}
	return nil
}

// LogTransport records deliveries without sending. Used when mail is disabled.
type LogTransport struct {
	logger *zap.Logger
}

// NewLogTransport constructs a logging transport.
func NewLogTransport(logger *zap.Logger) *LogTransport {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &LogTransport{logger: logger}
}

// Send logs the would-be delivery.
func (t *LogTransport) Send(msg Message) error {
	t.logger.Sugar().Infow("mail suppressed", "to", msg.To, "subject", msg.Subject, "attachment", msg.AttachName)
	return nil
}

func buildV3Mail(from *sgmail.Email, msg Message) *sgmail.SGMailV3 {
	p := sgmail.NewPersonalization()
	p.Subject = msg.Subject
	p.AddTos(sgmail.NewEmail("", msg.To))

	m := sgmail.NewV3Mail()
	m.SetFrom(from)
	m.AddPersonalizations(p)
	m.AddContent(sgmail.NewContent("text/plain", msg.Body))

	if len(msg.Attachment) > 0 {
		contentType := msg.ContentType
		if contentType == "" {
			contentType = "application/octet-stream"
		}
		m.AddAttachment(&sgmail.Attachment{
			Content:     base64.StdEncoding.EncodeToString(msg.Attachment),
			Type:        contentType,
			Filename:    msg.AttachName,
			Disposition: "attachment",
		})
	}
	return m
}
