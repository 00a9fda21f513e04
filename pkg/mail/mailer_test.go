package mail

import (
	"encoding/base64"
	"testing"

	sgmail "github.com/sendgrid/sendgrid-go/helpers/mail"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/uni-records-api/pkg/config"
)

func TestBuildV3MailWithAttachment(t *testing.T) {
	from := sgmail.NewEmail("University Records", "records@university.test")
	msg := Message{
		To:          "ana@example.com",
		Subject:     "Your academic report",
		Body:        "Report attached.",
		Attachment:  []byte("pdf-bytes"),
		AttachName:  "report_Ana.pdf",
		ContentType: "application/pdf",
	}

	m := buildV3Mail(from, msg)

	require.Len(t, m.Personalizations, 1)
	require.Len(t, m.Personalizations[0].To, 1)
	assert.Equal(t, "ana@example.com", m.Personalizations[0].To[0].Address)
	assert.Equal(t, "Your academic report", m.Personalizations[0].Subject)
	assert.Equal(t, "records@university.test", m.From.Address)

	require.Len(t, m.Attachments, 1)
	attachment := m.Attachments[0]
	assert.Equal(t, base64.StdEncoding.EncodeToString([]byte("pdf-bytes")), attachment.Content)
	assert.Equal(t, "application/pdf", attachment.Type)
	assert.Equal(t, "report_Ana.pdf", attachment.Filename)
	assert.Equal(t, "attachment", attachment.Disposition)
}

func TestBuildV3MailWithoutAttachment(t *testing.T) {
	from := sgmail.NewEmail("", "records@university.test")
	msg := Message{To: "ana@example.com", Subject: "Hello", Body: "No attachment here."}

	m := buildV3Mail(from, msg)

	assert.Empty(t, m.Attachments)
	require.Len(t, m.Content, 1)
	assert.Equal(t, "No attachment here.", m.Content[0].Value)
}

func TestSendgridTransportRequiresRecipient(t *testing.T) {
	transport := NewSendgridTransport(config.MailConfig{APIKey: "key"}, "records@university.test")
	err := transport.Send(Message{Subject: "no recipient"})
	require.Error(t, err)
}

func TestLogTransportSwallowsDelivery(t *testing.T) {
	transport := NewLogTransport(nil)
	require.NoError(t, transport.Send(Message{To: "ana@example.com", Subject: "Hello"}))
}
