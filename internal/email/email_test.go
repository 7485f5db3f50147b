package email

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gopkg.in/gomail.v2"
)

type fakeDialer struct {
	messages []*gomail.Message
	err      error
	delay    time.Duration
}

func (d *fakeDialer) DialAndSend(m ...*gomail.Message) error {
	time.Sleep(d.delay)
	d.messages = append(d.messages, m...)
	return d.err
}

func TestRenderWelcome(t *testing.T) {
	content, err := NewRenderer().Render(TypeWelcome, map[string]any{
		"FullName": "Ada <Lovelace>",
		"Email":    "ada@example.com",
	})

	require.NoError(t, err)
	assert.Equal(t, "Welcome, Ada <Lovelace>", content.Subject)
	assert.Contains(t, content.HTML, "Ada &lt;Lovelace&gt;")
	assert.Contains(t, content.Text, "Ada <Lovelace>")
	assert.Contains(t, content.Text, "ada@example.com")
}

func TestRenderMissingKeyFails(t *testing.T) {
	_, err := NewRenderer().Render(TypeApprovalConfirmation, map[string]any{"FullName": "Ada"})
	assert.Error(t, err)
}

func TestRenderUnknownType(t *testing.T) {
	_, err := NewRenderer().Render("password_reset", nil)
	assert.Error(t, err)
}

func TestRegisterReplacesTemplates(t *testing.T) {
	r := NewRenderer()
	require.NoError(t, r.Register(TypeWelcome, "Hi {{.Name}}", "<b>{{.Name}}</b>", "{{.Name}}"))

	content, err := r.Render(TypeWelcome, map[string]any{"Name": "Bob"})
	require.NoError(t, err)
	assert.Equal(t, Content{Subject: "Hi Bob", HTML: "<b>Bob</b>", Text: "Bob"}, content)

	assert.Error(t, r.Register("broken", "{{", "", ""))
}

func TestNewSMTPTransportValidates(t *testing.T) {
	_, err := NewSMTPTransport(SMTPConfig{From: "noreply@example.com"})
	assert.Error(t, err)
	_, err = NewSMTPTransport(SMTPConfig{Host: "localhost"})
	assert.Error(t, err)

	tr, err := NewSMTPTransport(SMTPConfig{Host: "localhost", Port: 1025, From: "noreply@example.com"})
	require.NoError(t, err)
	assert.NotNil(t, tr)
}

func TestSMTPTransportSend(t *testing.T) {
	dialer := &fakeDialer{}
	tr := &SMTPTransport{from: "noreply@example.com", dialer: dialer}

	require.NoError(t, tr.Send(context.Background(), "ada@example.com", "Hello", "<p>hi</p>", "hi"))
	require.Len(t, dialer.messages, 1)
	assert.Equal(t, []string{"ada@example.com"}, dialer.messages[0].GetHeader("To"))
	assert.Equal(t, []string{"Hello"}, dialer.messages[0].GetHeader("Subject"))

	dialer.err = errors.New("421 service not available")
	err := tr.Send(context.Background(), "ada@example.com", "Hello", "", "hi")
	assert.ErrorIs(t, err, dialer.err)
}

func TestSMTPTransportHonoursContext(t *testing.T) {
	tr := &SMTPTransport{from: "noreply@example.com", dialer: &fakeDialer{delay: 200 * time.Millisecond}}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()

	err := tr.Send(ctx, "ada@example.com", "Hello", "", "hi")
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}
