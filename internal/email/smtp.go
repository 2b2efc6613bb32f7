package email

import (
	"bytes"
	"context"
	"fmt"
	"mime"
	"mime/multipart"
	"mime/quotedprintable"
	"net"
	"net/mail"
	"net/smtp"
	"net/textproto"
	"strconv"
)

type smtpTransport struct {
	addr string
	auth smtp.Auth
	send func(addr string, a smtp.Auth, from string, to []string, msg []byte) error
}

// newSMTPTransport authenticates only when a username is configured.
func newSMTPTransport(host string, port int, username, password string) *smtpTransport {
	t := &smtpTransport{
		addr: net.JoinHostPort(host, strconv.Itoa(port)),
		send: smtp.SendMail,
	}
	if username != "" {
		t.auth = smtp.PlainAuth("", username, password, host)
	}
	return t
}

func (t *smtpTransport) deliver(ctx context.Context, from sender, msg Message, body Rendered) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	raw, err := composeMIME(from, msg, body)
	if err != nil {
		return err
	}
	return t.send(t.addr, t.auth, from.Address, []string{msg.To}, raw)
}

// composeMIME builds a multipart/alternative message. Plaintext is the first
// part and HTML the last.
func composeMIME(from sender, msg Message, body Rendered) ([]byte, error) {
	var parts bytes.Buffer
	mw := multipart.NewWriter(&parts)

	for _, part := range []struct {
		contentType string
		content     string
	}{
		{"text/plain; charset=utf-8", body.Text},
		{"text/html; charset=utf-8", body.HTML},
	} {
		w, err := mw.CreatePart(textproto.MIMEHeader{
			"Content-Type":              {part.contentType},
			"Content-Transfer-Encoding": {"quoted-printable"},
		})
		if err != nil {
			return nil, err
		}
		qp := quotedprintable.NewWriter(w)
		if _, err := qp.Write([]byte(part.content)); err != nil {
			return nil, err
		}
		if err := qp.Close(); err != nil {
			return nil, err
		}
	}
	if err := mw.Close(); err != nil {
		return nil, err
	}

	var out bytes.Buffer
	fmt.Fprintf(&out, "From: %s\r\n", (&mail.Address{Name: from.Name, Address: from.Address}).String())
	fmt.Fprintf(&out, "To: %s\r\n", (&mail.Address{Name: msg.ToName, Address: msg.To}).String())
	fmt.Fprintf(&out, "Subject: %s\r\n", mime.QEncoding.Encode("utf-8", msg.Subject))
	out.WriteString("MIME-Version: 1.0\r\n")
	fmt.Fprintf(&out, "Content-Type: multipart/alternative; boundary=%s\r\n\r\n", mw.Boundary())
	out.Write(parts.Bytes())
	return out.Bytes(), nil
}
