package email

import (
	"bytes"
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"mime"
	"net/smtp"
	"path/filepath"
	"strings"

	"go-learnerscript/internal/config"

	"go.uber.org/zap"
)

type EmailService interface {
	SendEmail(ctx context.Context, to []string, subject, body string) error
	SendEmailWithAttachment(ctx context.Context, to []string, subject, body string, attachmentName string, attachmentData []byte) error
}

type EmailServiceImpl struct {
	Config *config.Config
	Repo   *EmailRepository
	Logger *zap.Logger
}

func NewEmailService(cfg *config.Config, repo *EmailRepository, logger *zap.Logger) EmailService {
	return &EmailServiceImpl{
		Config: cfg,
		Repo:   repo,
		Logger: logger,
	}
}

func (s *EmailServiceImpl) SendEmail(ctx context.Context, to []string, subject, body string) error {
	addr, auth, from, err := s.smtpTarget()
	if err != nil {
		return err
	}

	record := &Email{From: from, To: to, Subject: subject, Body: body, Status: EmailQueued}
	if s.Repo != nil {
		_ = s.Repo.Create(ctx, record)
	}

	msg := []byte(fmt.Sprintf("From: %s\r\nTo: %s\r\nSubject: %s\r\n\r\n%s\r\n",
		from, strings.Join(to, ", "), subject, body))

	err = smtp.SendMail(addr, auth, from, to, msg)
	s.finish(ctx, record, err)
	if err != nil {
		return fmt.Errorf("send email: %w", err)
	}
	return nil
}

func (s *EmailServiceImpl) SendEmailWithAttachment(ctx context.Context, to []string, subject, body string, attachmentName string, attachmentData []byte) error {
	addr, auth, from, err := s.smtpTarget()
	if err != nil {
		return err
	}

	record := &Email{From: from, To: to, Subject: subject, Body: body, Attachment: attachmentName, Status: EmailQueued}
	if s.Repo != nil {
		_ = s.Repo.Create(ctx, record)
	}

	marker := "LSBoundary"
	var buf bytes.Buffer
	fmt.Fprintf(&buf, "From: %s\r\n", from)
	fmt.Fprintf(&buf, "To: %s\r\n", strings.Join(to, ", "))
	fmt.Fprintf(&buf, "Subject: %s\r\n", subject)
	buf.WriteString("MIME-Version: 1.0\r\n")
	fmt.Fprintf(&buf, "Content-Type: multipart/mixed; boundary=%s\r\n\r\n", marker)

	fmt.Fprintf(&buf, "--%s\r\n", marker)
	buf.WriteString("Content-Type: text/plain; charset=\"utf-8\"\r\n\r\n")
	buf.WriteString(body)
	buf.WriteString("\r\n")

	if len(attachmentData) > 0 {
		fmt.Fprintf(&buf, "--%s\r\n", marker)
		contentType := mime.TypeByExtension(filepath.Ext(attachmentName))
		if contentType == "" {
			contentType = "application/octet-stream"
		}
		fmt.Fprintf(&buf, "Content-Type: %s; name=\"%s\"\r\n", contentType, attachmentName)
		buf.WriteString("Content-Transfer-Encoding: base64\r\n")
		fmt.Fprintf(&buf, "Content-Disposition: attachment; filename=\"%s\"\r\n\r\n", attachmentName)

		encoded := make([]byte, base64.StdEncoding.EncodedLen(len(attachmentData)))
		base64.StdEncoding.Encode(encoded, attachmentData)
		buf.Write(encoded)
		buf.WriteString("\r\n")
	}

	fmt.Fprintf(&buf, "--%s--", marker)

	err = smtp.SendMail(addr, auth, from, to, buf.Bytes())
	s.finish(ctx, record, err)
	if err != nil {
		return fmt.Errorf("send email with attachment: %w", err)
	}
	return nil
}

func (s *EmailServiceImpl) smtpTarget() (string, smtp.Auth, string, error) {
	if s.Config.SMTPHost == "" || s.Config.SMTPPort == 0 {
		return "", nil, "", errors.New("smtp host and port are not configured")
	}
	var auth smtp.Auth
	if s.Config.SMTPUser != "" {
		auth = smtp.PlainAuth("", s.Config.SMTPUser, s.Config.SMTPPass, s.Config.SMTPHost)
	}
	from := s.Config.MailFrom
	if from == "" {
		from = s.Config.SMTPUser
	}
	addr := fmt.Sprintf("%s:%d", s.Config.SMTPHost, s.Config.SMTPPort)
	return addr, auth, from, nil
}

func (s *EmailServiceImpl) finish(ctx context.Context, record *Email, err error) {
	status := EmailSent
	errMsg := ""
	if err != nil {
		status = EmailFailed
		errMsg = err.Error()
		s.Logger.Error("email delivery failed", zap.Strings("to", record.To), zap.Error(err))
	} else {
		s.Logger.Info("email sent", zap.Strings("to", record.To), zap.String("subject", record.Subject))
	}
	if s.Repo != nil {
		_ = s.Repo.UpdateStatus(ctx, record.ID, status, errMsg)
	}
}
