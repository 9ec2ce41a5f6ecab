// Package email sends account and project mails over SMTP.
package email

import (
	"bytes"
	"errors"
	"fmt"
	"html/template"
	"mime"
	"net/smtp"
	"strings"
)

const appName = "Journey Map"

var ErrNotConfigured = errors.New("email not configured")

// Config holds SMTP configuration
type Config struct {
	Host     string
	Port     string
	Username string
	Password string
	From     string
	FromName string
}

type sendFunc func(addr string, a smtp.Auth, from string, to []string, msg []byte) error

// Service provides email sending
type Service struct {
	config Config
	server string
	auth   smtp.Auth
	send   sendFunc
}

func NewService(config Config) *Service {
	var auth smtp.Auth
	if config.Username != "" {
		auth = smtp.PlainAuth("", config.Username, config.Password, config.Host)
	}
	return &Service{
		config: config,
		server: config.Host + ":" + config.Port,
		auth:   auth,
		send:   smtp.SendMail,
	}
}

// IsConfigured returns true if email is configured
func (s *Service) IsConfigured() bool {
	return s != nil && s.config.Host != "" && s.config.Port != "" && s.config.From != ""
}

// SendHTMLEmail sends a multipart message with a plain-text fallback.
func (s *Service) SendHTMLEmail(to []string, subject, textBody, htmlBody string) error {
	if !s.IsConfigured() {
		return ErrNotConfigured
	}
	return s.send(s.server, s.auth, s.config.From, to, s.buildMessage(to, subject, textBody, htmlBody))
}

func (s *Service) buildMessage(to []string, subject, textBody, htmlBody string) []byte {
	from := s.config.From
	if s.config.FromName != "" {
		from = fmt.Sprintf("%s <%s>", mime.QEncoding.Encode("utf-8", s.config.FromName), s.config.From)
	}
	boundary := "journey-map-alternative"

	var msg bytes.Buffer
	fmt.Fprintf(&msg, "To: %s\r\n", strings.Join(to, ", "))
	fmt.Fprintf(&msg, "From: %s\r\n", from)
	fmt.Fprintf(&msg, "Subject: %s\r\n", mime.QEncoding.Encode("utf-8", subject))
	fmt.Fprintf(&msg, "MIME-Version: 1.0\r\n")
	fmt.Fprintf(&msg, "Content-Type: multipart/alternative; boundary=\"%s\"\r\n\r\n", boundary)

	fmt.Fprintf(&msg, "--%s\r\n", boundary)
	fmt.Fprintf(&msg, "Content-Type: text/plain; charset=UTF-8\r\n\r\n")
	fmt.Fprintf(&msg, "%s\r\n\r\n", textBody)

	fmt.Fprintf(&msg, "--%s\r\n", boundary)
	fmt.Fprintf(&msg, "Content-Type: text/html; charset=UTF-8\r\n\r\n")
	fmt.Fprintf(&msg, "%s\r\n\r\n", htmlBody)
	fmt.Fprintf(&msg, "--%s--\r\n", boundary)
	return msg.Bytes()
}

type VerificationData struct {
	AppName         string
	UserName        string
	VerificationURL string
}

type PasswordResetData struct {
	AppName  string
	UserName string
	ResetURL string
}

type InviteData struct {
	AppName     string
	InviterName string
	ProjectName string
	Role        string
	ProjectURL  string
}

func (s *Service) SendVerificationEmail(to, userName, verificationURL string) error {
	data := VerificationData{AppName: appName, UserName: userName, VerificationURL: verificationURL}
	html, err := render("verification", data)
	if err != nil {
		return fmt.Errorf("render verification template: %w", err)
	}
	text := fmt.Sprintf("Welcome, %s!\n\nVerify your email address: %s\n\nThis link expires in 24 hours.", userName, verificationURL)
	return s.SendHTMLEmail([]string{to}, "Verify your "+appName+" account", text, html)
}

func (s *Service) SendPasswordResetEmail(to, userName, resetURL string) error {
	data := PasswordResetData{AppName: appName, UserName: userName, ResetURL: resetURL}
	html, err := render("reset", data)
	if err != nil {
		return fmt.Errorf("render password reset template: %w", err)
	}
	text := fmt.Sprintf("Hi %s,\n\nReset your password: %s\n\nThis link expires in 1 hour.", userName, resetURL)
	return s.SendHTMLEmail([]string{to}, "Reset your "+appName+" password", text, html)
}

// SendProjectInviteEmail tells a user they were added to a project.
func (s *Service) SendProjectInviteEmail(to, inviterName, projectName, role, projectURL string) error {
	data := InviteData{AppName: appName, InviterName: inviterName, ProjectName: projectName, Role: role, ProjectURL: projectURL}
	html, err := render("invite", data)
	if err != nil {
		return fmt.Errorf("render invite template: %w", err)
	}
	text := fmt.Sprintf("%s added you to %q as %s.\n\nOpen the project: %s", inviterName, projectName, role, projectURL)
	return s.SendHTMLEmail([]string{to}, fmt.Sprintf("%s invited you to %s", inviterName, projectName), text, html)
}

var templates = template.Must(template.New("layout").Parse(layoutTemplate))

func init() {
	template.Must(templates.New("verification").Parse(verificationBody))
	template.Must(templates.New("reset").Parse(passwordResetBody))
	template.Must(templates.New("invite").Parse(inviteBody))
}

func render(name string, data any) (string, error) {
	var body bytes.Buffer
	if err := templates.ExecuteTemplate(&body, name, data); err != nil {
		return "", err
	}
	var page bytes.Buffer
	err := templates.ExecuteTemplate(&page, "layout", struct {
		AppName string
		Body    template.HTML
	}{AppName: appName, Body: template.HTML(body.String())})
	if err != nil {
		return "", err
	}
	return page.String(), nil
}

const layoutTemplate = `<!DOCTYPE html>
<html>
<head>
    <meta charset="UTF-8">
    <title>{{.AppName}}</title>
    <style>
        body { font-family: -apple-system, BlinkMacSystemFont, 'Segoe UI', Roboto, sans-serif; line-height: 1.6; color: #1f2937; max-width: 600px; margin: 0 auto; padding: 20px; }
        .header { border-bottom: 2px solid #6366f1; padding-bottom: 10px; margin-bottom: 20px; }
        .button { display: inline-block; padding: 12px 24px; background: #6366f1; color: white; text-decoration: none; border-radius: 6px; margin: 20px 0; }
        .footer { margin-top: 30px; padding-top: 20px; border-top: 1px solid #e5e7eb; font-size: 12px; color: #6b7280; }
        .link { word-break: break-all; color: #6366f1; }
    </style>
</head>
<body>
    <div class="header"><h1>{{.AppName}}</h1></div>
    {{.Body}}
</body>
</html>`

const verificationBody = `<h2>Welcome, {{.UserName}}!</h2>
<p>Please verify your email address to start mapping journeys.</p>
<p><a href="{{.VerificationURL}}" class="button">Verify Email Address</a></p>
<p>Or copy and paste this link into your browser:</p>
<p class="link">{{.VerificationURL}}</p>
<p>This verification link will expire in 24 hours.</p>
<div class="footer"><p>If you didn't create an account with {{.AppName}}, you can ignore this email.</p></div>`

const passwordResetBody = `<h2>Password Reset Request</h2>
<p>Hi {{.UserName}},</p>
<p>We received a request to reset your password.</p>
<p><a href="{{.ResetURL}}" class="button">Reset Password</a></p>
<p>Or copy and paste this link into your browser:</p>
<p class="link">{{.ResetURL}}</p>
<p><strong>Important:</strong> This reset link will expire in 1 hour.</p>
<div class="footer"><p>If you didn't request a password reset, your password will remain unchanged.</p></div>`

const inviteBody = `<h2>You have been added to {{.ProjectName}}</h2>
<p>{{.InviterName}} gave you <strong>{{.Role}}</strong> access to the project.</p>
<p><a href="{{.ProjectURL}}" class="button">Open Project</a></p>
<p class="link">{{.ProjectURL}}</p>`
