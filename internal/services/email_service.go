// Package services provides business logic services for the exam review application.
package services

import (
	"context"
	"fmt"
	"html/template"
	"strings"
	"time"

	"github.com/EchoAurora/xingcefupan/internal/config"
	"github.com/EchoAurora/xingcefupan/internal/models"
	"github.com/EchoAurora/xingcefupan/internal/observability"
	contextutils "github.com/EchoAurora/xingcefupan/internal/utils"

	"go.opentelemetry.io/otel/attribute"
	"gopkg.in/mail.v2"
)

// EmailServiceInterface defines the interface for email functionality
type EmailServiceInterface interface {
	SendDailyReminder(ctx context.Context, user *models.User, state *models.CheckinState) error
	SendEmail(ctx context.Context, to, subject, templateName string, data map[string]interface{}) error
	IsEnabled() bool
}

// EmailService sends reminder emails over SMTP using gomail
type EmailService struct {
	cfg    *config.Config
	logger *observability.Logger
	dialer *mail.Dialer
}

// Ensure EmailService implements the EmailServiceInterface
var _ EmailServiceInterface = (*EmailService)(nil)

// NewEmailService creates a new EmailService instance
func NewEmailService(cfg *config.Config, logger *observability.Logger) *EmailService {
	var dialer *mail.Dialer
	if cfg.Email.Enabled && cfg.Email.SMTP.Host != "" {
		dialer = mail.NewDialer(
			cfg.Email.SMTP.Host,
			cfg.Email.SMTP.Port,
			cfg.Email.SMTP.Username,
			cfg.Email.SMTP.Password,
		)
	}

	return &EmailService{
		cfg:    cfg,
		logger: logger,
		dialer: dialer,
	}
}

// SendDailyReminder sends the daily practice reminder with the user's
// current streak and today's task list.
func (e *EmailService) SendDailyReminder(ctx context.Context, user *models.User, state *models.CheckinState) (err error) {
	ctx, span := observability.TraceEmailFunction(ctx, "send_daily_reminder",
		observability.AttributeUserID(user.ID),
		attribute.String("email.to", user.Email.String),
	)
	defer observability.FinishSpan(span, &err)

	if !e.IsEnabled() {
		e.logger.Info(ctx, "Email disabled, skipping daily reminder", map[string]interface{}{
			"user_id": user.ID,
		})
		return nil
	}

	if !user.Email.Valid || user.Email.String == "" {
		e.logger.Warn(ctx, "User has no email address, skipping daily reminder", map[string]interface{}{
			"user_id": user.ID,
		})
		return nil
	}

	var tasks []string
	if state != nil {
		for _, task := range state.Tasks {
			tasks = append(tasks, task.Text)
		}
	}
	streak := 0
	if state != nil {
		streak = state.StreakCount
	}

	data := map[string]interface{}{
		"Username":    user.Username,
		"AppURL":      e.cfg.Server.AppBaseURL,
		"CurrentDate": time.Now().Format("2006-01-02"),
		"Streak":      streak,
		"Tasks":       tasks,
		"SettingsURL": fmt.Sprintf("%s/settings", e.cfg.Server.AppBaseURL),
	}

	subject := "今日刷题计划提醒"

	err = e.SendEmail(ctx, user.Email.String, subject, "daily_reminder", data)
	if err != nil {
		return contextutils.WrapError(err, "failed to send daily reminder")
	}

	e.logger.Info(ctx, "Daily reminder sent successfully", map[string]interface{}{
		"user_id": user.ID,
	})

	return nil
}

// SendEmail sends a generic email with the given parameters
func (e *EmailService) SendEmail(ctx context.Context, to, subject, templateName string, data map[string]interface{}) (err error) {
	ctx, span := observability.TraceEmailFunction(ctx, "send_email",
		attribute.String("email.to", to),
		attribute.String("email.subject", subject),
		attribute.String("email.template", templateName),
	)
	defer observability.FinishSpan(span, &err)

	if !e.IsEnabled() {
		e.logger.Info(ctx, "Email disabled, skipping email send", map[string]interface{}{
			"to":       to,
			"template": templateName,
		})
		return nil
	}

	if e.dialer == nil {
		return contextutils.ErrorWithContextf("email service not properly configured")
	}

	m := mail.NewMessage()
	m.SetHeader("From", fmt.Sprintf("%s <%s>", e.cfg.Email.SMTP.FromName, e.cfg.Email.SMTP.FromAddress))
	m.SetHeader("To", to)
	m.SetHeader("Subject", subject)

	content, err := e.generateEmailContent(templateName, data)
	if err != nil {
		return contextutils.WrapError(err, "failed to generate email content")
	}

	m.SetBody("text/html", content)

	if err = e.dialer.DialAndSend(m); err != nil {
		e.logger.Error(ctx, "Failed to send email", err, map[string]interface{}{
			"to":       to,
			"template": templateName,
			"subject":  subject,
		})
		return contextutils.WrapError(err, "failed to send email")
	}

	e.logger.Info(ctx, "Email sent successfully", map[string]interface{}{
		"to":       to,
		"template": templateName,
		"subject":  subject,
	})

	return nil
}

// IsEnabled returns whether email functionality is enabled
func (e *EmailService) IsEnabled() bool {
	return e.cfg.Email.Enabled && e.cfg.Email.SMTP.Host != ""
}

// generateEmailContent generates email content from templates
func (e *EmailService) generateEmailContent(templateName string, data map[string]interface{}) (string, error) {
	switch templateName {
	case "daily_reminder":
		return renderTemplate("daily_reminder", dailyReminderTemplate, data)
	case "test_email":
		return renderTemplate("test_email", testEmailTemplate, data)
	default:
		return "", contextutils.ErrorWithContextf("unknown template: %s", templateName)
	}
}

func renderTemplate(name, templateStr string, data map[string]interface{}) (string, error) {
	tmpl, err := template.New(name).Parse(templateStr)
	if err != nil {
		return "", contextutils.WrapError(err, "failed to parse template")
	}

	var buf strings.Builder
	if err := tmpl.Execute(&buf, data); err != nil {
		return "", contextutils.WrapError(err, "failed to execute template")
	}

	return buf.String(), nil
}

const dailyReminderTemplate = `
<!DOCTYPE html>
<html>
<head>
    <meta charset="UTF-8">
    <meta name="viewport" content="width=device-width, initial-scale=1.0">
    <title>今日刷题计划</title>
    <style>
        body { font-family: Arial, "PingFang SC", sans-serif; line-height: 1.6; color: #333; }
        .container { max-width: 600px; margin: 0 auto; padding: 20px; }
        .header { background-color: #4CAF50; color: white; padding: 20px; text-align: center; border-radius: 5px 5px 0 0; }
        .content { background-color: #f9f9f9; padding: 20px; }
        .button { display: inline-block; background-color: #4CAF50; color: white; padding: 12px 24px; text-decoration: none; border-radius: 5px; margin: 20px 0; }
        .footer { background-color: #eee; padding: 15px; text-align: center; font-size: 12px; color: #666; border-radius: 0 0 5px 5px; }
    </style>
</head>
<body>
    <div class="container">
        <div class="header">
            <h1>📋 今日刷题计划</h1>
        </div>
        <div class="content">
            <h2>{{.Username}}，你好！</h2>
            <p>今天是 {{.CurrentDate}}，当前连续打卡 <strong>{{.Streak}}</strong> 天。</p>
            {{if .Tasks}}
            <p>今日任务：</p>
            <ul>
                {{range .Tasks}}<li>{{.}}</li>{{end}}
            </ul>
            {{else}}
            <p>今天还没有生成任务，打开应用查看本周计划。</p>
            {{end}}
            <div style="text-align: center;">
                <a href="{{.AppURL}}/checkin" class="button">去打卡</a>
            </div>
        </div>
        <div class="footer">
            <p>不想再收到提醒？可以在<a href="{{.SettingsURL}}">设置</a>里关闭。</p>
        </div>
    </div>
</body>
</html>`

const testEmailTemplate = `
<!DOCTYPE html>
<html>
<head>
    <meta charset="UTF-8">
    <meta name="viewport" content="width=device-width, initial-scale=1.0">
    <title>Test Email</title>
    <style>
        body { font-family: Arial, sans-serif; line-height: 1.6; color: #333; }
        .container { max-width: 600px; margin: 0 auto; padding: 20px; }
        .header { background-color: #2196F3; color: white; padding: 20px; text-align: center; border-radius: 5px 5px 0 0; }
        .content { background-color: #f9f9f9; padding: 20px; }
        .footer { background-color: #eee; padding: 15px; text-align: center; font-size: 12px; color: #666; border-radius: 0 0 5px 5px; }
    </style>
</head>
<body>
    <div class="container">
        <div class="header">
            <h1>📧 Test Email</h1>
        </div>
        <div class="content">
            <h2>Hello {{.Username}}!</h2>
            <p>This is a test email to verify that your email settings are working correctly.</p>
            <p><strong>Test Time:</strong> {{.TestTime}}</p>
            <p>If you received this email, your email configuration is working properly!</p>
        </div>
        <div class="footer">
            <p>No action is required.</p>
        </div>
    </div>
</body>
</html>
`
