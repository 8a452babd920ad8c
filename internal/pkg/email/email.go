package email

import (
	"fmt"
	"net/smtp"
	"strings"

	"github.com/qs3c/clone_gen_server/config"
)

type Service struct {
	cfg *config.EmailConfig
}

func NewService(cfg *config.EmailConfig) *Service {
	return &Service{cfg: cfg}
}

// SendJobComplete 发送任务完成通知
func (s *Service) SendJobComplete(jobID int64, targetName string, parityScore int, appURL string) error {
	if s.cfg.NotifyTo == "" {
		return nil
	}

	subject := fmt.Sprintf("克隆完成 - %s", targetName)
	body := fmt.Sprintf(`
<!DOCTYPE html>
<html>
<head>
    <meta charset="UTF-8">
</head>
<body style="font-family: Arial, sans-serif; line-height: 1.6; color: #333;">
    <div style="max-width: 600px; margin: 0 auto; padding: 20px;">
        <h2 style="color: #2563eb;">克隆任务完成</h2>
        <p>任务 #%d（目标产品：%s）已完成。</p>
        <div style="background-color: #f3f4f6; padding: 15px; text-align: center; font-size: 24px; font-weight: bold; margin: 20px 0;">
            还原度 %d%%
        </div>
        <p>访问地址：<a href="%s">%s</a></p>
        <hr style="border: none; border-top: 1px solid #e5e7eb; margin: 20px 0;">
        <p style="color: #6b7280; font-size: 12px;">此邮件由系统自动发送，请勿回复。</p>
    </div>
</body>
</html>
`, jobID, targetName, parityScore, appURL, appURL)

	return s.sendHTML(s.cfg.NotifyTo, subject, body)
}

// SendJobFailed 发送任务失败通知
func (s *Service) SendJobFailed(jobID int64, targetName, errMsg string) error {
	if s.cfg.NotifyTo == "" {
		return nil
	}

	subject := fmt.Sprintf("克隆失败 - %s", targetName)
	body := fmt.Sprintf(`
<!DOCTYPE html>
<html>
<head>
    <meta charset="UTF-8">
</head>
<body style="font-family: Arial, sans-serif; line-height: 1.6; color: #333;">
    <div style="max-width: 600px; margin: 0 auto; padding: 20px;">
        <h2 style="color: #dc2626;">克隆任务失败</h2>
        <p>任务 #%d（目标产品：%s）执行失败：</p>
        <p style="background-color: #f3f4f6; padding: 10px; word-break: break-all;">%s</p>
        <p>请在控制台查看任务详情后重试。</p>
        <hr style="border: none; border-top: 1px solid #e5e7eb; margin: 20px 0;">
        <p style="color: #6b7280; font-size: 12px;">此邮件由系统自动发送，请勿回复。</p>
    </div>
</body>
</html>
`, jobID, targetName, errMsg)

	return s.sendHTML(s.cfg.NotifyTo, subject, body)
}

// sendHTML 发送 HTML 邮件
func (s *Service) sendHTML(to, subject, body string) error {
	headers := make(map[string]string)
	headers["From"] = s.cfg.From
	headers["To"] = to
	headers["Subject"] = subject
	headers["MIME-Version"] = "1.0"
	headers["Content-Type"] = "text/html; charset=UTF-8"

	var msg strings.Builder
	for k, v := range headers {
		msg.WriteString(fmt.Sprintf("%s: %s\r\n", k, v))
	}
	msg.WriteString("\r\n")
	msg.WriteString(body)

	auth := smtp.PlainAuth("", s.cfg.Username, s.cfg.Password, s.cfg.SMTPHost)
	addr := fmt.Sprintf("%s:%d", s.cfg.SMTPHost, s.cfg.SMTPPort)

	return smtp.SendMail(addr, auth, s.cfg.From, []string{to}, []byte(msg.String()))
}
