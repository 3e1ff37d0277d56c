// Package mail renders and delivers organization membership email.
//
// Service implements orgs.MailService on top of a Sender. SMTPSender
// delivers through an SMTP relay; LogSender writes each message to the
// logger, which is what development deployments without a relay use.
//
//	sender := mail.NewSMTPSender(mail.SMTPConfig{Host: "smtp.example.com", Port: 587, From: "no-reply@example.com"})
//	svc, err := mail.NewService(sender, "https://vault.example.com", logger)
package mail
