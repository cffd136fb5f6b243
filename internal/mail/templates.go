package mail

import (
	"fmt"
	"strings"
)

// VerificationMessage builds the email-verification mail for a new account.
func VerificationMessage(to, username, link string) Message {
	return Message{
		To:      to,
		Subject: "Please verify your email",
		Text: fmt.Sprintf(
			"Hi %s,\n\nWelcome to taskhub! Confirm your email address by opening the link below:\n\n%s\n\nThe link expires soon. If you did not create an account you can ignore this message.\n",
			displayName(username), link),
	}
}

// PasswordResetMessage builds the forgot-password mail.
func PasswordResetMessage(to, username, link string) Message {
	return Message{
		To:      to,
		Subject: "Reset your password",
		Text: fmt.Sprintf(
			"Hi %s,\n\nWe received a request to reset your password. Use the link below to choose a new one:\n\n%s\n\nIf you did not ask for a reset, no action is needed.\n",
			displayName(username), link),
	}
}

// TokenFromLink returns the last path segment of a link, the part a mail
// recipient would redeem.
func TokenFromLink(text string) string {
	for _, line := range strings.Split(text, "\n") {
		line = strings.TrimSpace(line)
		if strings.HasPrefix(line, "http://") || strings.HasPrefix(line, "https://") {
			line = strings.TrimRight(line, "/")
			return line[strings.LastIndex(line, "/")+1:]
		}
	}
	return ""
}

func displayName(username string) string {
	if strings.TrimSpace(username) == "" {
		return "there"
	}
	return username
}
