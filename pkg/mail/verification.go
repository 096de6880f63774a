package mail

import "fmt"

// VerificationEmail builds the OTP email sent to counsellors during onboarding.
func VerificationEmail(to, code string) Message {
	body := fmt.Sprintf(`
<html>
    <body>
        <h2>Welcome to Sonder!</h2>
        <p>Please use the following OTP to verify your account:</p>
        <h1>%s</h1>
        <p>This code expires in 5 minutes. If you did not request it, please ignore this email.</p>
    </body>
</html>
`, code)

	return Message{
		To:      []string{to},
		Subject: "Verify your Sonder Account",
		Body:    body,
	}
}
