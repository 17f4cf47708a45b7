// Package gmail composes transactional emails and delivers them through the
// Gmail API.
//
// Messages are rendered into the LawConnect HTML template, assembled as an
// RFC 2822 message and encoded with base64url without padding before being
// handed to users.messages.send. Each send uses the access token of the
// lawyer on whose behalf the email goes out.
//
//	sender := gmail.NewClient()
//	id, err := sender.Send(ctx, accessToken, &gmail.Message{
//	    To:      "cliente@example.com",
//	    Subject: "Recordatorio de audiencia",
//	    Body:    "Le recordamos su audiencia de mañana.",
//	})
package gmail
