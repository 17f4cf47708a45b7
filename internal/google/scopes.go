package google

// DefaultOAuthScopes are requested on the consent screen.
//
// Mail sending rides on the same grant as the calendar integration: a user
// who connected their calendar can send reminders, and one who did not cannot.
var DefaultOAuthScopes = []string{
	"openid",
	"https://www.googleapis.com/auth/userinfo.email",

	"https://www.googleapis.com/auth/calendar",
	"https://www.googleapis.com/auth/gmail.send",
}
