package auth

import "strings"

// Category groups auth failures for user-facing messages.
type Category string

const (
	CategoryInvalidCredentials Category = "invalid-credentials"
	CategoryEmailNotConfirmed  Category = "email-not-confirmed"
	CategoryAlreadyRegistered  Category = "already-registered"
	CategoryWeakPassword       Category = "weak-password"
	CategoryUnknown            Category = "unknown"
)

var classifications = []struct {
	fragment string
	category Category
	message  string
}{
	{msgInvalidCredentials, CategoryInvalidCredentials, "Invalid email or password. Please try again."},
	{msgEmailNotConfirmed, CategoryEmailNotConfirmed, "Please check your email and confirm your account before signing in."},
	{msgAlreadyRegistered, CategoryAlreadyRegistered, "An account with this email already exists. Please sign in instead."},
	{"Password should be at least", CategoryWeakPassword, "Password must be at least 6 characters long."},
}

// Classify maps an auth failure to a category and the message to show.
// Unrecognized errors keep their raw message.
func Classify(err error) (Category, string) {
	if err == nil {
		return "", ""
	}
	raw := err.Error()
	for _, c := range classifications {
		if strings.Contains(raw, c.fragment) {
			return c.category, c.message
		}
	}
	return CategoryUnknown, raw
}
