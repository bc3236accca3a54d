package chat

import (
	"errors"
	"strings"
	"unicode"
	"unicode/utf8"

	"github.com/ShreyaJV11/support-chatbot/internal/storage/models"
)

var (
	errNoName  = errors.New("identity has no name")
	errNoEmail = errors.New("identity has no valid email")
)

// looksLikeIdentity is the submission heuristic: a comma and an @ anywhere in
// the input.
func looksLikeIdentity(input string) bool {
	return strings.Contains(input, ",") && strings.Contains(input, "@")
}

// parseIdentity reads "name, email[, organization]". The token holding the @
// is the email and the first other token is the name. Without a third token
// the organization is the email's domain label, capitalized.
func parseIdentity(input string) (models.Identity, error) {
	var tokens []string
	for _, t := range strings.Split(input, ",") {
		if t = strings.TrimSpace(t); t != "" {
			tokens = append(tokens, t)
		}
	}

	var id models.Identity
	emailIdx := -1
	for i, t := range tokens {
		if strings.Contains(t, "@") {
			emailIdx = i
			break
		}
	}
	if emailIdx == -1 || !validEmail(tokens[emailIdx]) {
		return models.Identity{}, errNoEmail
	}
	id.Email = strings.ToLower(tokens[emailIdx])

	rest := make([]string, 0, len(tokens)-1)
	for i, t := range tokens {
		if i != emailIdx {
			rest = append(rest, t)
		}
	}
	if len(rest) == 0 {
		return models.Identity{}, errNoName
	}
	id.Name = rest[0]

	if len(rest) > 1 {
		id.Organization = rest[1]
	} else {
		id.Organization = organizationFromEmail(id.Email)
	}
	return id, nil
}

func identityFromUserInfo(info *UserInfo) (models.Identity, bool) {
	if info == nil {
		return models.Identity{}, false
	}
	name := strings.TrimSpace(info.Name)
	email := strings.ToLower(strings.TrimSpace(info.Email))
	if name == "" || !validEmail(email) {
		return models.Identity{}, false
	}
	org := strings.TrimSpace(info.Organization)
	if org == "" {
		org = organizationFromEmail(email)
	}
	return models.Identity{Name: name, Email: email, Organization: org}, true
}

func validEmail(s string) bool {
	if strings.ContainsAny(s, " \t") || strings.Count(s, "@") != 1 {
		return false
	}
	local, domain, _ := strings.Cut(s, "@")
	return local != "" && domain != "" && !strings.HasPrefix(domain, ".")
}

func organizationFromEmail(email string) string {
	_, domain, ok := strings.Cut(email, "@")
	if !ok {
		return ""
	}
	label, _, _ := strings.Cut(domain, ".")
	if label == "" {
		return ""
	}
	label = strings.ToLower(label)
	r, size := utf8.DecodeRuneInString(label)
	return string(unicode.ToUpper(r)) + label[size:]
}
