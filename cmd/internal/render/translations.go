package render

import (
	"strings"

	v1 "github.com/privacybydesign/irmajs/shared/contracts/session/v1"
)

// DefaultLanguage is used for languages and keys without a translation.
const DefaultLanguage = "en"

var translations = map[string]map[string]string{
	"en": {
		"Common.WaitData":             "Waiting for data...",
		"Common.Cancel":               "Cancel",
		"Messages.FollowInstructions": "Please follow the instructions in your IRMA app",
		"Sign.Title":                  "signature request",
		"Sign.Body":                   "A website requests that you sign a message using some of your IRMA attributes. Please scan the QR code with your IRMA app.",
		"Verify.Title":                "attribute request",
		"Verify.Body":                 "A website requests that you disclose some of your IRMA attributes. Please scan the QR code with your IRMA app.",
		"Issue.Title":                 "attribute issuance",
		"Issue.Body":                  "A website wishes to issue IRMA attributes to you. Please scan the QR code with your IRMA app.",
	},
	"nl": {
		"Common.WaitData":             "Wachten op data...",
		"Common.Cancel":               "Annuleren",
		"Messages.FollowInstructions": "Volg de instructies in uw IRMA app.",
		"Sign.Title":                  "ondertekenen",
		"Sign.Body":                   "Een website vraagt u een bericht te ondertekenen met enkele IRMA attributen. Scan de QR code met uw IRMA app.",
		"Verify.Title":                "attributen tonen",
		"Verify.Body":                 "Een website vraagt u enkele IRMA attributen te tonen. Scan de QR code met uw IRMA app.",
		"Issue.Title":                 "attributen uitgeven",
		"Issue.Body":                  "Een website wil u enkele IRMA attributen geven. Scan de QR code met uw IRMA app.",
	},
}

var typeSections = map[v1.Type]string{
	v1.TypeDisclosing: "Verify",
	v1.TypeIssuing:    "Issue",
	v1.TypeSigning:    "Sign",
}

// Translate returns the string for key in lang, falling back to English,
// and to "" when neither has it.
func Translate(lang, key string) string {
	if s, ok := translations[strings.ToLower(lang)][key]; ok {
		return s
	}
	return translations[DefaultLanguage][key]
}

// TypeText returns the title and body presented for a session type.
func TypeText(lang string, t v1.Type) (title, body string) {
	section, ok := typeSections[t]
	if !ok {
		return "", ""
	}
	return Translate(lang, section+".Title"), Translate(lang, section+".Body")
}
