package services

import (
	"regexp"
	"strings"
)

// Intent is the three-way classification of a raw prompt
type Intent string

const (
	IntentCreate  Intent = "CREATE"
	IntentModify  Intent = "MODIFY"
	IntentInvalid Intent = "INVALID"
)

// IntentClassifier gates generation spend: it runs before the model call and
// rejects destructive or off-topic prompts. This is a cost and abuse control,
// not a security boundary - the Validator is the boundary.
type IntentClassifier struct {
	destructive []*regexp.Regexp
	modify      []*regexp.Regexp
	domain      []*regexp.Regexp
}

// NewIntentClassifier creates a rule-based classifier. Rules keep the check
// deterministic and free; generation remains the only model call per request.
func NewIntentClassifier() *IntentClassifier {
	return &IntentClassifier{
		destructive: compileAll(
			`\bdrop\s+(all\s+)?(table|tables|database|schema|data)\b`,
			`\bdelete\s+(all|every|everything)\b`,
			`\btruncate\b`,
			`\bwipe\b`,
			`\bdestroy\b`,
			`\bexecute\s+(this\s+)?(sql|query|statement)\b`,
			`\brun\s+(this\s+)?(sql|query|statement)\b`,
			`\braw\s+sql\b`,
			`--|;\s*drop`,
			`\bgrant\b.*\bprivileges\b`,
		),
		modify: compileAll(
			`\badd\b`, `\bremove\b`, `\brename\b`, `\bchange\b`, `\bmodify\b`,
			`\bupdate\s+(the\s+)?(schema|table|field|column)\b`,
			`\balso\s+(track|store|include)\b`,
			`\bexisting\b`, `\bto\s+my\b`,
		),
		domain: compileAll(
			`\bcrm\b`, `\bcustomer`, `\bcontact`, `\blead`, `\bdeal`, `\bpipeline\b`,
			`\btrack`, `\bmanage`, `\bstore\b`, `\bschema\b`, `\btable`, `\bfield`,
			`\bcolumn`, `\bdatabase\b`, `\brecord`, `\bclient`, `\binvoice`,
			`\bproject`, `\bapp\b`, `\bapplication\b`, `\binventory\b`, `\bbooking`,
			`\bappointment`, `\border`, `\bproperty`, `\bproperties\b`, `\bagent`,
			`\bshowing`, `\bsales\b`, `\bvendor`, `\bticket`, `\btask`,
		),
	}
}

// Classify maps a raw prompt to CREATE, MODIFY or INVALID. Destructive
// intent and prompts unrelated to CRM schema design are INVALID; the caller
// must not spend generation quota on them.
func (c *IntentClassifier) Classify(promptText string) Intent {
	text := strings.ToLower(strings.TrimSpace(promptText))
	if text == "" {
		return IntentInvalid
	}

	for _, p := range c.destructive {
		if p.MatchString(text) {
			return IntentInvalid
		}
	}

	onTopic := false
	for _, p := range c.domain {
		if p.MatchString(text) {
			onTopic = true
			break
		}
	}
	if !onTopic {
		return IntentInvalid
	}

	for _, p := range c.modify {
		if p.MatchString(text) {
			return IntentModify
		}
	}

	return IntentCreate
}

func compileAll(patterns ...string) []*regexp.Regexp {
	compiled := make([]*regexp.Regexp, 0, len(patterns))
	for _, p := range patterns {
		compiled = append(compiled, regexp.MustCompile(p))
	}
	return compiled
}
