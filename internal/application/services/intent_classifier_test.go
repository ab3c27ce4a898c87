package services

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestClassify(t *testing.T) {
	c := NewIntentClassifier()

	tests := []struct {
		name   string
		prompt string
		want   Intent
	}{
		{
			"real estate CRM request",
			"I need a CRM for my real estate business with properties, agents, and showings",
			IntentCreate,
		},
		{
			"fresh inventory app",
			"Build an app to track inventory and vendor orders",
			IntentCreate,
		},
		{
			"add a field to existing schema",
			"Add a phone number field to my contacts table",
			IntentModify,
		},
		{
			"rename column",
			"Rename the status column on deals to stage",
			IntentModify,
		},
		{
			"drop all tables",
			"Drop all tables and start over",
			IntentInvalid,
		},
		{
			"raw sql execution",
			"Execute this SQL against my database: SELECT * FROM users",
			IntentInvalid,
		},
		{
			"truncate",
			"truncate the contacts table",
			IntentInvalid,
		},
		{
			"off topic",
			"What is the weather like today?",
			IntentInvalid,
		},
		{
			"empty prompt",
			"   ",
			IntentInvalid,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, c.Classify(tt.prompt))
		})
	}
}

func TestClassifyDestructiveWinsOverModify(t *testing.T) {
	c := NewIntentClassifier()
	// "remove" alone is a modification verb, but wiping everything is not
	assert.Equal(t, IntentInvalid, c.Classify("Remove everything, wipe the schema and all data"))
}
