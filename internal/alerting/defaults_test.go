package alerting

import (
	"testing"

	"github.com/edupresencia/fichai/internal/validation"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultRules(t *testing.T) {
	v := validation.New()

	for _, lang := range []string{"ca", "es", "en"} {
		rules := DefaultRules("inst-1", lang)
		require.Len(t, rules, 3)

		names := make(map[string]bool, len(rules))
		for _, rule := range rules {
			assert.NotEmpty(t, rule.Name, "rule must have a name")
			assert.False(t, names[rule.Name], "duplicate rule name: %s", rule.Name)
			names[rule.Name] = true

			assert.Equal(t, "inst-1", rule.InstitutionID)
			assert.Contains(t, rule.Notification.Recipients, RecipientSelf)
			require.NoError(t, v.Struct(rule), "default rule %q must be valid", rule.Name)
		}
	}
}

func TestDefaultRules_Localized(t *testing.T) {
	assert.Equal(t, "Retard en l'entrada", DefaultRules("i", "ca")[0].Name)
	assert.Equal(t, "Retraso en la entrada", DefaultRules("i", "es-ES")[0].Name)
	assert.Equal(t, "Late arrival", DefaultRules("i", "en-GB")[0].Name)
	assert.Equal(t, "Retard en l'entrada", DefaultRules("i", "fr")[0].Name, "unsupported language falls back to Catalan")
}

func TestMatchLanguage(t *testing.T) {
	assert.Equal(t, "ca", MatchLanguage(""))
	assert.Equal(t, "ca", MatchLanguage("ca-ES"))
	assert.Equal(t, "es", MatchLanguage("es"))
	assert.Equal(t, "en", MatchLanguage("en-US"))
	assert.Equal(t, "es", MatchLanguage("de", "es"))
}
