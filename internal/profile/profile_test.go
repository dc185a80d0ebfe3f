package profile

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFromEnv(t *testing.T) {
	t.Setenv("CALCHAT_CAL_API_KEY", "cal_live_test")
	t.Setenv("CALCHAT_OPENAI_API_KEY", "sk-test")
	t.Setenv("CALCHAT_USER_EMAIL", "user@example.com")
	t.Setenv("CALCHAT_TIMEZONE", "Europe/London")
	t.Setenv("CALCHAT_PORT", "9090")

	p, err := FromEnv()
	require.NoError(t, err)

	assert.Equal(t, "cal_live_test", p.CalAPIKey)
	assert.Equal(t, "sk-test", p.OpenAIAPIKey)
	assert.Equal(t, "user@example.com", p.UserEmail)
	assert.Equal(t, "Europe/London", p.Timezone)
	assert.Equal(t, 9090, p.Port)
	// Defaults
	assert.Equal(t, "https://api.cal.com/v1", p.CalBaseURLV1)
	assert.Equal(t, "30min", p.CalEventTypeSlug)
	assert.Equal(t, 5, p.MaxToolSteps)
	assert.True(t, p.IsDev())
}

func TestFromEnvMissingCredentials(t *testing.T) {
	t.Setenv("CALCHAT_CAL_API_KEY", "")
	t.Setenv("CALCHAT_OPENAI_API_KEY", "")

	_, err := FromEnv()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "CALCHAT_CAL_API_KEY")
}

func TestValidate(t *testing.T) {
	p := &Profile{
		CalAPIKey:    "key",
		OpenAIAPIKey: "key",
		UserEmail:    "a@b.c",
		Timezone:     "UTC",
		MaxToolSteps: 0,
	}
	err := p.Validate()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "max tool steps")
}
