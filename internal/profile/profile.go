// Package profile holds the runtime configuration for the calchat server.
package profile

import (
	"time"

	"github.com/pkg/errors"
	"github.com/spf13/viper"
)

// Profile is the configuration to start the main server.
type Profile struct {
	// Mode can be "prod" or "dev"
	Mode string
	// Addr is the binding address for the server
	Addr string
	// Port is the binding port for the server
	Port int
	// Version is the current version of the server
	Version string

	// Cal.com API configuration
	CalAPIKey    string
	CalBaseURLV1 string
	CalBaseURLV2 string
	// CalEventTypeSlug selects the event type used for bookings.
	CalEventTypeSlug string

	// LLM configuration
	OpenAIAPIKey  string
	OpenAIBaseURL string
	ChatModel     string

	// Default user context (overridable per session)
	UserEmail string
	Timezone  string

	// Orchestration limits
	MaxToolSteps int
	HTTPTimeout  time.Duration
}

func (p *Profile) IsDev() bool {
	return p.Mode != "prod"
}

// FromEnv loads configuration from environment variables using viper.
// Every key is available as CALCHAT_<KEY>, e.g. CALCHAT_CAL_API_KEY.
func FromEnv() (*Profile, error) {
	v := viper.New()
	v.SetEnvPrefix("calchat")
	v.AutomaticEnv()

	v.SetDefault("mode", "dev")
	v.SetDefault("addr", "")
	v.SetDefault("port", 8081)
	v.SetDefault("cal_base_url_v1", "https://api.cal.com/v1")
	v.SetDefault("cal_base_url_v2", "https://api.cal.com/v2")
	v.SetDefault("cal_event_type_slug", "30min")
	v.SetDefault("openai_base_url", "https://api.openai.com/v1")
	v.SetDefault("chat_model", "gpt-4o")
	v.SetDefault("timezone", "America/New_York")
	v.SetDefault("max_tool_steps", 5)
	v.SetDefault("http_timeout", "30s")

	p := &Profile{
		Mode:             v.GetString("mode"),
		Addr:             v.GetString("addr"),
		Port:             v.GetInt("port"),
		CalAPIKey:        v.GetString("cal_api_key"),
		CalBaseURLV1:     v.GetString("cal_base_url_v1"),
		CalBaseURLV2:     v.GetString("cal_base_url_v2"),
		CalEventTypeSlug: v.GetString("cal_event_type_slug"),
		OpenAIAPIKey:     v.GetString("openai_api_key"),
		OpenAIBaseURL:    v.GetString("openai_base_url"),
		ChatModel:        v.GetString("chat_model"),
		UserEmail:        v.GetString("user_email"),
		Timezone:         v.GetString("timezone"),
		MaxToolSteps:     v.GetInt("max_tool_steps"),
		HTTPTimeout:      v.GetDuration("http_timeout"),
	}

	if err := p.Validate(); err != nil {
		return nil, err
	}
	return p, nil
}

// Validate checks that required configuration values are present.
// Credentials are opaque; only non-emptiness is enforced.
func (p *Profile) Validate() error {
	if p.CalAPIKey == "" {
		return errors.New("Cal.com API key is required, set CALCHAT_CAL_API_KEY")
	}
	if p.OpenAIAPIKey == "" {
		return errors.New("OpenAI API key is required, set CALCHAT_OPENAI_API_KEY")
	}
	if p.UserEmail == "" {
		return errors.New("user email is required, set CALCHAT_USER_EMAIL")
	}
	if p.Timezone == "" {
		return errors.New("timezone is required, set CALCHAT_TIMEZONE")
	}
	if p.MaxToolSteps <= 0 {
		return errors.Errorf("max tool steps must be positive, got %d", p.MaxToolSteps)
	}
	return nil
}
