package mailer

// Config holds delivery settings. Without both Postmark tokens the service
// only writes messages to the logger, which is how local setups run.
type Config struct {
	PostmarkServerToken  string `env:"POSTMARK_SERVER_TOKEN"`
	PostmarkAccountToken string `env:"POSTMARK_ACCOUNT_TOKEN"`
	SenderEmail          string `env:"SENDER_EMAIL" envDefault:"no-reply@sxp.local"`
	SupportEmail         string `env:"SUPPORT_EMAIL" envDefault:"support@sxp.local"`
	// BaseURL prefixes the verification and reset links.
	BaseURL string `env:"BASE_URL" envDefault:"http://localhost:8080"`
	AppName string `env:"APP_NAME" envDefault:"SXP Optimizer"`
	// LogFallback logs a message instead of failing when the provider
	// rejects it.
	LogFallback bool `env:"LOG_FALLBACK" envDefault:"true"`
}

func (c Config) postmarkEnabled() bool {
	return c.PostmarkServerToken != "" && c.PostmarkAccountToken != ""
}
