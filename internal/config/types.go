package config

// Config is the root configuration structure for dependencywarden.
// Serialised to ~/.depwarden/config.json.
type Config struct {
	Database DatabaseConfig `mapstructure:"database" json:"database"`
	Git      GitConfig      `mapstructure:"git"      json:"git"`
	Agent    AgentConfig    `mapstructure:"agent"    json:"agent"`
	Gateway  GatewayConfig  `mapstructure:"gateway"  json:"gateway"`
	Notify   NotifyConfig   `mapstructure:"notify"   json:"notify"`
}

// DatabaseConfig controls the storage backend for alerts and policies.
type DatabaseConfig struct {
	// Driver is "sqlite" (default) or "mysql".
	Driver string `mapstructure:"driver" json:"driver"`
	// Path is the SQLite file path (expanded at runtime).
	Path string `mapstructure:"path"   json:"path"`
	// DSN is the MySQL data source name (used when Driver == "mysql").
	DSN string `mapstructure:"dsn"    json:"dsn"`
}

// GitConfig holds credentials for each supported git hosting platform.
type GitConfig struct {
	GitHub []GitHubConfig `mapstructure:"github" json:"github"`
	GitLab []GitLabConfig `mapstructure:"gitlab" json:"gitlab"`
}

// GitHubConfig holds credentials for a single GitHub instance.
type GitHubConfig struct {
	Token string `mapstructure:"token" json:"token"`
	// Host allows enterprise GitHub (e.g. github.mycompany.com).
	Host string `mapstructure:"host"  json:"host"`
}

// GitLabConfig holds credentials for a single GitLab instance.
type GitLabConfig struct {
	Token string `mapstructure:"token" json:"token"`
	Host  string `mapstructure:"host"  json:"host"`
}

// AgentConfig controls the background remediation runner.
type AgentConfig struct {
	// Workers is the number of alerts remediated in parallel.
	Workers int `mapstructure:"workers" json:"workers"`
	// DrainInterval is how often pending alerts are picked up,
	// as a Go duration string (default "5m").
	DrainInterval string `mapstructure:"drain_interval" json:"drain_interval"`
	// CallTimeout bounds each hosting API call, as a Go duration string
	// (default "10s").
	CallTimeout string `mapstructure:"call_timeout" json:"call_timeout"`
	// MaxAttempts is the retry budget per hosting API call.
	MaxAttempts int `mapstructure:"max_attempts" json:"max_attempts"`
}

// GatewayConfig controls the local control-plane HTTP server.
type GatewayConfig struct {
	// Port is the localhost HTTP port the gateway listens on (default: 6180).
	Port int `mapstructure:"port" json:"port"`
}

// NotifyConfig controls outbound remediation notifications.
type NotifyConfig struct {
	// Events filters which event types are sent; empty = defaults.
	Events  []string            `mapstructure:"events"  json:"events"`
	Slack   SlackNotifyConfig   `mapstructure:"slack"   json:"slack"`
	Email   EmailNotifyConfig   `mapstructure:"email"   json:"email"`
	Webhook WebhookNotifyConfig `mapstructure:"webhook" json:"webhook"`
}

// SlackNotifyConfig posts remediation events to a Slack channel via the
// Slack Web API.
type SlackNotifyConfig struct {
	Token   string `mapstructure:"token"   json:"token"`
	Channel string `mapstructure:"channel" json:"channel"`
}

// EmailNotifyConfig sends remediation events over SMTP.
type EmailNotifyConfig struct {
	Host     string   `mapstructure:"host"     json:"host"`
	Port     int      `mapstructure:"port"     json:"port"`
	Username string   `mapstructure:"username" json:"username"`
	Password string   `mapstructure:"password" json:"password"`
	From     string   `mapstructure:"from"     json:"from"`
	To       []string `mapstructure:"to"       json:"to"`
}

// WebhookNotifyConfig POSTs remediation events as JSON to an arbitrary URL.
type WebhookNotifyConfig struct {
	URL string `mapstructure:"url" json:"url"`
	// Secret, when set, signs each payload with HMAC-SHA256 so the
	// receiver can verify origin.
	Secret string `mapstructure:"secret" json:"secret"`
}
