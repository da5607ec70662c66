// Package config defines the necessary types to configure the application.
// An example config file config.yaml is provided in the repository.
package config

import "time"

type Config struct {
	Application Application `yaml:"application"`
	Logger      Logger      `yaml:"logger"`

	HTTP    HTTPServer `yaml:"http"`
	Backend Backend    `yaml:"backend"`
	ValKey  ValKey     `yaml:"valkey"`

	Marketplace Marketplace `yaml:"marketplace"`

	Housekeeper Housekeeper `yaml:"housekeeper"`
}

// Housekeeper drives the periodic cleanup of expired web sessions and the
// per-session runtime state attached to them.
type Housekeeper struct {
	TriggerInterval time.Duration `yaml:"triggerInterval" default:"10m"`
}

type Application struct {
	Name        string `yaml:"name" default:"loan-lounge"`
	Environment string `yaml:"environment" default:"development"`
	Version     string `yaml:"version"`
}

type Logger struct {
	Level  string `yaml:"level" default:"info"`
	Format string `yaml:"format" default:"json"`
}

type HTTPServer struct {
	Address         string        `yaml:"address" default:":8080"`
	ShutdownTimeout time.Duration `yaml:"shutdownTimeout" default:"5s"`
}

// Backend describes the hosted backend-as-a-service the application
// delegates auth, table CRUD and object storage to.
type Backend struct {
	BaseURL        string        `yaml:"baseURL"`
	APIKey         string        `yaml:"apiKey"`
	APIKeyFile     string        `yaml:"apiKeyFile"`
	RequestTimeout time.Duration `yaml:"requestTimeout" default:"10s"`
	LogoBucket     string        `yaml:"logoBucket" default:"lender-logos"`
}

type ValKey struct {
	Host     string `yaml:"host" default:"localhost:6379"`
	User     string `yaml:"user"`
	Password string `yaml:"password"`
	Prefix   string `yaml:"prefix" default:"loanlounge"`
}

type Marketplace struct {
	SessionDuration time.Duration `yaml:"sessionDuration" default:"12h"`

	Verification Verification `yaml:"verification"`

	ProfileCacheTTL time.Duration `yaml:"profileCacheTTL" default:"30s"`

	SessionCookieTemplate CookieTemplate `yaml:"sessionCookie"`
}

// Verification controls the email-verification polling loop.
type Verification struct {
	PollInterval  time.Duration `yaml:"pollInterval" default:"5s"`
	MaxAttempts   int           `yaml:"maxAttempts" default:"60"`
	BackoffFactor float64       `yaml:"backoffFactor" default:"1.0"`
	MaxInterval   time.Duration `yaml:"maxInterval" default:"1m"`
}

type CookieSameSite string

const (
	CookieSameSiteNone   CookieSameSite = "none"
	CookieSameSiteLax    CookieSameSite = "lax"
	CookieSameSiteStrict CookieSameSite = "strict"
)

type CookieTemplate struct {
	Name     string         `yaml:"name" default:"__Host-Http-loanlounge-session"`
	MaxAge   int            `yaml:"maxAge"`
	Path     string         `yaml:"path" default:"/"`
	Domain   string         `yaml:"domain"`
	Secure   bool           `yaml:"secure" default:"true"`
	HTTPOnly bool           `yaml:"httpOnly" default:"true"`
	SameSite CookieSameSite `yaml:"sameSite" default:"lax"`
}
