package core

import (
	"log"
	"net"
	"net/mail"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/pkg/errors"
	"github.com/spf13/viper"
)

const (
	defaultSecretKey     = "w7l%x2(b!k0$+vq9=dz&uoxh2(h!x)#*c2(#yg4h^$cegm2emy"
	defaultAdminPassword = "Admin@12345"
)

type (
	Config struct {
		AppName         string
		Build           string
		Env             string
		Debug           bool
		TestMode        bool
		SecretKey       string
		FrontendBaseURL string
		RollbarToken    string

		Server struct {
			Address                   string
			DebugAddress              string
			Host                      string
			ShutdownTimeout           time.Duration
			JWTExpirationDelta        time.Duration
			JWTRefreshExpirationDelta time.Duration
			BodyLimit                 string
		}

		Database struct {
			Engine        string // postgres | memory
			Host          string
			Port          string
			Name          string
			User          string
			Password      string
			AdminUser     string
			AdminPassword string
			DisableTLS    bool
		}

		Uploads struct {
			MaxFileSize int64
			Backend     string // local | s3
			Dir         string
			BaseURL     string
			S3Bucket    string
			S3Region    string
			S3Prefix    string
			S3PublicURL string
		}

		Documents struct {
			// RestrictTeacherReads limits single-document reads by teachers to their assigned students.
			RestrictTeacherReads bool
		}

		RateLimit struct {
			Requests int
			Window   time.Duration
		}

		Redis struct {
			Address  string
			Password string
			DB       int
		}

		NATS struct {
			URL           string
			SubjectPrefix string
		}

		Mail struct {
			DefaultFromEmail string
			SendgridAPIKey   string
			NotifyByEmail    bool
		}

		DefaultAdmin struct {
			Username string
			Password string
			Email    string
			Name     string
		}

		Jobs struct {
			NotificationRetention       time.Duration
			NotificationCleanupSchedule string
		}
	}
)

// DatabaseAddress returns the "host:port" of the database server.
func (c *Config) DatabaseAddress() string {
	return net.JoinHostPort(c.Database.Host, c.Database.Port)
}

// DefaultFromEmail parses the configured sender address, falling back to a bare address.
func (c *Config) DefaultFromEmail() mail.Address {
	if addr, err := mail.ParseAddress(c.Mail.DefaultFromEmail); err == nil {
		return *addr
	}
	return mail.Address{Name: c.AppName, Address: c.Mail.DefaultFromEmail}
}

// Validate refuses production settings that still carry the development defaults.
func (c *Config) Validate() error {
	if c.Env != "PROD" {
		return nil
	}
	switch {
	case c.Debug:
		return errors.New("config: debug must be disabled in PROD")
	case c.SecretKey == "" || c.SecretKey == defaultSecretKey:
		return errors.New("config: secretKey must be set in PROD")
	case c.DefaultAdmin.Password == defaultAdminPassword:
		return errors.New("config: defaultAdmin.password must be changed in PROD")
	}
	return nil
}

// NewConfig loads the configuration from the environment (and an optional `.env.<env>` file).
func NewConfig() *Config {
	v := viper.New()

	// defaults
	v.SetTypeByDefaultValue(true)
	v.SetDefault("debug", true)
	v.SetDefault("testMode", false)
	v.SetDefault("appName", "PaperDesk")
	v.SetDefault("build", "develop")
	v.SetDefault("secretKey", defaultSecretKey)
	v.SetDefault("frontendBaseURL", "http://localhost:3000")
	v.SetDefault("rollbarToken", "")

	v.SetDefault("server.address", ":5000")
	v.SetDefault("server.debugAddress", ":5001")
	v.SetDefault("server.host", "localhost")
	v.SetDefault("server.shutdownTimeout", 10*time.Second)
	v.SetDefault("server.jwtExpiration", 7*24*time.Hour)
	v.SetDefault("server.jwtRefreshExpiration", 30*24*time.Hour)
	v.SetDefault("server.bodyLimit", "40M")

	v.SetDefault("database.engine", "postgres")
	v.SetDefault("database.host", "localhost")
	v.SetDefault("database.port", "5432")
	v.SetDefault("database.name", "paperdesk")
	v.SetDefault("database.user", "paperdesk")
	v.SetDefault("database.password", "paperdesk")
	v.SetDefault("database.adminUser", "")
	v.SetDefault("database.adminPassword", "")
	v.SetDefault("database.disableTLS", true)

	v.SetDefault("uploads.maxFileSize", int64(16*1024*1024))
	v.SetDefault("uploads.backend", "local")
	v.SetDefault("uploads.dir", "uploads")
	v.SetDefault("uploads.baseURL", "http://localhost:5000/uploads")
	v.SetDefault("uploads.s3Bucket", "")
	v.SetDefault("uploads.s3Region", "us-east-1")
	v.SetDefault("uploads.s3Prefix", "research-portal")
	v.SetDefault("uploads.s3PublicURL", "")

	v.SetDefault("documents.restrictTeacherReads", false)

	v.SetDefault("rateLimit.requests", 100)
	v.SetDefault("rateLimit.window", 15*time.Minute)

	v.SetDefault("redis.address", "")
	v.SetDefault("redis.password", "")
	v.SetDefault("redis.db", 0)

	v.SetDefault("nats.url", "")
	v.SetDefault("nats.subjectPrefix", "paperdesk")

	v.SetDefault("mail.defaultFromEmail", "noreply@localhost")
	v.SetDefault("mail.sendgridApiKey", "")
	v.SetDefault("mail.notifyByEmail", false)

	v.SetDefault("defaultAdmin.username", "admin")
	v.SetDefault("defaultAdmin.password", defaultAdminPassword)
	v.SetDefault("defaultAdmin.email", "admin@localhost")
	v.SetDefault("defaultAdmin.name", "System Administrator")

	v.SetDefault("jobs.notificationRetention", 90*24*time.Hour)
	v.SetDefault("jobs.notificationCleanupSchedule", "@daily")

	env := strings.ToUpper(os.Getenv("ENV")) // DEV (local; default), TEST, QA, PROD
	switch env {
	case "":
		env = "DEV"
	case "TEST":
		v.SetDefault("testMode", true)
	}
	v.SetEnvPrefix(env)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	// load .env if it exists (ignore if it does not)
	wd, _ := os.Getwd()
	dotEnvPath := filepath.Join(wd, "config", ".env."+strings.ToLower(env))
	if _, err := os.Stat(dotEnvPath); err == nil {
		if err := godotenv.Load(dotEnvPath); err != nil {
			log.Fatalf("config.godotenv(%s): %v", dotEnvPath, err)
		}
	} else if !os.IsNotExist(err) {
		log.Fatalf("config.os.Stat(%s): %v", dotEnvPath, err)
	}
	v.AutomaticEnv()

	conf := new(Config)
	conf.Env = env
	conf.AppName = v.GetString("appName")
	conf.Build = v.GetString("build")
	conf.Debug = v.GetBool("debug")
	conf.TestMode = v.GetBool("testMode")
	conf.SecretKey = v.GetString("secretKey")
	conf.FrontendBaseURL = v.GetString("frontendBaseURL")
	conf.RollbarToken = v.GetString("rollbarToken")

	conf.Server.Address = v.GetString("server.address")
	conf.Server.DebugAddress = v.GetString("server.debugAddress")
	conf.Server.Host = v.GetString("server.host")
	conf.Server.ShutdownTimeout = v.GetDuration("server.shutdownTimeout")
	conf.Server.JWTExpirationDelta = v.GetDuration("server.jwtExpiration")
	conf.Server.JWTRefreshExpirationDelta = v.GetDuration("server.jwtRefreshExpiration")
	conf.Server.BodyLimit = v.GetString("server.bodyLimit")

	conf.Database.Engine = v.GetString("database.engine")
	conf.Database.Host = v.GetString("database.host")
	conf.Database.Port = v.GetString("database.port")
	conf.Database.Name = v.GetString("database.name")
	conf.Database.User = v.GetString("database.user")
	conf.Database.Password = v.GetString("database.password")
	conf.Database.AdminUser = v.GetString("database.adminUser")
	conf.Database.AdminPassword = v.GetString("database.adminPassword")
	conf.Database.DisableTLS = v.GetBool("database.disableTLS")

	conf.Uploads.MaxFileSize = v.GetInt64("uploads.maxFileSize")
	conf.Uploads.Backend = v.GetString("uploads.backend")
	conf.Uploads.Dir = v.GetString("uploads.dir")
	conf.Uploads.BaseURL = strings.TrimRight(v.GetString("uploads.baseURL"), "/")
	conf.Uploads.S3Bucket = v.GetString("uploads.s3Bucket")
	conf.Uploads.S3Region = v.GetString("uploads.s3Region")
	conf.Uploads.S3Prefix = v.GetString("uploads.s3Prefix")
	conf.Uploads.S3PublicURL = strings.TrimRight(v.GetString("uploads.s3PublicURL"), "/")

	conf.Documents.RestrictTeacherReads = v.GetBool("documents.restrictTeacherReads")

	conf.RateLimit.Requests = v.GetInt("rateLimit.requests")
	conf.RateLimit.Window = v.GetDuration("rateLimit.window")

	conf.Redis.Address = v.GetString("redis.address")
	conf.Redis.Password = v.GetString("redis.password")
	conf.Redis.DB = v.GetInt("redis.db")

	conf.NATS.URL = v.GetString("nats.url")
	conf.NATS.SubjectPrefix = v.GetString("nats.subjectPrefix")

	conf.Mail.DefaultFromEmail = v.GetString("mail.defaultFromEmail")
	conf.Mail.SendgridAPIKey = v.GetString("mail.sendgridApiKey")
	conf.Mail.NotifyByEmail = v.GetBool("mail.notifyByEmail")

	conf.DefaultAdmin.Username = v.GetString("defaultAdmin.username")
	conf.DefaultAdmin.Password = v.GetString("defaultAdmin.password")
	conf.DefaultAdmin.Email = v.GetString("defaultAdmin.email")
	conf.DefaultAdmin.Name = v.GetString("defaultAdmin.name")

	conf.Jobs.NotificationRetention = v.GetDuration("jobs.notificationRetention")
	conf.Jobs.NotificationCleanupSchedule = v.GetString("jobs.notificationCleanupSchedule")

	return conf
}

// MaxFileSizeMB is the human readable upload limit.
func (c *Config) MaxFileSizeMB() string {
	return strconv.FormatFloat(float64(c.Uploads.MaxFileSize)/1024/1024, 'f', -1, 64)
}
