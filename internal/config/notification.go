package config

import (
	"errors"
	"io/fs"
	"strings"
	"sync/atomic"

	"github.com/fsnotify/fsnotify"
	"github.com/spf13/viper"
	"go.uber.org/zap"
)

// NotificationConfig controls the content of consumption emails.
type NotificationConfig struct {
	BrandName    string `mapstructure:"brandName"`
	Subject      string `mapstructure:"subject"`
	OverSubject  string `mapstructure:"overLimitSubject"`
	TemplateName string `mapstructure:"templateName"`
	SupportEmail string `mapstructure:"supportEmail"`
	PortalURL    string `mapstructure:"portalUrl"`
}

func DefaultNotificationConfig() NotificationConfig {
	return NotificationConfig{
		BrandName:    "Residence",
		Subject:      "Your energy consumption for {{period}}",
		OverSubject:  "Energy limit exceeded for {{period}}",
		TemplateName: "consumption_notice",
		SupportEmail: "support@residence.local",
		PortalURL:    "",
	}
}

// SubjectFor returns the subject line for a billing period.
func (c NotificationConfig) SubjectFor(period string, exceeded bool) string {
	subject := c.Subject
	if exceeded && strings.TrimSpace(c.OverSubject) != "" {
		subject = c.OverSubject
	}
	return strings.ReplaceAll(subject, "{{period}}", period)
}

type NotificationConfigHolder struct {
	current atomic.Value // holds NotificationConfig
}

// NewStaticNotificationConfigHolder returns a holder that never reloads.
func NewStaticNotificationConfigHolder(cfg NotificationConfig) *NotificationConfigHolder {
	holder := &NotificationConfigHolder{}
	holder.current.Store(cfg)
	return holder
}

func NewNotificationConfigHolder(cfg Config, log *zap.Logger) (*NotificationConfigHolder, error) {
	log = log.Named("config.notification")
	v := viper.New()

	if path := strings.TrimSpace(cfg.NotificationConfigPath); path != "" {
		v.SetConfigFile(path)
	} else {
		v.SetConfigName("notification")
		v.SetConfigType("yml")
		v.AddConfigPath("/etc/residence")
		v.AddConfigPath(".")
	}

	v.SetEnvPrefix("RESIDENCE")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	fileLoaded := true
	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) && !errors.Is(err, fs.ErrNotExist) {
			return nil, err
		}
		fileLoaded = false
	}

	current := DefaultNotificationConfig()
	if err := v.UnmarshalKey("notification", &current); err != nil {
		return nil, err
	}
	if err := validateNotificationConfig(current); err != nil {
		return nil, err
	}

	holder := NewStaticNotificationConfigHolder(current)
	if !fileLoaded {
		log.Info("notification config file not found, using defaults")
		return holder, nil
	}

	v.WatchConfig()
	v.OnConfigChange(func(e fsnotify.Event) {
		updated := DefaultNotificationConfig()
		if err := v.UnmarshalKey("notification", &updated); err != nil {
			log.Warn("reload failed", zap.Error(err))
			return
		}
		if err := validateNotificationConfig(updated); err != nil {
			log.Warn("invalid config ignored", zap.Error(err))
			return
		}
		holder.current.Store(updated)
		log.Info("reloaded", zap.String("file", e.Name))
	})

	return holder, nil
}

func (h *NotificationConfigHolder) Get() NotificationConfig {
	return h.current.Load().(NotificationConfig)
}

func validateNotificationConfig(cfg NotificationConfig) error {
	if strings.TrimSpace(cfg.Subject) == "" {
		return errors.New("notification.subject cannot be empty")
	}
	if strings.TrimSpace(cfg.TemplateName) == "" {
		return errors.New("notification.templateName cannot be empty")
	}
	return nil
}
