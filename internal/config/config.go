// Package config loads partner profiles and sandbox settings
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/spf13/viper"
	"gopkg.in/ini.v1"

	"github.com/alexbotov/pokepay-go/pkg/pokepay"
)

// DefaultProfile is the section read when no profile is named
const DefaultProfile = "global"

// EnvPrefix prefixes environment overrides, e.g. POKEPAY_CLIENT_ID
const EnvPrefix = "POKEPAY"

// Profile keys
const (
	KeyClientID       = "client_id"
	KeyClientSecret   = "client_secret"
	KeyAPIBaseURL     = "api_base_url"
	KeyTimezone       = "timezone"
	KeyTimeout        = "timeout"
	KeyConnectTimeout = "connecttimeout"
	KeySSLCertFile    = "ssl_cert_file"
	KeySSLKeyFile     = "ssl_key_file"
	KeyPKCS12File     = "ssl_pkcs12_file"
	KeyPKCS12Password = "ssl_pkcs12_password"
	KeyJournalDSN     = "journal_dsn"
)

var profileKeys = []string{
	KeyClientID, KeyClientSecret, KeyAPIBaseURL, KeyTimezone, KeyTimeout,
	KeyConnectTimeout, KeySSLCertFile, KeySSLKeyFile, KeyPKCS12File,
	KeyPKCS12Password, KeyJournalDSN,
}

// Profile is one named set of partner credentials and connection settings
type Profile struct {
	Name           string
	ClientID       string
	ClientSecret   string
	APIBaseURL     string
	Timezone       string
	Timeout        time.Duration
	ConnectTimeout time.Duration
	SSLCertFile    string
	SSLKeyFile     string
	PKCS12File     string
	PKCS12Password string
	JournalDSN     string
}

// DefaultPath returns $POKEPAY_CONFIG or ~/.pokepay/config.ini
func DefaultPath() string {
	if p := os.Getenv(EnvPrefix + "_CONFIG"); p != "" {
		return p
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return ""
	}
	return filepath.Join(home, ".pokepay", "config.ini")
}

// LoadProfile reads profile name from the file at path. An empty path reads
// the environment only. Keys are case-insensitive; POKEPAY_<KEY> variables
// override the file.
func LoadProfile(path, name string) (*Profile, error) {
	if name == "" {
		name = DefaultProfile
	}
	name = strings.ToLower(name)

	v := viper.New()
	if path != "" {
		if err := readFile(v, path); err != nil {
			return nil, err
		}
		if !v.IsSet(name) {
			return nil, &pokepay.ConfigError{Field: "profile", Reason: fmt.Sprintf("section [%s] not found in %s", name, path)}
		}
	}

	v.SetDefault(name+"."+KeyTimezone, pokepay.DefaultTimezone)
	v.SetDefault(name+"."+KeyTimeout, pokepay.DefaultTimeout.String())
	v.SetDefault(name+"."+KeyConnectTimeout, pokepay.DefaultConnectTimeout.String())

	// Environment variables override
	for _, key := range profileKeys {
		if err := v.BindEnv(name+"."+key, EnvPrefix+"_"+strings.ToUpper(key)); err != nil {
			return nil, fmt.Errorf("failed to bind env: %w", err)
		}
	}

	timeout, err := durationSetting(v, name, KeyTimeout, pokepay.DefaultTimeout)
	if err != nil {
		return nil, err
	}
	connectTimeout, err := durationSetting(v, name, KeyConnectTimeout, pokepay.DefaultConnectTimeout)
	if err != nil {
		return nil, err
	}

	return &Profile{
		Name:           name,
		ClientID:       v.GetString(name + "." + KeyClientID),
		ClientSecret:   v.GetString(name + "." + KeyClientSecret),
		APIBaseURL:     v.GetString(name + "." + KeyAPIBaseURL),
		Timezone:       v.GetString(name + "." + KeyTimezone),
		Timeout:        timeout,
		ConnectTimeout: connectTimeout,
		SSLCertFile:    v.GetString(name + "." + KeySSLCertFile),
		SSLKeyFile:     v.GetString(name + "." + KeySSLKeyFile),
		PKCS12File:     v.GetString(name + "." + KeyPKCS12File),
		PKCS12Password: v.GetString(name + "." + KeyPKCS12Password),
		JournalDSN:     v.GetString(name + "." + KeyJournalDSN),
	}, nil
}

// ClientConfig converts the profile, checking the fields a client needs
func (p *Profile) ClientConfig() (*pokepay.ClientConfig, error) {
	required := []struct {
		key, value string
	}{
		{KeyClientID, p.ClientID},
		{KeyClientSecret, p.ClientSecret},
		{KeyAPIBaseURL, p.APIBaseURL},
	}
	for _, r := range required {
		if r.value == "" {
			return nil, &pokepay.ConfigError{
				Field:  strings.ToUpper(r.key),
				Reason: fmt.Sprintf("is required in profile [%s] or %s_%s", p.Name, EnvPrefix, strings.ToUpper(r.key)),
			}
		}
	}

	return &pokepay.ClientConfig{
		ClientID:       p.ClientID,
		ClientSecret:   p.ClientSecret,
		BaseURL:        p.APIBaseURL,
		Timezone:       p.Timezone,
		Timeout:        p.Timeout,
		ConnectTimeout: p.ConnectTimeout,
		CertFile:       p.SSLCertFile,
		KeyFile:        p.SSLKeyFile,
		PKCS12File:     p.PKCS12File,
		PKCS12Password: p.PKCS12Password,
	}, nil
}

// readFile loads path into v. INI sections become top-level maps; other
// formats are read by viper according to the extension.
func readFile(v *viper.Viper, path string) error {
	if _, err := os.Stat(path); err != nil {
		return &pokepay.ConfigError{Field: "config file", Reason: "cannot read " + path, Err: err}
	}

	ext := strings.ToLower(strings.TrimPrefix(filepath.Ext(path), "."))
	switch ext {
	case "", "ini", "cfg", "conf":
		cfg, err := ini.Load(path)
		if err != nil {
			return &pokepay.ConfigError{Field: "config file", Reason: "invalid INI in " + path, Err: err}
		}
		sections := map[string]any{}
		for _, sec := range cfg.Sections() {
			if sec.Name() == ini.DefaultSection && len(sec.Keys()) == 0 {
				continue
			}
			values := map[string]any{}
			for _, k := range sec.Keys() {
				values[strings.ToLower(k.Name())] = k.Value()
			}
			sections[strings.ToLower(sec.Name())] = values
		}
		if err := v.MergeConfigMap(sections); err != nil {
			return &pokepay.ConfigError{Field: "config file", Reason: "cannot merge " + path, Err: err}
		}
	default:
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return &pokepay.ConfigError{Field: "config file", Reason: "cannot parse " + path, Err: err}
		}
	}
	return nil
}

// durationSetting reads a timeout key of the profile. A blank value counts
// as unset and yields def.
func durationSetting(v *viper.Viper, profile, key string, def time.Duration) (time.Duration, error) {
	raw := strings.TrimSpace(v.GetString(profile + "." + key))
	if raw == "" {
		return def, nil
	}
	d, err := parseSeconds(raw)
	if err != nil {
		return 0, &pokepay.ConfigError{Field: strings.ToUpper(key), Reason: "invalid duration", Err: err}
	}
	return d, nil
}

// parseSeconds accepts a Go duration ("1500ms") or a bare number of seconds
// ("5", "2.5")
func parseSeconds(s string) (time.Duration, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return 0, errors.New("empty duration")
	}
	if secs, err := strconv.ParseFloat(s, 64); err == nil {
		if secs < 0 {
			return 0, fmt.Errorf("negative duration %q", s)
		}
		return time.Duration(secs * float64(time.Second)), nil
	}
	d, err := time.ParseDuration(s)
	if err != nil {
		return 0, err
	}
	if d < 0 {
		return 0, fmt.Errorf("negative duration %q", s)
	}
	return d, nil
}
