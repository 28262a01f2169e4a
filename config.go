package luzidos

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// Duration unmarshals from YAML strings like "15m" or plain nanosecond
// integers.
type Duration time.Duration

func (d *Duration) UnmarshalYAML(value *yaml.Node) error {
	var s string
	if err := value.Decode(&s); err == nil {
		parsed, err := time.ParseDuration(s)
		if err != nil {
			return fmt.Errorf("invalid duration %q: %w", s, err)
		}
		*d = Duration(parsed)
		return nil
	}
	var n int64
	if err := value.Decode(&n); err != nil {
		return fmt.Errorf("invalid duration value: %w", err)
	}
	*d = Duration(n)
	return nil
}

// Std returns the value as a time.Duration.
func (d Duration) Std() time.Duration {
	return time.Duration(d)
}

// FollowUpConfig is the wall-clock alignment for follow-up emails.
type FollowUpConfig struct {
	Hour     int    `yaml:"hour" json:"hour"`
	Minute   int    `yaml:"minute" json:"minute"`
	Timezone string `yaml:"timezone" json:"timezone"`
}

// Config carries the deployment settings of the substrate.
type Config struct {
	// Bucket is the S3 bucket holding all workflow documents.
	Bucket string `yaml:"bucket" json:"bucket"`

	// Region is the AWS region for all clients.
	Region string `yaml:"region" json:"region"`

	// TimebombTarget is the ARN invoked when a deferred trigger fires.
	TimebombTarget string `yaml:"timebomb_target_arn" json:"timebomb_target_arn"`

	// IdentityTable is the DynamoDB table mapping addresses to user ids.
	IdentityTable string `yaml:"identity_table" json:"identity_table"`

	// LockTTL is the stale-lock reclaim window. Zero disables reclaim.
	LockTTL Duration `yaml:"lock_ttl" json:"lock_ttl"`

	// AuditMaxEntriesPerSegment bounds audit segments. Zero uses the default.
	AuditMaxEntriesPerSegment int `yaml:"audit_max_entries_per_segment" json:"audit_max_entries_per_segment"`

	FollowUp FollowUpConfig `yaml:"follow_up" json:"follow_up"`
}

// Alignment returns the configured follow-up alignment, defaulting to 8:00
// America/Bogota.
func (c *Config) Alignment() LocalTimeAlignment {
	align := LocalTimeAlignment{
		Hour:     c.FollowUp.Hour,
		Minute:   c.FollowUp.Minute,
		Timezone: c.FollowUp.Timezone,
	}
	if align == (LocalTimeAlignment{}) {
		return LocalTimeAlignment{Hour: 8, Timezone: "America/Bogota"}
	}
	if align.Timezone == "" {
		align.Timezone = "America/Bogota"
	}
	return align
}

// LoadConfigFile reads a YAML config file.
func LoadConfigFile(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file %q: %w", path, err)
	}
	var config Config
	if err := yaml.Unmarshal(data, &config); err != nil {
		return nil, fmt.Errorf("failed to parse config file %q: %w", path, err)
	}
	return &config, nil
}
