package core

import (
	"time"

	"github.com/google/uuid"
)

// Alert severity levels. Fixed per detector, not operator-configurable.
const (
	SeverityLow      = "Low"
	SeverityMedium   = "Medium"
	SeverityHigh     = "High"
	SeverityCritical = "Critical"
)

// Alert is the terminal output of a detector. Alerts are created by
// detectors, ranked and truncated by the aggregator, and never mutated
// afterward. Detector-specific fields are omitted from serialization when
// unset.
type Alert struct {
	AlertID       string    `json:"alert_id" yaml:"alert_id"`
	DetectionTime time.Time `json:"detection_time" yaml:"detection_time"`
	Severity      string    `json:"severity" yaml:"severity"`
	DetectionType string    `json:"detection_type" yaml:"detection_type"`
	AlertName     string    `json:"alert_name" yaml:"alert_name"`

	Hostname    string `json:"hostname,omitempty" yaml:"hostname,omitempty"`
	PID         int64  `json:"pid,omitempty" yaml:"pid,omitempty"`
	ProcessName string `json:"process_name,omitempty" yaml:"process_name,omitempty"`
	User        string `json:"user,omitempty" yaml:"user,omitempty"`

	AffectedSystems []string `json:"affected_systems,omitempty" yaml:"affected_systems,omitempty"`
	Destination     string   `json:"destination,omitempty" yaml:"destination,omitempty"`
	AssociatedFile  string   `json:"associated_file,omitempty" yaml:"associated_file,omitempty"`

	Timeline string `json:"timeline,omitempty" yaml:"timeline,omitempty"`
	Evidence string `json:"evidence,omitempty" yaml:"evidence,omitempty"`

	FirstSeen time.Time `json:"first_seen,omitempty" yaml:"first_seen,omitempty"`
	LastSeen  time.Time `json:"last_seen,omitempty" yaml:"last_seen,omitempty"`

	DaysDormant     int      `json:"days_dormant,omitempty" yaml:"days_dormant,omitempty"`
	DaysActive      int      `json:"days_active,omitempty" yaml:"days_active,omitempty"`
	Consistency     float64  `json:"consistency,omitempty" yaml:"consistency,omitempty"`
	TrafficPattern  string   `json:"traffic_pattern,omitempty" yaml:"traffic_pattern,omitempty"`
	TotalBytes      int64    `json:"total_bytes,omitempty" yaml:"total_bytes,omitempty"`
	DataVolume      string   `json:"data_volume,omitempty" yaml:"data_volume,omitempty"`
	SystemCount     int      `json:"system_count,omitempty" yaml:"system_count,omitempty"`
	UserAccounts    string   `json:"user_accounts,omitempty" yaml:"user_accounts,omitempty"`
	NewSystemsCount int      `json:"new_systems_count,omitempty" yaml:"new_systems_count,omitempty"`
	HostCount       int      `json:"host_count,omitempty" yaml:"host_count,omitempty"`
	ActivityTypes   []string `json:"activity_types,omitempty" yaml:"activity_types,omitempty"`
	AttackPath      string   `json:"attack_path,omitempty" yaml:"attack_path,omitempty"`
	CampaignDays    int      `json:"campaign_days,omitempty" yaml:"campaign_days,omitempty"`

	// Score is the detector's ranking metric. The aggregator orders each
	// detector's alerts by Score descending before truncation.
	Score float64 `json:"-" yaml:"-"`
}

// NewAlert creates an Alert with a generated ID. detectionTime is the
// engine's shared run-start clock, not the wall clock at emission.
func NewAlert(detectionTime time.Time, severity, detectionType, alertName string) *Alert {
	return &Alert{
		AlertID:       uuid.New().String(),
		DetectionTime: detectionTime,
		Severity:      severity,
		DetectionType: detectionType,
		AlertName:     alertName,
	}
}
