package domain

import "time"

type ServiceID string

// ServiceStatus is the aggregate status computed by the check pipeline.
type ServiceStatus string

const (
	StatusUp       ServiceStatus = "up"
	StatusDegraded ServiceStatus = "degraded"
	StatusDown     ServiceStatus = "down"
)

func (s ServiceStatus) Valid() bool {
	switch s {
	case StatusUp, StatusDegraded, StatusDown:
		return true
	}
	return false
}

type ServiceType string

const (
	TypeFrontend ServiceType = "frontend"
	TypeBackend  ServiceType = "backend"
)

// Region is one of the five fixed probe origins.
type Region string

const (
	RegionUSEast1      Region = "us-east-1"
	RegionEUCentral1   Region = "eu-central-1"
	RegionAPSouth1     Region = "ap-south-1"
	RegionAPNortheast1 Region = "ap-northeast-1"
	RegionAPSoutheast1 Region = "ap-southeast-1"
)

// DefaultRegion tags results from the local fallback probe.
const DefaultRegion = RegionUSEast1

func Regions() []Region {
	return []Region{
		RegionUSEast1,
		RegionEUCentral1,
		RegionAPSouth1,
		RegionAPNortheast1,
		RegionAPSoutheast1,
	}
}

type NotificationSettings struct {
	Emails               []string `json:"emails,omitempty"`
	SlackWebhook         string   `json:"slackWebhook,omitempty"`
	NotifyOnDown         bool     `json:"notifyOnDown"`
	NotifyOnDegraded     bool     `json:"notifyOnDegraded"`
	NotifyOnRecovered    bool     `json:"notifyOnRecovered"`
	NotifyOnCriticalOnly bool     `json:"notifyOnCriticalOnly"`
}

// Service is a monitored URL owned by one tenant. CurrentStatus is the single
// source of truth the transition detector compares against; only the check
// pipeline mutates it.
type Service struct {
	ID                   ServiceID             `json:"id"`
	TenantID             string                `json:"tenantId"`
	Name                 string                `json:"name"`
	URL                  string                `json:"url"`
	Type                 ServiceType           `json:"type"`
	IsActive             bool                  `json:"isActive"`
	CurrentStatus        ServiceStatus         `json:"currentStatus"`
	LastCheckedAt        int64                 `json:"lastCheckedAt"` // epoch ms
	NotificationSettings *NotificationSettings `json:"notificationSettings,omitempty"`
}

// ProbeResult is one region's outcome for one check cycle. Immutable once
// written; removed only by the cleanup sweeper or service-delete cascade.
type ProbeResult struct {
	ServiceID    ServiceID `json:"serviceId"`
	Region       Region    `json:"region"`
	StatusCode   int       `json:"statusCode"`
	ResponseTime int64     `json:"responseTime"` // ms
	StartedAt    int64     `json:"startedAt"`    // epoch ms
	Success      bool      `json:"success"`
}

// StatusEvent records one detected transition. Append-only.
type StatusEvent struct {
	ServiceID       ServiceID     `json:"serviceId"`
	TenantID        string        `json:"tenantId"`
	PreviousStatus  ServiceStatus `json:"previousStatus"`
	NewStatus       ServiceStatus `json:"newStatus"`
	Timestamp       int64         `json:"timestamp"` // epoch ms
	AffectedRegions []string      `json:"affectedRegions,omitempty"`
}

// Tenant carries the external cron registration. CronAPIKey+CronJobID both set
// means "an external job should exist" — a claim that can go stale and is
// reconciled lazily by cronsync.
type Tenant struct {
	Slug         string `json:"slug"`
	Name         string `json:"name"`
	APIToken     string `json:"-"`
	CronAPIKey   string `json:"-"`
	CronJobID    int64  `json:"cronJobId,omitempty"`
	CronInterval int    `json:"cronInterval,omitempty"` // minutes
}

func (t *Tenant) CronConfigured() bool {
	return t.CronAPIKey != "" && t.CronJobID != 0
}

// ProbeSuccess derives success from an HTTP status code (2xx/3xx).
func ProbeSuccess(statusCode int) bool {
	return statusCode >= 200 && statusCode < 400
}

// NowMillis is the epoch-ms clock used across the pipeline.
func NowMillis() int64 {
	return time.Now().UnixMilli()
}
