package analytics

import (
	"context"
	"fmt"
	"net/http"
	"sort"
	"time"

	"github.com/google/uuid"
)

type EndpointUsage struct {
	Endpoint string `json:"endpoint"`
	Count    int    `json:"count"`
	Units    int    `json:"units"`
}

type DailyUsage struct {
	Date  string `json:"date"`
	Calls int    `json:"calls"`
	Units int    `json:"units"`
}

type AuditSummary struct {
	TotalCalls     int             `json:"total_calls"`
	TotalUnits     int             `json:"total_units"`
	RateLimitCount int             `json:"rate_limit_count"`
	Endpoints      []EndpointUsage `json:"endpoint_breakdown"`
	Daily          []DailyUsage    `json:"daily"`
}

// Audit aggregates a tenant's upstream call log.
func (s *Service) Audit(ctx context.Context, tenantID uuid.UUID, from, to *time.Time) (*AuditSummary, error) {
	logs, err := s.callLogs.List(ctx, tenantID, from, to)
	if err != nil {
		return nil, fmt.Errorf("list call logs: %w", err)
	}

	summary := &AuditSummary{
		Endpoints: []EndpointUsage{},
		Daily:     []DailyUsage{},
	}
	endpoints := map[string]*EndpointUsage{}
	days := map[string]*DailyUsage{}

	for _, l := range logs {
		summary.TotalCalls++
		summary.TotalUnits += l.EstimatedUnits
		if l.StatusCode == http.StatusTooManyRequests {
			summary.RateLimitCount++
		}

		ep, ok := endpoints[l.Endpoint]
		if !ok {
			ep = &EndpointUsage{Endpoint: l.Endpoint}
			endpoints[l.Endpoint] = ep
		}
		ep.Count++
		ep.Units += l.EstimatedUnits

		date := l.CreatedAt.In(s.location).Format(time.DateOnly)
		day, ok := days[date]
		if !ok {
			day = &DailyUsage{Date: date}
			days[date] = day
		}
		day.Calls++
		day.Units += l.EstimatedUnits
	}

	for _, ep := range endpoints {
		summary.Endpoints = append(summary.Endpoints, *ep)
	}
	for _, day := range days {
		summary.Daily = append(summary.Daily, *day)
	}
	sort.Slice(summary.Endpoints, func(i, j int) bool { return summary.Endpoints[i].Endpoint < summary.Endpoints[j].Endpoint })
	sort.Slice(summary.Daily, func(i, j int) bool { return summary.Daily[i].Date < summary.Daily[j].Date })

	return summary, nil
}
