// Copyright 2026 The Congregreat Authors
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

// Package metrics holds the OpenTelemetry instruments the server records.
package metrics

import (
	"context"
	"fmt"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/metric/noop"
)

// Config holds metrics configuration
type Config struct {
	Enabled bool
}

// Meter wraps OpenTelemetry meter
type Meter struct {
	meter metric.Meter
}

// New creates a new meter instance. When disabled every instrument is a
// no-op.
func New(cfg Config, serviceName string) *Meter {
	if !cfg.Enabled {
		return &Meter{meter: noop.NewMeterProvider().Meter(serviceName)}
	}
	return &Meter{meter: otel.Meter(serviceName)}
}

// CreateCounter creates a new counter metric
func (m *Meter) CreateCounter(name, description string) (metric.Int64Counter, error) {
	counter, err := m.meter.Int64Counter(
		name,
		metric.WithDescription(description),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create counter %s: %w", name, err)
	}
	return counter, nil
}

// CreateHistogram creates a new histogram metric
func (m *Meter) CreateHistogram(name, description, unit string) (metric.Float64Histogram, error) {
	histogram, err := m.meter.Float64Histogram(
		name,
		metric.WithDescription(description),
		metric.WithUnit(unit),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create histogram %s: %w", name, err)
	}
	return histogram, nil
}

// Authz groups the access control instruments.
type Authz struct {
	decisions metric.Int64Counter
	resolve   metric.Float64Histogram
	logins    metric.Int64Counter
}

// NewAuthz creates the access control instruments on m.
func NewAuthz(m *Meter) (*Authz, error) {
	decisions, err := m.CreateCounter("authz_decisions_total", "Access decisions by entity, action and outcome")
	if err != nil {
		return nil, err
	}
	resolve, err := m.CreateHistogram("authz_resolve_duration", "Time to resolve a user's permissions", "ms")
	if err != nil {
		return nil, err
	}
	logins, err := m.CreateCounter("auth_logins_total", "Login attempts by outcome")
	if err != nil {
		return nil, err
	}
	return &Authz{decisions: decisions, resolve: resolve, logins: logins}, nil
}

// Decision records one access decision.
func (a *Authz) Decision(ctx context.Context, entity, action string, allowed bool) {
	if a == nil {
		return
	}
	a.decisions.Add(ctx, 1, metric.WithAttributes(
		attribute.String("entity", entity),
		attribute.String("action", action),
		attribute.Bool("allowed", allowed),
	))
}

// Resolved records how long permission resolution took.
func (a *Authz) Resolved(ctx context.Context, ms float64, ok bool) {
	if a == nil {
		return
	}
	a.resolve.Record(ctx, ms, metric.WithAttributes(attribute.Bool("ok", ok)))
}

// Login records a login attempt.
func (a *Authz) Login(ctx context.Context, outcome string) {
	if a == nil {
		return
	}
	a.logins.Add(ctx, 1, metric.WithAttributes(attribute.String("outcome", outcome)))
}
