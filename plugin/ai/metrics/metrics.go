// Package metrics provides in-process metrics for agent and tool executions.
package metrics

import (
	"context"
	"sync"
	"time"
)

// Service defines the agent metrics recorder.
type Service interface {
	// RecordRequest records one full conversation turn.
	RecordRequest(ctx context.Context, latency time.Duration, success bool)

	// RecordToolCall records one tool invocation.
	RecordToolCall(ctx context.Context, toolName string, latency time.Duration, success bool)

	// Overview returns aggregated statistics.
	Overview(ctx context.Context) *Overview
}

// Overview is an aggregated metrics snapshot.
type Overview struct {
	RequestCount int64                `json:"request_count"`
	SuccessCount int64                `json:"success_count"`
	AvgLatencyMs int64                `json:"avg_latency_ms"`
	ToolStats    map[string]*ToolStat `json:"tool_stats"`
}

// ToolStat aggregates invocations of a single tool.
type ToolStat struct {
	Count        int64 `json:"count"`
	SuccessCount int64 `json:"success_count"`
	AvgLatencyMs int64 `json:"avg_latency_ms"`
}

// InMemory is a mutex-guarded in-process Service implementation.
type InMemory struct {
	mu           sync.Mutex
	requestCount int64
	successCount int64
	totalLatency time.Duration
	tools        map[string]*toolAgg
}

type toolAgg struct {
	count        int64
	successCount int64
	totalLatency time.Duration
}

// NewInMemory creates an empty in-memory metrics service.
func NewInMemory() *InMemory {
	return &InMemory{tools: make(map[string]*toolAgg)}
}

func (m *InMemory) RecordRequest(_ context.Context, latency time.Duration, success bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.requestCount++
	if success {
		m.successCount++
	}
	m.totalLatency += latency
}

func (m *InMemory) RecordToolCall(_ context.Context, toolName string, latency time.Duration, success bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	agg, ok := m.tools[toolName]
	if !ok {
		agg = &toolAgg{}
		m.tools[toolName] = agg
	}
	agg.count++
	if success {
		agg.successCount++
	}
	agg.totalLatency += latency
}

func (m *InMemory) Overview(_ context.Context) *Overview {
	m.mu.Lock()
	defer m.mu.Unlock()

	overview := &Overview{
		RequestCount: m.requestCount,
		SuccessCount: m.successCount,
		ToolStats:    make(map[string]*ToolStat, len(m.tools)),
	}
	if m.requestCount > 0 {
		overview.AvgLatencyMs = m.totalLatency.Milliseconds() / m.requestCount
	}
	for name, agg := range m.tools {
		stat := &ToolStat{
			Count:        agg.count,
			SuccessCount: agg.successCount,
		}
		if agg.count > 0 {
			stat.AvgLatencyMs = agg.totalLatency.Milliseconds() / agg.count
		}
		overview.ToolStats[name] = stat
	}
	return overview
}
