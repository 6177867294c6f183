package models

import (
	"encoding/json"
	"strings"
	"testing"
)

func testResponse() SystemInfoResponse {
	return SystemInfoResponse{
		OSName:          "Linux 6.1.0",
		OSVersion:       "Unix 6.1.0",
		CPUUsagePercent: 12.5,
		MemoryInfo: MemoryInfo{
			TotalBytes:   1000,
			UsedBytes:    250,
			FreeBytes:    750,
			UsagePercent: 25,
		},
		UptimeSeconds: 60,
		Timestamp:     1735689600,
	}
}

func TestSystemInfoResponse_JSONShape(t *testing.T) {
	b, err := json.Marshal(testResponse())
	if err != nil {
		t.Fatalf("Marshal: %v", err)
	}
	got := string(b)
	for _, key := range []string{
		`"osName":"Linux 6.1.0"`,
		`"osVersion":"Unix 6.1.0"`,
		`"cpuUsagePercent":12.5`,
		`"memoryInfo":{"totalBytes":1000,"usedBytes":250,"freeBytes":750,"usagePercent":25}`,
		`"uptimeSeconds":60`,
		`"timestamp":1735689600`,
	} {
		if !strings.Contains(got, key) {
			t.Errorf("JSON %s missing %s", got, key)
		}
	}
}

func TestParseMetric(t *testing.T) {
	tests := []struct {
		in   string
		want Metric
		ok   bool
	}{
		{"cpu", MetricCPU, true},
		{"CPU", MetricCPU, true},
		{"Memory", MetricMemory, true},
		{"os", MetricOS, true},
		{"UPTIME", MetricUptime, true},
		{"bogus", "", false},
		{"", "", false},
		{" cpu", "", false},
		{"memory\t", "", false},
	}
	for _, tt := range tests {
		got, ok := ParseMetric(tt.in)
		if got != tt.want || ok != tt.ok {
			t.Errorf("ParseMetric(%q) = %q, %v; want %q, %v", tt.in, got, ok, tt.want, tt.ok)
		}
	}
}

func TestProject(t *testing.T) {
	r := testResponse()

	tests := []struct {
		metric Metric
		want   string
	}{
		{MetricCPU, `{"usage":12.5}`},
		{MetricMemory, `{"total":1000,"used":250,"free":750,"usagePercent":25}`},
		{MetricOS, `{"name":"Linux 6.1.0","version":"Unix 6.1.0"}`},
		{MetricUptime, `{"seconds":60}`},
	}
	for _, tt := range tests {
		t.Run(string(tt.metric), func(t *testing.T) {
			b, err := json.Marshal(r.Project(tt.metric))
			if err != nil {
				t.Fatalf("Marshal: %v", err)
			}
			if string(b) != tt.want {
				t.Errorf("Project(%s) = %s, want %s", tt.metric, b, tt.want)
			}
		})
	}

	if v := r.Project("bogus"); v != nil {
		t.Errorf("Project(bogus) = %v, want nil", v)
	}
}
