package deployments

import (
	"encoding/json"
	"os"
	"path/filepath"
	"regexp"
	"runtime"
	"strings"
	"testing"
)

// exportedMetrics are the series the API registers.
var exportedMetrics = []string{
	"pdnchat_turns_total",
	"pdnchat_stage_duration_seconds",
	"pdnchat_llm_requests_total",
	"pdnchat_dataset_refresh_total",
	"pdnchat_dataset_last_refresh_timestamp_seconds",
	"pdnchat_http_requests_total",
	"pdnchat_http_request_duration_seconds",
}

var metricReference = regexp.MustCompile(`\bpdnchat_[a-z_]+`)

func TestGrafanaDashboardJSONIsValid(t *testing.T) {
	content := readAsset(t, "grafana", "pdnchat_dashboard.json")

	var decoded struct {
		Title  string `json:"title"`
		Panels []struct {
			Title   string `json:"title"`
			Targets []struct {
				Expr string `json:"expr"`
			} `json:"targets"`
		} `json:"panels"`
	}
	if err := json.Unmarshal([]byte(content), &decoded); err != nil {
		t.Fatalf("dashboard JSON parse error: %v", err)
	}
	if strings.TrimSpace(decoded.Title) == "" {
		t.Fatal("dashboard title is required")
	}
	if len(decoded.Panels) == 0 {
		t.Fatal("dashboard must include at least one panel")
	}

	records := readAsset(t, "prometheus", "pdnchat_recording_rules.yaml")
	for _, panel := range decoded.Panels {
		if len(panel.Targets) == 0 {
			t.Fatalf("panel %q has no targets", panel.Title)
		}
		for _, target := range panel.Targets {
			if !strings.Contains(records, "record: "+target.Expr) {
				t.Fatalf("panel %q queries %q, which is not a recording rule", panel.Title, target.Expr)
			}
		}
	}
}

func TestPrometheusRulesContainExpectedAlerts(t *testing.T) {
	text := readAsset(t, "prometheus", "pdnchat_rules.yaml")

	requiredAlerts := []string{
		"PdnChatTurnFailureRatioHigh",
		"PdnChatReasoningServiceErrors",
		"PdnChatSynthesisLatencyP95High",
		"PdnChatDatasetStale",
		"PdnChatDatasetRefreshFailing",
		"PdnChatHTTPErrorRateHigh",
	}
	for _, alertName := range requiredAlerts {
		if !strings.Contains(text, "alert: "+alertName) {
			t.Fatalf("rules missing alert %q", alertName)
		}
	}
}

func TestPrometheusRecordingRulesContainExpectedRecords(t *testing.T) {
	text := readAsset(t, "prometheus", "pdnchat_recording_rules.yaml")

	requiredRecords := []string{
		"pdnchat:turns_rate_5m",
		"pdnchat:slo_turn_failure_ratio_15m",
		"pdnchat:slo_unanswerable_ratio_1h",
		"pdnchat:slo_stage_latency_seconds_p95",
		"pdnchat:slo_llm_error_ratio_15m",
		"pdnchat:slo_dataset_staleness_seconds",
		"pdnchat:slo_http_error_rate_5m",
	}
	for _, recordName := range requiredRecords {
		if !strings.Contains(text, "record: "+recordName) {
			t.Fatalf("recording rules missing record %q", recordName)
		}
	}
}

func TestRulesOnlyReferenceExportedMetrics(t *testing.T) {
	known := make(map[string]bool, len(exportedMetrics))
	for _, name := range exportedMetrics {
		known[name] = true
		known[name+"_bucket"] = true
	}
	for _, file := range []string{"pdnchat_rules.yaml", "pdnchat_recording_rules.yaml"} {
		for _, name := range metricReference.FindAllString(readAsset(t, "prometheus", file), -1) {
			if !known[name] {
				t.Fatalf("%s references unknown metric %q", file, name)
			}
		}
	}
}

func TestPrometheusScrapeExampleContainsMetricsPathAndRules(t *testing.T) {
	text := readAsset(t, "prometheus", "prometheus-scrape.example.yaml")

	for _, token := range []string{
		"metrics_path: /v1/metrics",
		"pdnchat_rules.yaml",
		"pdnchat_recording_rules.yaml",
		"job_name: pdnchat-api",
	} {
		if !strings.Contains(text, token) {
			t.Fatalf("scrape example missing %q", token)
		}
	}
}

func TestAlertmanagerExampleContainsSeverityRouting(t *testing.T) {
	text := readAsset(t, "alertmanager", "alertmanager.example.yaml")

	requiredTokens := []string{
		"receiver: pdnchat-default",
		"severity=\"critical\"",
		"severity=\"warning\"",
		"name: pdnchat-critical",
		"name: pdnchat-warning",
		"inhibit_rules:",
		"group_by: [alertname, service, severity]",
	}
	for _, token := range requiredTokens {
		if !strings.Contains(text, token) {
			t.Fatalf("alertmanager example missing token %q", token)
		}
	}
}

func readAsset(t *testing.T, parts ...string) string {
	t.Helper()
	path := filepath.Join(append([]string{repoRoot(t), "deployments", "observability"}, parts...)...)
	content, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read %s: %v", path, err)
	}
	return string(content)
}

func repoRoot(t *testing.T) string {
	t.Helper()
	_, filename, _, ok := runtime.Caller(0)
	if !ok {
		t.Fatal("runtime.Caller failed")
	}
	return filepath.Clean(filepath.Join(filepath.Dir(filename), ".."))
}
