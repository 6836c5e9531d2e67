package telemetry

import (
	"os"
	"strings"
	"testing"

	"gopkg.in/yaml.v3"
)

// TestAlertsFileValid verifies the Prometheus alerts configuration is valid YAML.
func TestAlertsFileValid(t *testing.T) {
	alertsPath := "../../deploy/prometheus/alerts.yml"

	data, err := os.ReadFile(alertsPath)
	if err != nil {
		t.Skipf("Skipping test: alerts file not found at %s", alertsPath)
		return
	}

	var config map[string]interface{}
	if err := yaml.Unmarshal(data, &config); err != nil {
		t.Fatalf("Invalid YAML in alerts.yml: %v", err)
	}

	groups, ok := config["groups"]
	if !ok {
		t.Fatal("alerts.yml missing 'groups' key")
	}

	groupsList, ok := groups.([]interface{})
	if !ok || len(groupsList) == 0 {
		t.Fatal("alerts.yml 'groups' is empty or invalid")
	}
}

// TestAlertsReferenceOwnMetrics guards against alert expressions drifting
// from the metric names this package registers.
func TestAlertsReferenceOwnMetrics(t *testing.T) {
	data, err := os.ReadFile("../../deploy/prometheus/alerts.yml")
	if err != nil {
		t.Skipf("Skipping test: alerts file not found: %v", err)
		return
	}

	for _, metric := range []string{
		"fixdesk_api_request_duration_seconds",
		"fixdesk_api_requests_total",
		"fixdesk_scheduling_booking_decisions_total",
	} {
		if !strings.Contains(string(data), metric) {
			t.Errorf("alerts.yml does not reference metric %s", metric)
		}
	}
}
