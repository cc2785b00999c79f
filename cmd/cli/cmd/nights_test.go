package cmd

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/spf13/viper"

	"specplane/pkg/api"
)

func TestNightsCommand(t *testing.T) {
	resetViper()

	redux := t.TempDir()
	tables := filepath.Join(redux, "exposure_tables")
	writeExposureTable(t, tables, 20201214, []string{
		"80605,20201214,67890,science,all",
	})
	writeExposureTable(t, tables, 20201215, []string{
		"80605,20201215,67972,science,all",
		"80606,20201215,67975,science,all",
	})
	cfgPath := writeTestConfig(t, redux, "")

	var stdout bytes.Buffer
	rootCmd.SetOut(&stdout)
	rootCmd.SetErr(&stdout)
	rootCmd.SetArgs([]string{"nights", "--config", cfgPath})

	err := rootCmd.Execute()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	output := stdout.String()
	expectedStrings := []string{
		"NIGHT", "EXPOSURES", "TILES", // Headers
		"20201214", "20201215",
		"2 night(s), 3 science exposure(s)",
	}
	for _, s := range expectedStrings {
		if !strings.Contains(output, s) {
			t.Errorf("expected output to contain %q, got:\n%s", s, output)
		}
	}
}

func TestNightsCommand_NoTables(t *testing.T) {
	resetViper()

	redux := t.TempDir()
	cfgPath := writeTestConfig(t, redux, "")

	var stdout bytes.Buffer
	rootCmd.SetOut(&stdout)
	rootCmd.SetErr(&stdout)
	rootCmd.SetArgs([]string{"nights", "--config", cfgPath})

	err := rootCmd.Execute()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if !strings.Contains(stdout.String(), "No exposure tables found") {
		t.Errorf("expected empty message, got: %s", stdout.String())
	}
}

func TestNightsCommand_Activity(t *testing.T) {
	resetViper()
	defer nightsCmd.Flags().Set("activity", "false")

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !strings.HasSuffix(r.URL.Path, "/api/nights") {
			t.Errorf("unexpected path: %s", r.URL.Path)
		}
		if r.URL.Query().Get("limit") != "7" {
			t.Errorf("expected limit=7, got %s", r.URL.Query().Get("limit"))
		}

		w.WriteHeader(http.StatusOK)
		json.NewEncoder(w).Encode(api.NightsResponse{Nights: []api.NightSummaryResponse{
			{Night: 20201215, Submitted: 3, Failed: 1, Resubmitted: 1, Total: 5, LastActivity: time.Now().Add(-30 * time.Minute)},
			{Night: 20201214, Submitted: 2, Total: 2, LastActivity: time.Now().Add(-26 * time.Hour)},
		}})
	}))
	defer server.Close()

	viper.Set("dashboard_url", server.URL)

	var stdout bytes.Buffer
	rootCmd.SetOut(&stdout)
	rootCmd.SetErr(&stdout)
	rootCmd.SetArgs([]string{"nights", "--activity", "--limit", "7"})

	err := rootCmd.Execute()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	output := stdout.String()
	expectedStrings := []string{
		"NIGHT", "SUBMITTED", "FAILED", "LAST ACTIVITY", // Headers
		"20201215", "30m",
		"20201214", "1 day",
	}
	for _, s := range expectedStrings {
		if !strings.Contains(output, s) {
			t.Errorf("expected output to contain %q, got:\n%s", s, output)
		}
	}
}
