package setup

import (
	"bytes"
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"

	"github.com/jamesprial/ward/internal/audit"
	"github.com/jamesprial/ward/internal/metrics"
	"github.com/jamesprial/ward/internal/settings"
	"github.com/jamesprial/ward/internal/state"
	"github.com/jamesprial/ward/internal/store"
)

type submitFixture struct {
	store     *store.Store
	tracker   *state.Tracker
	restarter *fakeRestarter
	settings  *settings.Service
	svc       *Service
}

func newSubmitFixture(t *testing.T, bound int, opts ...ServiceOption) *submitFixture {
	t.Helper()
	f := &submitFixture{
		store:     newStore(t),
		tracker:   state.NewTracker(false),
		restarter: &fakeRestarter{},
	}
	f.settings = settings.NewService(f.store, f.tracker, fakePorts{port: bound}, f.restarter)
	f.svc = NewService(f.settings, opts...)
	return f
}

func labForm() settings.Form {
	return settings.Form{
		ServerName:      "Lab",
		Theme:           "dark",
		Port:            "4000",
		EnableFog:       "true",
		BackgroundColor: "default",
	}
}

// ---------------------------------------------------------------------------
// Submit
// ---------------------------------------------------------------------------

func Test_Submit_FreshDeployment(t *testing.T) {
	f := newSubmitFixture(t, settings.InitialPort)
	if f.tracker.IsConfigured() {
		t.Fatal("fresh deployment starts configured")
	}

	resp, err := f.svc.Submit(context.Background(), labForm())
	if err != nil {
		t.Fatalf("Submit() error: %v", err)
	}
	if resp.Message != SuccessMessage {
		t.Errorf("message = %q, want %q", resp.Message, SuccessMessage)
	}

	stored, err := f.store.ReadAll()
	if err != nil {
		t.Fatal(err)
	}
	want := map[string]string{
		settings.KeyServerName:      "Lab",
		settings.KeyTheme:           "dark",
		settings.KeyPort:            "4000",
		settings.KeyEnableFog:       "true",
		settings.KeyBackgroundColor: "default",
	}
	if len(stored) != len(want) {
		t.Errorf("stored = %v, want %v", stored, want)
	}
	for k, v := range want {
		if stored[k] != v {
			t.Errorf("stored %s = %q, want %q", k, stored[k], v)
		}
	}
	if !f.tracker.IsConfigured() {
		t.Error("tracker not configured after submission")
	}
	if f.restarter.count() != 0 {
		t.Errorf("restarts = %d, want 0 for unchanged port", f.restarter.count())
	}
	if got := f.settings.Theme(); got != settings.ThemeDark {
		t.Errorf("active theme = %q, want dark", got)
	}
}

func Test_Submit_SecondSubmissionRejected(t *testing.T) {
	f := newSubmitFixture(t, settings.InitialPort)
	if _, err := f.svc.Submit(context.Background(), labForm()); err != nil {
		t.Fatal(err)
	}
	before, err := os.ReadFile(f.store.Path())
	if err != nil {
		t.Fatal(err)
	}

	second := labForm()
	second.ServerName = "Other"
	second.Theme = "light"
	_, err = f.svc.Submit(context.Background(), second)
	if !errors.Is(err, settings.ErrAlreadyConfigured) {
		t.Fatalf("second Submit() error = %v, want ErrAlreadyConfigured", err)
	}

	after, err := os.ReadFile(f.store.Path())
	if err != nil {
		t.Fatal(err)
	}
	if string(before) != string(after) {
		t.Errorf("store changed by rejected submission:\nbefore %q\nafter  %q", before, after)
	}
	if f.settings.Theme() != settings.ThemeDark {
		t.Error("active configuration changed by rejected submission")
	}
}

func Test_Submit_PortChangeRestartsOnce(t *testing.T) {
	f := newSubmitFixture(t, settings.InitialPort)
	form := labForm()
	form.Port = "8080"

	if _, err := f.svc.Submit(context.Background(), form); err != nil {
		t.Fatalf("Submit() error: %v", err)
	}
	if got := f.restarter.count(); got != 1 {
		t.Fatalf("restarts = %d, want 1", got)
	}
	if f.restarter.reasons[0] != settings.ReasonPortChange {
		t.Errorf("reason = %q, want %q", f.restarter.reasons[0], settings.ReasonPortChange)
	}
	if got := f.settings.ListenPort(); got != 8080 {
		t.Errorf("ListenPort() = %d, want 8080", got)
	}
}

func Test_Submit_InvalidFormNotPersisted(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*settings.Form)
	}{
		{name: "bad port", mutate: func(f *settings.Form) { f.Port = "abc" }},
		{name: "bad theme", mutate: func(f *settings.Form) { f.Theme = "blue" }},
		{name: "long name", mutate: func(f *settings.Form) { f.ServerName = "abcdefghijk" }},
		{name: "bad fog", mutate: func(f *settings.Form) { f.EnableFog = "maybe" }},
		{name: "bad background", mutate: func(f *settings.Form) { f.BackgroundColor = "red" }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newSubmitFixture(t, settings.InitialPort)
			form := labForm()
			tt.mutate(&form)

			_, err := f.svc.Submit(context.Background(), form)
			if !errors.Is(err, settings.ErrInvalidRecord) {
				t.Fatalf("Submit() error = %v, want ErrInvalidRecord", err)
			}
			if f.store.Exists() {
				t.Error("invalid submission created the setup file")
			}
			if f.tracker.IsConfigured() {
				t.Error("invalid submission configured the tracker")
			}
		})
	}
}

func Test_Submit_UnloadedStoreSelfHeals(t *testing.T) {
	f := newSubmitFixture(t, settings.InitialPort)
	if err := os.WriteFile(f.store.Path(), []byte("[setup]\ntheme = dark\nport = 4000\n"), 0o644); err != nil {
		t.Fatal(err)
	}

	_, err := f.svc.Submit(context.Background(), labForm())
	if !errors.Is(err, settings.ErrAlreadyConfigured) {
		t.Fatalf("Submit() error = %v, want ErrAlreadyConfigured", err)
	}
	if !f.tracker.IsConfigured() {
		t.Error("existing file not loaded")
	}
	if _, ok := f.settings.Value(settings.KeyServerName); ok {
		t.Error("submitted form leaked into the active configuration")
	}
}

func Test_Submit_WriteFailure(t *testing.T) {
	st := store.New(filepath.Join(t.TempDir(), "missing", "setup.ini"))
	tracker := state.NewTracker(false)
	svc := NewService(settings.NewService(st, tracker, nil, nil))

	_, err := svc.Submit(context.Background(), labForm())
	var ioErr *store.IOError
	if !errors.As(err, &ioErr) {
		t.Fatalf("Submit() error = %v, want *store.IOError", err)
	}
	if tracker.IsConfigured() {
		t.Error("failed write configured the tracker")
	}
}

func Test_Submit_RecordsMetricsAndAudit(t *testing.T) {
	reg := prometheus.NewRegistry()
	rec := metrics.NewRecorder(reg)
	var buf bytes.Buffer
	f := newSubmitFixture(t, settings.InitialPort, WithMetrics(rec), WithAudit(audit.NewLogger(&buf)))

	if _, err := f.svc.Submit(context.Background(), labForm()); err != nil {
		t.Fatal(err)
	}
	_, _ = f.svc.Submit(context.Background(), labForm())

	for _, result := range []string{resultSaved, resultRejected} {
		if got := submissionCount(t, reg, result); got != 1 {
			t.Errorf("%s submissions = %v, want 1", result, got)
		}
	}
	if n, err := testutil.GatherAndCount(reg, "ward_setup_submissions_total"); err != nil || n != 2 {
		t.Errorf("GatherAndCount() = %d, %v; want 2 series", n, err)
	}
	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	if len(lines) != 2 {
		t.Fatalf("audit lines = %d, want 2", len(lines))
	}
	if !strings.Contains(lines[1], settings.ErrAlreadyConfigured.Error()) {
		t.Errorf("second audit entry = %q, want rejection", lines[1])
	}
}

func submissionCount(t *testing.T, reg *prometheus.Registry, result string) float64 {
	t.Helper()
	families, err := reg.Gather()
	if err != nil {
		t.Fatal(err)
	}
	for _, mf := range families {
		if mf.GetName() != "ward_setup_submissions_total" {
			continue
		}
		for _, m := range mf.GetMetric() {
			for _, lp := range m.GetLabel() {
				if lp.GetName() == "result" && lp.GetValue() == result {
					return m.GetCounter().GetValue()
				}
			}
		}
	}
	return 0
}
