package cicmd

import (
	"bytes"
	"context"
	"errors"
	"strings"
	"testing"

	command "github.com/goliatone/go-command"
	goerrors "github.com/goliatone/go-errors"

	"github.com/goliatone/go-cms-ci/internal/ci"
	"github.com/goliatone/go-cms-ci/internal/logging"
	"github.com/goliatone/go-cms-ci/internal/logging/console"
)

type stubRepository struct {
	site   string
	calls  int
	result ci.StoreAllResult
	drifts []ci.Drift
	err    error
}

func (s *stubRepository) StoreAll(_ context.Context, siteName string) (ci.StoreAllResult, error) {
	s.calls++
	s.site = siteName
	return s.result, s.err
}

func (s *stubRepository) Status(context.Context) ([]ci.Drift, error) {
	s.calls++
	return s.drifts, s.err
}

func TestStoreAllHandlerReportsResult(t *testing.T) {
	repo := &stubRepository{result: ci.StoreAllResult{Nodes: 3, Units: 4, Removed: 1}}
	handler := NewStoreAllHandler(repo, logging.NoOp(), FeatureGates{})

	var got ci.StoreAllResult
	err := handler.Execute(context.Background(), StoreAllCommand{
		SiteName:       " main ",
		ResultCallback: func(r ci.StoreAllResult) { got = r },
	})
	if err != nil {
		t.Fatalf("execute: %v", err)
	}
	if repo.site != "main" {
		t.Fatalf("expected trimmed site name, got %q", repo.site)
	}
	if got != repo.result {
		t.Fatalf("expected callback with %#v, got %#v", repo.result, got)
	}
}

func TestStoreAllHandlerLogsOutcomeWithSiteAndCounts(t *testing.T) {
	var buf bytes.Buffer
	logger := console.NewProvider(console.Options{Writer: &buf}).GetLogger("cms.commands.ci")
	repo := &stubRepository{result: ci.StoreAllResult{Nodes: 3, Units: 4, Removed: 1}}
	handler := NewStoreAllHandler(repo, logger, FeatureGates{})

	if err := handler.Execute(context.Background(), StoreAllCommand{SiteName: "main"}); err != nil {
		t.Fatalf("execute: %v", err)
	}
	if err := handler.Execute(context.Background(), StoreAllCommand{}); err != nil {
		t.Fatalf("execute all sites: %v", err)
	}

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	var outcomes []string
	for _, line := range lines {
		if strings.Contains(line, "command.execute.success") {
			outcomes = append(outcomes, line)
		}
	}
	if len(outcomes) != 2 {
		t.Fatalf("expected two outcome entries, got:\n%s", buf.String())
	}
	for _, want := range []string{"site_name=main", "nodes=3", "units=4", "removed=1", "operation=ci.store_all", "command=cms.ci.store_all"} {
		if !strings.Contains(outcomes[0], want) {
			t.Fatalf("expected %q in %q", want, outcomes[0])
		}
	}
	if !strings.Contains(outcomes[1], "site_name=*") {
		t.Fatalf("expected every-site scope in %q", outcomes[1])
	}
}

func TestStatusHandlerRecordsDriftCount(t *testing.T) {
	var buf bytes.Buffer
	logger := console.NewProvider(console.Options{Writer: &buf}).GetLogger("cms.commands.ci")
	repo := &stubRepository{drifts: []ci.Drift{{Kind: ci.DriftMissing}, {Kind: ci.DriftModified}}}
	handler := NewStatusHandler(repo, logger, FeatureGates{})

	if err := handler.Execute(context.Background(), StatusCommand{}); err != nil {
		t.Fatalf("execute: %v", err)
	}
	if !strings.Contains(buf.String(), "command.execute.success") || !strings.Contains(buf.String(), "drift=2") {
		t.Fatalf("expected drift count in outcome:\n%s", buf.String())
	}
}

func TestStoreAllHandlerHonoursGate(t *testing.T) {
	repo := &stubRepository{}
	handler := NewStoreAllHandler(repo, nil, FeatureGates{RepositoryEnabled: func() bool { return false }})

	err := handler.Execute(context.Background(), StoreAllCommand{})
	if !errors.Is(err, ErrRepositoryDisabled) {
		t.Fatalf("expected ErrRepositoryDisabled, got %v", err)
	}
	if !goerrors.IsCategory(err, goerrors.CategoryCommand) {
		t.Fatalf("expected command category, got %v", err)
	}
	if repo.calls != 0 {
		t.Fatal("expected repository untouched")
	}
}

func TestStoreAllHandlerRejectsOverlongSiteName(t *testing.T) {
	handler := NewStoreAllHandler(&stubRepository{}, nil, FeatureGates{})
	long := make([]byte, 101)
	for i := range long {
		long[i] = 'a'
	}
	err := handler.Execute(context.Background(), StoreAllCommand{SiteName: string(long)})
	if !goerrors.IsCategory(err, goerrors.CategoryValidation) {
		t.Fatalf("expected validation category, got %v", err)
	}
}

func TestStoreAllHandlerCronOptions(t *testing.T) {
	handler := NewStoreAllHandler(&stubRepository{}, nil, FeatureGates{}, StoreAllWithCronExpression(" @hourly "))
	if got := handler.CronOptions().Expression; got != "@hourly" {
		t.Fatalf("expected @hourly, got %q", got)
	}
	if got := NewStoreAllHandler(&stubRepository{}, nil, FeatureGates{}).CronOptions().Expression; got != "@daily" {
		t.Fatalf("expected @daily default, got %q", got)
	}

	var _ command.CronCommand = handler
	repo := &stubRepository{}
	cronHandler := NewStoreAllHandler(repo, nil, FeatureGates{})
	var registered func() error
	err := RegisterStoreAllCron(func(cfg command.HandlerConfig, fn any) error {
		registered = fn.(func() error)
		return nil
	}, cronHandler)
	if err != nil {
		t.Fatalf("register cron: %v", err)
	}
	if err := registered(); err != nil {
		t.Fatalf("cron run: %v", err)
	}
	if repo.calls != 1 {
		t.Fatalf("expected one rebuild, got %d", repo.calls)
	}
}

func TestStatusHandlerPassesDrift(t *testing.T) {
	repo := &stubRepository{drifts: []ci.Drift{{Kind: ci.DriftMissing, Location: "cms.document/main/a/en-US.xml"}}}
	handler := NewStatusHandler(repo, logging.NoOp(), FeatureGates{})

	var got []ci.Drift
	if err := handler.Execute(context.Background(), StatusCommand{ResultCallback: func(d []ci.Drift) { got = d }}); err != nil {
		t.Fatalf("execute: %v", err)
	}
	if len(got) != 1 || got[0].Kind != ci.DriftMissing {
		t.Fatalf("unexpected drift %#v", got)
	}
}

func TestStatusHandlerWrapsRepositoryErrors(t *testing.T) {
	cause := errors.New("disk gone")
	handler := NewStatusHandler(&stubRepository{err: cause}, nil, FeatureGates{})
	err := handler.Execute(context.Background(), StatusCommand{})
	if !errors.Is(err, cause) || !goerrors.IsCategory(err, goerrors.CategoryCommand) {
		t.Fatalf("expected wrapped cause, got %v", err)
	}
}
