package checker

import (
	"bytes"
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zapcore"

	"github.com/oshokin/reqcheck/internal/console"
	"github.com/oshokin/reqcheck/internal/domain/requirement"
	"github.com/oshokin/reqcheck/internal/logger"
	"github.com/oshokin/reqcheck/internal/registry"
)

// fakeRegistry resolves versions from a map keyed by normalized name.
type fakeRegistry struct {
	installed map[string]string
	err       error
	calls     []string
}

func (f *fakeRegistry) Version(_ context.Context, name string) (string, error) {
	f.calls = append(f.calls, name)

	if f.err != nil {
		return "", f.err
	}

	version, ok := f.installed[requirement.NormalizeName(name)]
	if !ok {
		return "", registry.ErrPackageNotFound
	}

	return version, nil
}

// fakeInstaller records every install and fails for names listed in fail.
// When cancel is set, the first install cancels the run and fails like a killed process.
type fakeInstaller struct {
	fail   map[string]bool
	cancel context.CancelFunc
	calls  []string
}

func (f *fakeInstaller) Install(_ context.Context, req requirement.Requirement) error {
	f.calls = append(f.calls, req.Raw)

	if f.cancel != nil {
		f.cancel()

		return errors.New("signal: killed")
	}

	if f.fail[req.Name] {
		return errors.New("exit status 1")
	}

	return nil
}

func parseList(t *testing.T, content string) *requirement.List {
	t.Helper()

	list, err := requirement.Parse(strings.NewReader(content), "#")
	require.NoError(t, err)

	return list
}

func newTestRunner(reg registry.Registry, inst *fakeInstaller, out *bytes.Buffer) *runner {
	return &runner{
		registry:        reg,
		installer:       inst,
		console:         console.New(out, true),
		progressOptions: []console.ProgressOption{console.WithInteractive(false)},
	}
}

// TestCheck_AllInstalled never invokes the installer when everything resolves.
func TestCheck_AllInstalled(t *testing.T) {
	t.Parallel()

	var out bytes.Buffer

	reg := &fakeRegistry{installed: map[string]string{"pkga": "1.0", "pkgc": "2.0"}}
	inst := &fakeInstaller{}

	report, err := newTestRunner(reg, inst, &out).check(context.Background(), parseList(t, "pkgA\n\n# pkgB\npkgC\n"))
	require.NoError(t, err)
	require.Empty(t, inst.calls)
	require.Len(t, report.Entries, 2)

	for _, entry := range report.Entries {
		require.Equal(t, requirement.StatusAlreadyInstalled, entry.Status)
	}

	require.Equal(t, "2.0", report.Entries[1].Version)
	require.Equal(t,
		"Dependencies:\n"+
			"  - pkgA (already installed)\n"+
			"  - pkgC (already installed)\n"+
			"\n"+
			"[1/2] pkgA\n"+
			"[2/2] pkgC\n",
		out.String())

	// Every entry is looked up once for the status block and once in the loop.
	require.Equal(t, []string{"pkgA", "pkgC", "pkgA", "pkgC"}, reg.calls)
}

// TestCheck_OneMissing installs exactly the missing package.
func TestCheck_OneMissing(t *testing.T) {
	t.Parallel()

	var out bytes.Buffer

	reg := &fakeRegistry{installed: map[string]string{"pkga": "1.0"}}
	inst := &fakeInstaller{}

	report, err := newTestRunner(reg, inst, &out).check(context.Background(), parseList(t, "pkgA\npkgC>=1.2\n"))
	require.NoError(t, err)
	require.Equal(t, []string{"pkgC>=1.2"}, inst.calls)
	require.Equal(t, requirement.StatusInstalled, report.Entries[1].Status)
	require.Contains(t, out.String(), "  - pkgC>=1.2\n")
	require.Equal(t, 1, report.Summary().Installed)
	require.Equal(t, 1, report.Summary().AlreadyInstalled)
}

// TestCheck_FailureContinues records a failed install and keeps going.
func TestCheck_FailureContinues(t *testing.T) {
	t.Parallel()

	var out bytes.Buffer

	reg := &fakeRegistry{}
	inst := &fakeInstaller{fail: map[string]bool{"broken": true}}

	report, err := newTestRunner(reg, inst, &out).check(context.Background(), parseList(t, "first\nbroken\nlast\n"))
	require.NoError(t, err)
	require.Equal(t, []string{"first", "broken", "last"}, inst.calls)

	failed := report.Failed()
	require.Len(t, failed, 1)
	require.Equal(t, "broken", failed[0].Requirement.Name)
	require.EqualError(t, failed[0].Err, "exit status 1")
	require.Equal(t, requirement.StatusInstalled, report.Entries[2].Status)
	require.Contains(t, out.String(), "[3/3] last\n")
}

// TestCheck_ProgressCountsEveryEntry advances overall progress once per processed line.
func TestCheck_ProgressCountsEveryEntry(t *testing.T) {
	t.Parallel()

	var out bytes.Buffer

	reg := &fakeRegistry{installed: map[string]string{"a": "1", "c": "1"}}
	inst := &fakeInstaller{fail: map[string]bool{"d": true}}

	report, err := newTestRunner(reg, inst, &out).check(context.Background(), parseList(t, "a\nb\n#x\n\nc\nd\n"))
	require.NoError(t, err)
	require.Len(t, report.Entries, 4)
	require.Equal(t, 4, strings.Count(out.String(), "/4] "))
}

// TestCheck_DryRun reports missing packages as skipped without installing.
func TestCheck_DryRun(t *testing.T) {
	t.Parallel()

	var out bytes.Buffer

	reg := &fakeRegistry{installed: map[string]string{"pkga": "1.0"}}
	inst := &fakeInstaller{}

	r := newTestRunner(reg, inst, &out)
	r.dryRun = true

	report, err := r.check(context.Background(), parseList(t, "pkgA\npkgB\n"))
	require.NoError(t, err)
	require.Empty(t, inst.calls)
	require.Equal(t, requirement.StatusSkipped, report.Entries[1].Status)
	require.Equal(t, 1, report.Summary().Skipped)
}

// TestCheck_RegistryError aborts before any install.
func TestCheck_RegistryError(t *testing.T) {
	t.Parallel()

	var out bytes.Buffer

	broken := errors.New("python3: executable file not found")
	reg := &fakeRegistry{err: broken}
	inst := &fakeInstaller{}

	report, err := newTestRunner(reg, inst, &out).check(context.Background(), parseList(t, "pkgA\n"))
	require.ErrorIs(t, err, broken)
	require.NotErrorIs(t, err, registry.ErrPackageNotFound)
	require.Nil(t, report)
	require.Empty(t, inst.calls)
}

// TestCheck_Canceled stops before processing entries.
func TestCheck_Canceled(t *testing.T) {
	t.Parallel()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	inst := &fakeInstaller{}

	_, err := newTestRunner(&fakeRegistry{}, inst, &bytes.Buffer{}).check(ctx, parseList(t, "pkgA\n"))
	require.ErrorIs(t, err, context.Canceled)
	require.Empty(t, inst.calls)
}

// TestSleep returns early when the context is done.
func TestSleep(t *testing.T) {
	t.Parallel()

	require.NoError(t, sleep(context.Background(), time.Millisecond))
	require.NoError(t, sleep(context.Background(), 0))

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	started := time.Now()
	require.ErrorIs(t, sleep(ctx, time.Hour), context.Canceled)
	require.Less(t, time.Since(started), time.Second)
}

// TestCheck_CanceledDuringInstall stops the loop when the run is canceled while an installer runs.
func TestCheck_CanceledDuringInstall(t *testing.T) {
	t.Parallel()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	inst := &fakeInstaller{cancel: cancel}

	report, err := newTestRunner(&fakeRegistry{}, inst, &bytes.Buffer{}).check(ctx, parseList(t, "first\nsecond\nthird\n"))
	require.ErrorIs(t, err, context.Canceled)
	require.Equal(t, []string{"first"}, inst.calls)
	require.Empty(t, report.Entries)
	require.Empty(t, report.Failed())
}

// TestCheck_NoWarningsDuringProgress keeps warn-level logs off stderr while the progress display is live.
func TestCheck_NoWarningsDuringProgress(t *testing.T) {
	t.Parallel()

	var logs bytes.Buffer

	ctx := logger.ToContext(context.Background(), logger.NewWithWriter(&logs, zapcore.WarnLevel))
	inst := &fakeInstaller{fail: map[string]bool{"broken": true}}

	report, err := newTestRunner(&fakeRegistry{}, inst, &bytes.Buffer{}).check(ctx, parseList(t, "broken\nfine\n"))
	require.NoError(t, err)
	require.Len(t, report.Failed(), 1)
	require.Empty(t, logs.String())
}

// TestCheck_AnimationTicks pauses eleven times per installed package: 0%, 10%, ..., 100%.
func TestCheck_AnimationTicks(t *testing.T) {
	t.Parallel()

	const step = 5 * time.Millisecond

	r := newTestRunner(&fakeRegistry{}, &fakeInstaller{}, &bytes.Buffer{})
	r.animationStep = step

	started := time.Now()
	_, err := r.check(context.Background(), parseList(t, "pkgA\n"))
	require.NoError(t, err)
	require.GreaterOrEqual(t, time.Since(started), animationTicks*step)
	require.Equal(t, 11, animationTicks)
	require.Equal(t, animationTotal, (animationTicks-1)*animationIncrement)
}
