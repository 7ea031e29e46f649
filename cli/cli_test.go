package cli

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/warp/hrstore/dashboard"
	"github.com/warp/hrstore/generic"
	"github.com/warp/hrstore/generic/store"
	"github.com/warp/hrstore/hr"
)

// =============================================================================
// TEST SETUP
// =============================================================================

func run(t *testing.T, args ...string) (string, error) {
	t.Helper()
	t.Setenv("HRSTORE_CONFIG", "")
	cmd := newRootCommand(&RootOptions{Logger: zap.NewNop()})
	var out bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetErr(io.Discard)
	cmd.SetArgs(args)
	err := cmd.ExecuteContext(context.Background())
	return out.String(), err
}

var seededAt = time.Date(2025, time.March, 1, 8, 0, 0, 0, time.UTC)

// seedFile writes an artifact with two HR employees and one in Finance.
func seedFile(t *testing.T) string {
	t.Helper()
	state := hr.NewRootState(seededAt)
	stamps := generic.Stamps{CreatedAt: seededAt, UpdatedAt: seededAt}
	for i, e := range []struct{ code, first, dept string }{
		{"E1", "Ada", "HR"}, {"E2", "Bob", "Finance"}, {"E3", "Cy", "HR"},
	} {
		stamps.CreatedAt = seededAt.Add(time.Duration(i) * time.Minute)
		state.Employees = append(state.Employees, hr.Employee{
			ID: hr.EmployeeID(i + 1), EmployeeCode: e.code, FirstName: e.first, LastName: "Doe",
			Department: e.dept, Position: "Analyst", HireDate: generic.NewTimePoint(2024, 1, 2),
			Salary: decimal.NewFromInt(50000), Status: hr.EmployeeActive, Stamps: stamps,
		})
	}
	state.LeaveRequests = []hr.LeaveRequest{{
		ID: 1, EmployeeID: 1, LeaveType: hr.LeaveAnnual,
		StartDate: generic.NewTimePoint(2025, 2, 3), EndDate: generic.NewTimePoint(2025, 2, 5),
		Days: decimal.NewFromInt(3), Status: hr.LeaveApproved, Stamps: stamps,
	}}
	data, err := state.Encode()
	require.NoError(t, err)

	path := filepath.Join(t.TempDir(), "hr.json")
	require.NoError(t, store.NewFile(path).Seed(context.Background(), data))
	return path
}

// =============================================================================
// COMMAND TREE
// =============================================================================

func TestCommandPresence(t *testing.T) {
	cmd := NewRootCommand()
	for _, path := range [][]string{
		{"init"}, {"check"}, {"employees"}, {"backup"}, {"dashboard", "employee"}, {"dashboard", "hr"},
	} {
		sub, _, err := cmd.Find(path)
		require.NoError(t, err, "%v", path)
		assert.Equal(t, path[len(path)-1], sub.Name())
	}
}

func TestGlobalFlags(t *testing.T) {
	cmd := NewRootCommand()
	for flag, def := range map[string]string{
		"config": "", "data": "", "backend": "", "format": "text", "verbose": "false",
	} {
		f := cmd.PersistentFlags().Lookup(flag)
		require.NotNil(t, f, flag)
		assert.Equal(t, def, f.DefValue, flag)
	}
}

func TestInvalidFormat(t *testing.T) {
	_, err := run(t, "check", "--format", "xml")
	assert.Equal(t, ExitCommandError, GetExitCode(err))
}

// =============================================================================
// INIT / CHECK
// =============================================================================

func TestInitThenCheck(t *testing.T) {
	// GIVEN: No artifact
	// WHEN: Running init, then check with JSON output
	// THEN: Every collection exists and is empty; a second init refuses

	for _, backend := range []string{"file", "sqlite"} {
		t.Run(backend, func(t *testing.T) {
			path := filepath.Join(t.TempDir(), "nested", "hr.data")
			if backend == "sqlite" {
				path = filepath.Join(t.TempDir(), "hr.db")
			}
			args := []string{"--backend", backend, "--data", path}

			out, err := run(t, append(args, "init")...)
			require.NoError(t, err)
			assert.Contains(t, out, path)

			out, err = run(t, append(args, "check", "--format", "json")...)
			require.NoError(t, err)
			var report CheckReport
			require.NoError(t, json.Unmarshal([]byte(out), &report))
			assert.Equal(t, hr.SchemaVersion, report.Metadata.Version)
			assert.Len(t, report.Counts, 9)
			for name, n := range report.Counts {
				assert.Zero(t, n, name)
			}

			_, err = run(t, append(args, "init")...)
			assert.Equal(t, ExitCommandError, GetExitCode(err))
		})
	}
}

func TestCheck_NotInitialized(t *testing.T) {
	_, err := run(t, "--data", filepath.Join(t.TempDir(), "missing.json"), "check")
	require.ErrorIs(t, err, generic.ErrNotInitialized)
	assert.Equal(t, ExitFailure, GetExitCode(err))
}

func TestCheck_Corrupt(t *testing.T) {
	path := filepath.Join(t.TempDir(), "hr.json")
	require.NoError(t, os.WriteFile(path, []byte(`{"metadata": {}, "employees": {}}`), 0o600))

	_, err := run(t, "--data", path, "check")
	require.ErrorIs(t, err, generic.ErrCorruptState)
	assert.Equal(t, ExitFailure, GetExitCode(err))
}

func TestCheck_TextOutput(t *testing.T) {
	out, err := run(t, "--data", seedFile(t), "check")
	require.NoError(t, err)
	assert.Contains(t, out, "employees")
	assert.Regexp(t, `employees\s+3`, out)
	assert.Regexp(t, `leave_requests\s+1`, out)
}

func TestConfigFileSelectsBackend(t *testing.T) {
	dir := t.TempDir()
	cfg := filepath.Join(dir, "hrstore.yaml")
	require.NoError(t, os.WriteFile(cfg, []byte("backend: sqlite\npath: "+filepath.Join(dir, "hr.db")+"\n"), 0o600))

	_, err := run(t, "--config", cfg, "init")
	require.NoError(t, err)
	_, err = os.Stat(filepath.Join(dir, "hr.db"))
	assert.NoError(t, err)
}

// =============================================================================
// EMPLOYEES / DASHBOARD
// =============================================================================

func TestEmployees_Filter(t *testing.T) {
	path := seedFile(t)

	out, err := run(t, "--data", path, "--format", "json", "employees", "--department", "HR")
	require.NoError(t, err)

	var emps []hr.Employee
	require.NoError(t, json.Unmarshal([]byte(out), &emps))
	require.Len(t, emps, 2)
	assert.Equal(t, "E3", emps[0].EmployeeCode)
	assert.Equal(t, "E1", emps[1].EmployeeCode)

	_, err = run(t, "--data", path, "employees", "--status", "retired")
	assert.Equal(t, ExitCommandError, GetExitCode(err))
}

func TestDashboardEmployee(t *testing.T) {
	path := seedFile(t)

	out, err := run(t, "--data", path, "--format", "json", "dashboard", "employee", "1")
	require.NoError(t, err)
	var d dashboard.EmployeeDashboard
	require.NoError(t, json.Unmarshal([]byte(out), &d))
	annual, ok := d.Balance(hr.LeaveAnnual)
	require.True(t, ok)
	assert.True(t, annual.Remaining.Equal(decimal.NewFromInt(17)))

	out, err = run(t, "--data", path, "dashboard", "employee", "1")
	require.NoError(t, err)
	assert.Contains(t, out, "Ada Doe (E1)")
	assert.Regexp(t, `Annual\s+20\s+3\s+17`, out)

	_, err = run(t, "--data", path, "dashboard", "employee", "99")
	assert.Equal(t, ExitFailure, GetExitCode(err))

	_, err = run(t, "--data", path, "dashboard", "employee", "abc")
	assert.Equal(t, ExitCommandError, GetExitCode(err))
}

func TestDashboardHR(t *testing.T) {
	out, err := run(t, "--data", seedFile(t), "--format", "json", "dashboard", "hr")
	require.NoError(t, err)

	var d dashboard.HRDashboard
	require.NoError(t, json.Unmarshal([]byte(out), &d))
	assert.Equal(t, 3, d.TotalEmployees)
	assert.Equal(t, 1, d.TotalLeaveRequests)
	assert.Equal(t, 1, d.LeaveByStatus[hr.LeaveApproved])
}

// =============================================================================
// BACKUP
// =============================================================================

func TestBackup_Dir(t *testing.T) {
	path := seedFile(t)
	dir := filepath.Join(t.TempDir(), "backups")

	out, err := run(t, "--data", path, "backup", "--dir", dir)
	require.NoError(t, err)

	name := filepath.Base(string(bytes.TrimSpace([]byte(out))))
	assert.Regexp(t, `^hrstore-\d{8}T\d{6}Z\.json$`, name)

	want, err := os.ReadFile(path)
	require.NoError(t, err)
	got, err := os.ReadFile(filepath.Join(dir, name))
	require.NoError(t, err)
	assert.Equal(t, want, got)
}

func TestBackup_NoTarget(t *testing.T) {
	_, err := run(t, "--data", seedFile(t), "backup")
	assert.Equal(t, ExitCommandError, GetExitCode(err))
}
