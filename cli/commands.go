package cli

import (
	"errors"
	"fmt"
	"io"
	"strconv"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/warp/hrstore/backup"
	"github.com/warp/hrstore/dashboard"
	"github.com/warp/hrstore/generic"
	"github.com/warp/hrstore/hr"
)

// =============================================================================
// INIT
// =============================================================================

func newInitCommand(opts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "init",
		Short: "Write an empty artifact",
		Long: `Write an empty artifact with every collection present and fresh metadata.

Refuses to touch an existing artifact. Seeding tools normally own this step;
init exists for fresh installs and tests.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withEnv(opts, func(e *env) error {
				ctx := cmd.Context()
				_, _, err := e.backend.Read(ctx)
				switch {
				case err == nil:
					return NewExitError(ExitCommandError, "artifact already exists at "+e.cfg.DataPath())
				case !errors.Is(err, generic.ErrNotInitialized):
					return err
				}

				data, err := hr.NewRootState(e.open().Now()).Encode()
				if err != nil {
					return err
				}
				if err := e.seed(ctx, data); err != nil {
					return fmt.Errorf("write artifact: %w", err)
				}
				e.log.Info("artifact initialized", zap.String("path", e.cfg.DataPath()))
				fmt.Fprintf(cmd.OutOrStdout(), "initialized %s\n", e.cfg.DataPath())
				return nil
			})
		},
	}
}

// =============================================================================
// CHECK
// =============================================================================

// CheckReport is the output of `hrstore check`.
type CheckReport struct {
	Backend  string           `json:"backend"`
	Path     string           `json:"path"`
	Metadata generic.Metadata `json:"metadata"`
	Counts   map[string]int   `json:"counts"`
}

func newCheckCommand(opts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "check",
		Short: "Load the artifact and report its metadata and collection sizes",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withEnv(opts, func(e *env) error {
				ctx := cmd.Context()
				s := e.open()
				if err := s.Load(ctx); err != nil {
					return loadError(err)
				}
				meta, err := s.Metadata(ctx)
				if err != nil {
					return err
				}
				counts, err := s.Counts(ctx)
				if err != nil {
					return err
				}

				report := CheckReport{Backend: e.cfg.Backend, Path: e.cfg.DataPath(), Metadata: meta, Counts: counts}
				return opts.printer(cmd.OutOrStdout()).print(report, func(w io.Writer) {
					fmt.Fprintf(w, "backend\t%s\n", report.Backend)
					fmt.Fprintf(w, "path\t%s\n", report.Path)
					fmt.Fprintf(w, "version\t%s\n", meta.Version)
					fmt.Fprintf(w, "created\t%s\n", meta.CreatedAt.Format("2006-01-02 15:04:05Z07:00"))
					fmt.Fprintf(w, "last updated\t%s\n", meta.LastUpdated.Format("2006-01-02 15:04:05Z07:00"))
					for _, name := range s.Collections() {
						fmt.Fprintf(w, "%s\t%d\n", name, counts[name])
					}
				})
			})
		},
	}
}

// =============================================================================
// EMPLOYEES
// =============================================================================

func newEmployeesCommand(opts *RootOptions) *cobra.Command {
	var (
		department string
		status     string
		search     string
		manager    int64
	)
	cmd := &cobra.Command{
		Use:   "employees",
		Short: "List employees, most recently created first",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			f := hr.EmployeeFilter{Department: department, Status: hr.EmployeeStatus(status), Search: search}
			if f.Status != "" && !f.Status.Valid() {
				return NewExitError(ExitCommandError, fmt.Sprintf("unknown status %q", status))
			}
			if manager > 0 {
				f.ManagerID = hr.Ref(hr.EmployeeID(manager))
			}

			return withEnv(opts, func(e *env) error {
				emps, err := e.open().Employees.All(cmd.Context(), f)
				if err != nil {
					return loadError(err)
				}
				return opts.printer(cmd.OutOrStdout()).print(emps, func(w io.Writer) {
					fmt.Fprintln(w, "ID\tCODE\tNAME\tDEPARTMENT\tPOSITION\tSTATUS\tHIRED")
					for _, emp := range emps {
						fmt.Fprintf(w, "%d\t%s\t%s\t%s\t%s\t%s\t%s\n",
							emp.ID, emp.EmployeeCode, emp.FullName(), emp.Department, emp.Position, emp.Status, emp.HireDate)
					}
				})
			})
		},
	}
	cmd.Flags().StringVar(&department, "department", "", "exact department")
	cmd.Flags().StringVar(&status, "status", "", "active | inactive | terminated")
	cmd.Flags().StringVar(&search, "search", "", "case-insensitive match on name, code, email or position")
	cmd.Flags().Int64Var(&manager, "manager", 0, "direct reports of this employee id")
	return cmd
}

// =============================================================================
// DASHBOARD
// =============================================================================

func newDashboardCommand(opts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "dashboard",
		Short: "Show the employee or HR dashboard",
	}
	cmd.AddCommand(&cobra.Command{
		Use:   "employee <id>",
		Short: "Leave balances and recent activity for one employee",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := strconv.ParseInt(args[0], 10, 64)
			if err != nil || id <= 0 {
				return NewExitError(ExitCommandError, fmt.Sprintf("invalid employee id %q", args[0]))
			}
			return withEnv(opts, func(e *env) error {
				c := dashboard.New(e.open(), dashboard.WithAllotments(e.cfg.LeaveAllotments()))
				d, ok, err := c.Employee(cmd.Context(), hr.EmployeeID(id))
				if err != nil {
					return loadError(err)
				}
				if !ok {
					return NewExitError(ExitFailure, fmt.Sprintf("employee %d not found", id))
				}
				return opts.printer(cmd.OutOrStdout()).print(d, func(w io.Writer) { printEmployeeDashboard(w, d) })
			})
		},
	})
	cmd.AddCommand(&cobra.Command{
		Use:   "hr",
		Short: "Organization-wide counts and recent hires",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withEnv(opts, func(e *env) error {
				d, err := dashboard.New(e.open()).HR(cmd.Context())
				if err != nil {
					return loadError(err)
				}
				return opts.printer(cmd.OutOrStdout()).print(d, func(w io.Writer) { printHRDashboard(w, d) })
			})
		},
	})
	return cmd
}

func printEmployeeDashboard(w io.Writer, d dashboard.EmployeeDashboard) {
	emp := d.Employee
	fmt.Fprintf(w, "%s (%s)\t%s, %s\n\n", emp.FullName(), emp.EmployeeCode, emp.Position, emp.Department)

	fmt.Fprintln(w, "LEAVE\tTOTAL\tUSED\tREMAINING")
	for _, b := range d.LeaveBalances {
		remaining := b.Remaining.String()
		if b.Exceeded {
			remaining = fmt.Sprintf("0 (over by %s)", b.Overdrawn)
		}
		fmt.Fprintf(w, "%s\t%s\t%s\t%s\n", b.LeaveType, b.Total, b.Used, remaining)
	}

	fmt.Fprintln(w, "\nRECENT LEAVE\tFROM\tTO\tDAYS\tSTATUS")
	for _, l := range d.RecentLeave {
		fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\n", l.LeaveType, l.StartDate, l.EndDate, l.Days, l.Status)
	}

	fmt.Fprintln(w, "\nPAYSLIP\tGROSS\tNET\tSTATUS")
	for _, p := range d.RecentPayslips {
		fmt.Fprintf(w, "%s %d\t%s\t%s\t%s\n", p.Month, p.Year, p.GrossPay.StringFixed(2), p.NetPay.StringFixed(2), p.Status)
	}

	fmt.Fprintln(w, "\nCOURSE\tSTATUS\tPROGRESS")
	for _, t := range d.Trainings {
		fmt.Fprintf(w, "%d\t%s\t%d%%\n", t.CourseID, t.Status, t.Progress)
	}
}

func printHRDashboard(w io.Writer, d dashboard.HRDashboard) {
	fmt.Fprintf(w, "employees\t%d\n", d.TotalEmployees)
	fmt.Fprintf(w, "active employees\t%d\n", d.ActiveEmployees)
	fmt.Fprintf(w, "active courses\t%d\n", d.ActiveCourses)
	fmt.Fprintf(w, "leave requests\t%d\n", d.TotalLeaveRequests)
	for _, st := range hr.LeaveStatuses {
		fmt.Fprintf(w, "  %s\t%d\n", st, d.LeaveByStatus[st])
	}
	fmt.Fprintln(w, "\nRECENT HIRES\tDEPARTMENT\tHIRED")
	for _, e := range d.RecentHires {
		fmt.Fprintf(w, "%s\t%s\t%s\n", e.FullName(), e.Department, e.HireDate)
	}
}

// =============================================================================
// BACKUP
// =============================================================================

func newBackupCommand(opts *RootOptions) *cobra.Command {
	var (
		dir string
		s3  backup.S3Config
	)
	cmd := &cobra.Command{
		Use:   "backup",
		Short: "Copy the last persisted artifact to a directory or S3",
		Long: `Copy the last persisted artifact to a directory or an S3 bucket.

The target comes from --dir or --s3-bucket, falling back to the config
file's backup section. S3 wins when both are set.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withEnv(opts, func(e *env) error {
				ctx := cmd.Context()
				target := mergeS3(e.cfg.Backup.S3, s3, cmd)
				if dir == "" {
					dir = e.cfg.Backup.Dir
				}

				var sink backup.Sink
				switch {
				case target.Bucket != "":
					s3sink, err := backup.OpenS3(ctx, target)
					if err != nil {
						return WrapExitError(ExitCommandError, "open s3", err)
					}
					sink = s3sink
				case dir != "":
					sink = backup.DirSink{Dir: dir}
				default:
					return NewExitError(ExitCommandError, "no backup target: set --dir or --s3-bucket")
				}

				s := e.open()
				name, err := backup.Run(ctx, s, sink, s.Now())
				if err != nil {
					return loadError(err)
				}
				e.log.Info("backup written", zap.String("name", name))
				fmt.Fprintln(cmd.OutOrStdout(), name)
				return nil
			})
		},
	}
	f := cmd.Flags()
	f.StringVar(&dir, "dir", "", "directory to write the backup into")
	f.StringVar(&s3.Bucket, "s3-bucket", "", "S3 bucket")
	f.StringVar(&s3.Prefix, "s3-prefix", "", "S3 key prefix")
	f.StringVar(&s3.Region, "s3-region", "", "S3 region (default us-east-1)")
	f.StringVar(&s3.Endpoint, "s3-endpoint", "", "S3-compatible endpoint URL")
	f.BoolVar(&s3.PathStyle, "s3-path-style", false, "use path-style S3 addressing")
	return cmd
}

// mergeS3 overlays the flags that were set on the configured S3 target.
func mergeS3(base, flags backup.S3Config, cmd *cobra.Command) backup.S3Config {
	set := func(name string) bool { return cmd.Flags().Changed(name) }
	for _, o := range []struct {
		flag string
		dst  *string
		src  string
	}{
		{"s3-bucket", &base.Bucket, flags.Bucket},
		{"s3-prefix", &base.Prefix, flags.Prefix},
		{"s3-region", &base.Region, flags.Region},
		{"s3-endpoint", &base.Endpoint, flags.Endpoint},
	} {
		if set(o.flag) {
			*o.dst = o.src
		}
	}
	if set("s3-path-style") {
		base.PathStyle = flags.PathStyle
	}
	return base
}
