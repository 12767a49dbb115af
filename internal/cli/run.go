package cli

import (
	"context"
	"fmt"
	"os"
	"os/signal"

	"github.com/spf13/cobra"

	"ember/emberos/boot"
	"ember/emberos/kernel"
	"ember/hal"
	"ember/internal/monitor"
)

func newRunCmd() *cobra.Command {
	var (
		flagPlan     string
		flagSwitches uint64
		flagWindow   bool
	)

	cmd := &cobra.Command{
		Use:   "run",
		Short: "Boot a plan and run the trap loop",
		RunE: func(cmd *cobra.Command, args []string) error {
			plan := boot.DefaultPlan()
			if flagPlan != "" {
				var err error
				plan, err = boot.LoadPlan(flagPlan)
				if err != nil {
					return err
				}
			}

			machine := hal.NewUserMachine()
			if err := boot.InstallPrograms(machine, plan); err != nil {
				return err
			}

			kernel.SetPanicHandler(func(info kernel.PanicInfo) {
				logger.Error("kernel panic", "task", info.Task, "msg", info.Msg)
				os.Stderr.Write(info.Stack)
			})

			ts, frame, err := boot.Start(plan, machine, os.Stdout)
			if err != nil {
				return err
			}
			logger.Info("booted", "programs", len(plan.Programs), "first_rip", fmt.Sprintf("%#x", frame.Rip))

			var n uint64
			quantum := func() error {
				if flagSwitches > 0 && n >= flagSwitches {
					return monitor.Done
				}
				trap, err := machine.Resume(frame)
				if err != nil {
					return fmt.Errorf("user resume: %w", err)
				}
				frame = trap
				ts.DispatchSyscall(&frame)
				n++
				logger.Debug("quantum",
					"n", n,
					"current", ts.Current().ID(),
					"rip", fmt.Sprintf("%#x", frame.Rip))
				return nil
			}

			if flagWindow {
				return monitor.Run(ts, quantum)
			}

			ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
			defer stop()
			return runHeadless(ctx, quantum)
		},
	}

	cmd.Flags().StringVar(&flagPlan, "plan", "", "Boot plan yaml (default: two echo programs)")
	cmd.Flags().Uint64Var(&flagSwitches, "switches", 64, "Stop after N syscall quanta (0 = run until interrupted)")
	cmd.Flags().BoolVar(&flagWindow, "window", false, "Open the scheduler monitor window")

	return cmd
}

func runHeadless(ctx context.Context, quantum func() error) error {
	for {
		select {
		case <-ctx.Done():
			return nil
		default:
		}
		if err := quantum(); err != nil {
			if err == monitor.Done {
				return nil
			}
			return err
		}
	}
}
