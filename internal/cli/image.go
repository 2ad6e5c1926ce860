package cli

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"strings"

	"github.com/spf13/cobra"

	"github.com/shinji-kodama/auto-changelog/internal/docker"
	"github.com/shinji-kodama/auto-changelog/internal/model"
)

// imageVerifyFlags holds the flag values of "image verify".
type imageVerifyFlags struct {
	paths      []string
	entrypoint string
}

// NewImageCommand creates the "image" command group.
func NewImageCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "image",
		Short: "Inspect auto-changelog container images",
	}
	cmd.AddCommand(NewImageVerifyCommand())
	return cmd
}

// NewImageVerifyCommand creates the "image verify" subcommand, which checks
// a built image against the packaging contract of the action.
//
// Usage:
//
//	auto-changelog image verify <ref> [--path P]...
func NewImageVerifyCommand() *cobra.Command {
	flags := &imageVerifyFlags{}

	cmd := &cobra.Command{
		Use:   "verify <ref>",
		Short: "Verify that a built image satisfies the action packaging contract",
		Long: `Verify inspects an image through the Docker daemon and checks that:
  - its entrypoint is /entrypoint.sh
  - the shipped files exist and are executable
  - git is installed and runs`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runImageVerify(cmd.Context(), args[0], flags, cmd.OutOrStdout())
		},
	}

	cmd.Flags().StringArrayVar(&flags.paths, "path", nil,
		fmt.Sprintf("Path that must be an executable file (repeatable, default %s)", strings.Join(docker.DefaultPaths, ", ")))
	cmd.Flags().StringVar(&flags.entrypoint, "entrypoint", docker.DefaultEntrypoint, "Expected image entrypoint")

	return cmd
}

func runImageVerify(ctx context.Context, ref string, flags *imageVerifyFlags, stdout io.Writer) error {
	client, err := docker.NewClient()
	if err != nil {
		return err
	}
	defer client.Close()

	if err := client.Ping(ctx); err != nil {
		return err
	}

	VerboseLog("verifying image %s", ref)
	report, err := docker.VerifyImage(ctx, client, ref, docker.VerifyOptions{
		Entrypoint: flags.entrypoint,
		Paths:      flags.paths,
	})
	if err != nil {
		return err
	}

	printReport(stdout, report)
	return reportError(report)
}

// reportError returns an ExitImageCheckFailed error naming the failed
// checks, or nil when the image passed.
func reportError(report *docker.Report) error {
	failed := report.Failed()
	if len(failed) == 0 {
		return nil
	}
	names := make([]string, len(failed))
	for i, c := range failed {
		names[i] = c.Name
	}
	return model.NewCLIError(model.ExitImageCheckFailed,
		fmt.Sprintf("image %s failed %d check(s): %s", report.Image, len(failed), strings.Join(names, ", ")))
}

// printReport prints the verification report as JSON or as an aligned
// table.
func printReport(w io.Writer, report *docker.Report) {
	if IsJSONOutput() {
		result := struct {
			*docker.Report
			Passed bool `json:"passed"`
		}{Report: report, Passed: report.Passed()}
		data, _ := json.MarshalIndent(result, "", "  ")
		fmt.Fprintln(w, string(data))
		return
	}

	fmt.Fprintf(w, "Image: %s\n", report.Image)
	for _, c := range report.Checks {
		status := "PASS"
		if !c.OK {
			status = "FAIL"
		}
		fmt.Fprintf(w, "  %-4s %-30s %s\n", status, c.Name, c.Detail)
	}
}
