package main

import (
	"fmt"
	"path/filepath"
	"slices"

	"github.com/spf13/cobra"

	"pkt.systems/pslog"
	"pkt.systems/sidetabs/internal/diffstats"
	"pkt.systems/sidetabs/internal/gitstatus"
)

func newGitStatusCmd() *cobra.Command {
	var root string
	cmd := &cobra.Command{
		Use:   "git-status [file...]",
		Short: "Show the decorations the git provider assigns",
		Long:  "Without arguments every changed path is listed. With arguments the status of each file is printed.",
		RunE: func(cmd *cobra.Command, args []string) error {
			provider, err := gitstatus.Open(root, pslog.Ctx(cmd.Context()))
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			branch := provider.Branch()
			if branch == "" {
				branch = "(detached)"
			}
			fmt.Fprintf(out, "%s on %s\n", provider.Root(), branch)
			if len(args) > 0 {
				for _, arg := range args {
					path, err := filepath.Abs(arg)
					if err != nil {
						return err
					}
					status := provider.GitStatus(diffstats.URIFor(provider.Root(), path))
					if status == "" {
						status = "clean"
					}
					fmt.Fprintf(out, "%-10s %s\n", status, arg)
				}
				return nil
			}
			changed := provider.Changed()
			paths := make([]string, 0, len(changed))
			for path := range changed {
				paths = append(paths, path)
			}
			slices.Sort(paths)
			for _, path := range paths {
				fmt.Fprintf(out, "%-10s %s\n", changed[path], path)
			}
			return nil
		},
	}
	cmd.Flags().StringVarP(&root, "root", "r", ".", "any path inside the repository")
	return cmd
}
