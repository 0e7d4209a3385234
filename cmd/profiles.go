package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/KaramelBytes/rfm-dashboard/internal/profile"
)

var profilesCmd = &cobra.Command{
	Use:   "profiles",
	Short: "List available dashboard profiles",
	RunE: func(cmd *cobra.Command, args []string) error {
		dir, current := "", profile.DefaultName
		if cfg != nil {
			dir, current = cfg.ProfilesDir, cfg.Profile
		}
		names, err := profile.List(dir)
		if err != nil {
			return err
		}
		out := cmd.OutOrStdout()
		for _, n := range names {
			p, err := profile.Load(n, dir)
			if err != nil {
				fmt.Fprintf(out, "- %s (unreadable: %v)\n", n, err)
				continue
			}
			mark := " "
			if n == current {
				mark = "*"
			}
			extra := ""
			if p.HasPivot() {
				extra = " +pivot"
			}
			fmt.Fprintf(out, "%s %s: %s (lookup v%s, %d segments%s)\n", mark, n, p.Title, p.LookupVersion, len(p.Segments), extra)
		}
		return nil
	},
}

func init() {
	rootCmd.AddCommand(profilesCmd)
}
