package cmd

import (
	"encoding/json"
	"fmt"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/tshoemake/portfolio/internal/store"
)

var inboxCmd = &cobra.Command{
	Use:   "inbox",
	Short: "Inspect stored contact submissions",
}

var (
	inboxLimit int
	inboxJSON  bool
)

var inboxListCmd = &cobra.Command{
	Use:   "list",
	Short: "List submissions, newest first",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}
		db, err := store.Open(cfg.DB.Path)
		if err != nil {
			return err
		}
		defer db.Close()

		subs, err := db.ListSubmissions(cmd.Context(), inboxLimit)
		if err != nil {
			return err
		}
		out := cmd.OutOrStdout()
		if inboxJSON {
			enc := json.NewEncoder(out)
			enc.SetIndent("", "  ")
			return enc.Encode(subs)
		}
		if len(subs) == 0 {
			fmt.Fprintln(out, "No submissions.")
			return nil
		}
		w := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
		fmt.Fprintln(w, "ID\tRECEIVED\tTOPIC\tNAME\tEMAIL\tMAILED\tMESSAGE")
		for _, s := range subs {
			fmt.Fprintf(w, "%d\t%s\t%s\t%s\t%s\t%t\t%s\n",
				s.ID, s.CreatedAt.Local().Format("2006-01-02 15:04"), s.Topic, s.Name, s.Email, s.Notified, preview(s.Message, 40))
		}
		return w.Flush()
	},
}

func preview(s string, n int) string {
	s = strings.Join(strings.Fields(s), " ")
	if r := []rune(s); len(r) > n {
		return string(r[:n-1]) + "…"
	}
	return s
}

func init() {
	inboxListCmd.Flags().IntVarP(&inboxLimit, "limit", "n", 20, "maximum rows (0 for all)")
	inboxListCmd.Flags().BoolVar(&inboxJSON, "json", false, "print JSON")
	inboxCmd.AddCommand(inboxListCmd)
	rootCmd.AddCommand(inboxCmd)
}
