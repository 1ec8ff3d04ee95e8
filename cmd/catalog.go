package cmd

import (
	"errors"
	"fmt"
	"strconv"
	"strings"

	"catalog-sync/feature/marketplace"

	"github.com/spf13/cobra"
)

var (
	searchPage   int
	historyLimit int
)

// searchCmd queries the local catalog.
var searchCmd = &cobra.Command{
	Use:   "search [query]",
	Short: "Search purchasable listings, cheapest first",
	Args:  cobra.ArbitraryArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		rt, err := bootstrap(cmd.Context())
		if err != nil {
			return err
		}
		defer rt.Close()

		svc := rt.marketplaceService()
		query := strings.Join(args, " ")
		page := marketplace.Paginate(svc.Search(query), searchPage, marketplace.PageSize)

		rows := make([][]string, 0, len(page.Results))
		for _, r := range page.Results {
			price, _ := r.PriceAmount()
			rows = append(rows, []string{
				strconv.FormatInt(r.ID, 10),
				r.DisplayName(),
				strconv.FormatFloat(price, 'f', -1, 64),
				strconv.Itoa(r.InStock),
				r.UserName,
				svc.ItemURL(r),
			})
		}
		if err := renderTable([]string{"ID", "Name", "Price", "Stock", "Seller", "URL"}, rows); err != nil {
			return err
		}
		fmt.Printf("Page %d of %d (%d results)\n", page.Page, page.Pages, page.Total)
		return nil
	},
}

// statsCmd prints catalog totals.
var statsCmd = &cobra.Command{
	Use:   "stats",
	Short: "Show catalog totals",
	RunE: func(cmd *cobra.Command, args []string) error {
		rt, err := bootstrap(cmd.Context())
		if err != nil {
			return err
		}
		defer rt.Close()

		st := rt.marketplaceService().Stats()
		return renderTable([]string{"Field", "Value"}, [][]string{
			{"Listings", strconv.Itoa(st.Total)},
			{"In stock", strconv.Itoa(st.InStock)},
			{"Total value", strconv.FormatFloat(st.TotalValue, 'f', 2, 64)},
			{"Cursor", strconv.FormatInt(st.Cursor, 10)},
		})
	},
}

// historyCmd lists recorded runs.
var historyCmd = &cobra.Command{
	Use:   "history",
	Short: "List recent sync operations",
	Long:  `Lists the most recent engine operations. Requires database.enabled.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		rt, err := bootstrap(cmd.Context())
		if err != nil {
			return err
		}
		defer rt.Close()

		svc := rt.marketplaceService()
		if !svc.HistoryEnabled() {
			return errors.New("run history is disabled, set database.enabled")
		}
		runs, err := svc.History(cmd.Context(), historyLimit)
		if err != nil {
			return err
		}

		rows := make([][]string, 0, len(runs))
		for _, run := range runs {
			rows = append(rows, []string{
				run.ID,
				run.Kind,
				run.Status,
				run.StartedAt.Local().Format("2006-01-02 15:04:05"),
				run.FinishedAt.Sub(run.StartedAt).Round(1e6).String(),
				strconv.Itoa(run.Checked),
				fmt.Sprintf("+%d ~%d -%d", run.Added, run.Updated, run.Removed),
				fmt.Sprintf("%d -> %d", run.RecordsBefore, run.RecordsAfter),
			})
		}
		return renderTable([]string{"Run", "Kind", "Status", "Started", "Duration", "Checked", "Changes", "Records"}, rows)
	},
}

func init() {
	RootCmd.AddCommand(searchCmd, statsCmd, historyCmd)
	searchCmd.Flags().IntVar(&searchPage, "page", 1, "Result page")
	historyCmd.Flags().IntVar(&historyLimit, "limit", 20, "Number of runs to list")
}
