package cli

import (
	"encoding/json"
	"fmt"
	"os"
	"strings"
	"text/tabwriter"

	"github.com/regwatch/regwatch/internal/compliance"
	"github.com/regwatch/regwatch/internal/listing"
	"github.com/regwatch/regwatch/internal/match"
	"github.com/regwatch/regwatch/internal/scrape"
)

// printJSON marshals v as indented JSON and writes it to stdout.
func printJSON(v interface{}) error {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

// printJobTable prints scrape jobs in a tab-aligned table.
func printJobTable(jobs []*scrape.Job) error {
	if len(jobs) == 0 {
		fmt.Println("No jobs found.")
		return nil
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "ID\tPLATFORM\tTYPE\tSTATUS\tFOUND\tNEW\tUPDATED\tSKIPPED\tCREATED")
	for _, j := range jobs {
		fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%d\t%d\t%d\t%d\t%s\n",
			j.ID, j.Platform, j.Type, j.Status,
			j.ListingsFound, j.ListingsNew, j.ListingsUpdated, j.ListingsSkipped,
			j.CreatedAt.Format("2006-01-02 15:04"))
	}
	return w.Flush()
}

// printJobDetail prints a single job in text format.
func printJobDetail(j *scrape.Job) {
	fmt.Printf("Job %s\n", j.ID)
	fmt.Printf("  Platform:  %s\n", j.Platform)
	fmt.Printf("  Type:      %s\n", j.Type)
	fmt.Printf("  Status:    %s\n", j.Status)
	if j.Params.City != "" {
		fmt.Printf("  City:      %s\n", j.Params.City)
	}
	if j.Params.MaxPages > 0 {
		fmt.Printf("  Pages:     %d\n", j.Params.MaxPages)
	}
	if j.StartedAt != nil {
		fmt.Printf("  Started:   %s\n", j.StartedAt.Format("2006-01-02 15:04:05"))
	}
	if j.CompletedAt != nil {
		fmt.Printf("  Completed: %s\n", j.CompletedAt.Format("2006-01-02 15:04:05"))
	}
	fmt.Printf("  Found:     %d (new %d, updated %d, skipped %d)\n",
		j.ListingsFound, j.ListingsNew, j.ListingsUpdated, j.ListingsSkipped)
	if j.ErrorMessage != "" {
		fmt.Printf("  Error:     %s\n", j.ErrorMessage)
	}
}

// printListingTable prints listings in a tab-aligned table.
func printListingTable(listings []*listing.Listing) error {
	if len(listings) == 0 {
		fmt.Println("No listings found.")
		return nil
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "ID\tPLATFORM\tTITLE\tCITY\tTYPE\tPRICE\tHOST\tACTIVE")
	for _, l := range listings {
		price := "—"
		if l.PricePerNight != nil {
			price = fmt.Sprintf("%.0f", *l.PricePerNight)
		}
		host := "—"
		if l.HostName != nil && *l.HostName != "" {
			host = *l.HostName
		}
		active := "yes"
		if !l.IsActive {
			active = "no"
		}
		fmt.Fprintf(w, "%d\t%s\t%s\t%s\t%s\t%s\t%s\t%s\n",
			l.ID, l.Platform, truncate(l.Title, 40), l.City, l.PropertyType,
			price, host, active)
	}
	return w.Flush()
}

// printMatchTable prints match results in a tab-aligned table.
func printMatchTable(results []*match.Result) error {
	if len(results) == 0 {
		fmt.Println("No matches found.")
		return nil
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "ID\tLISTING\tPROPERTY\tTIER\tSCORE\tSTATUS")
	for _, r := range results {
		fmt.Fprintf(w, "%d\t%d\t%d\t%s\t%.3f\t%s\n",
			r.ID, r.ScrapedListingID, r.RegisteredPropertyID,
			r.MatchType, r.Score, r.Status)
	}
	return w.Flush()
}

// printReport prints a compliance report in text format.
func printReport(r *compliance.Report) {
	fmt.Printf("Compliance report — %s (%s)\n",
		r.City, r.GeneratedAt.Format("2006-01-02 15:04"))
	fmt.Printf("  Listings:       %d\n", r.TotalListings)
	fmt.Printf("  Registered:     %d\n", r.Registered)
	fmt.Printf("  Unregistered:   %d\n", r.Unregistered)
	fmt.Printf("  Compliance:     %.1f%%\n", r.ComplianceRate*100)
	fmt.Printf("  Match tiers:    exact %d, probable %d, possible %d, none %d\n",
		r.MatchExact, r.MatchProbable, r.MatchPossible, r.MatchNone)
	fmt.Printf("  Est. tax loss:  %.0f XOF/year\n", r.EstimatedTaxLossXOF)
	fmt.Printf("  Data quality:   %.0f/100\n", r.AvgQualityScore)

	if len(r.ByPlatform) > 0 {
		fmt.Println("  By platform:")
		for platform, bp := range r.ByPlatform {
			fmt.Printf("    %-12s %d listings, %d registered\n", platform, bp.Total, bp.Registered)
		}
	}

	if len(r.ByNeighborhood) > 0 {
		fmt.Println("  By neighborhood:")
		for _, nb := range r.ByNeighborhood {
			fmt.Printf("    %-16s %d listings, %d registered\n", nb.Neighborhood, nb.Total, nb.Registered)
		}
	}

	if len(r.Flagged) > 0 {
		fmt.Printf("  Flagged (%d):\n", len(r.Flagged))
		for _, fl := range r.Flagged {
			flags := make([]string, len(fl.Flags))
			for i, f := range fl.Flags {
				flags[i] = string(f)
			}
			fmt.Printf("    #%d %s [%s] %s\n",
				fl.ListingID, truncate(fl.Title, 40), fl.Severity, strings.Join(flags, ", "))
		}
	}

	if len(r.Recommendations) > 0 {
		fmt.Println("  Recommendations:")
		for _, rec := range r.Recommendations {
			fmt.Printf("    - %s\n", rec)
		}
	}
}

func truncate(s string, max int) string {
	if len(s) <= max {
		return s
	}
	return s[:max-3] + "..."
}
