// Package service renders, publishes and exports dispatcher reports
package service

import (
	"fmt"
	"io"
	"strconv"
	"text/tabwriter"
	"time"

	"sarbatch/internal/services/scheduler/domain"

	"github.com/dustin/go-humanize"
)

const timeLayout = "2006-01-02 15:04:05Z"

// Render writes the report as an aligned text table followed by a totals line
func Render(w io.Writer, r domain.Report) error {
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintf(tw, "run %s  started %s  took %s\n\n", r.RunID, stamp(r.Started), r.Finished.Sub(r.Started).Round(time.Millisecond))
	fmt.Fprintln(tw, "SITE\tSTATUS\tCUTOFF\tCANDIDATES\tNEW\tACCEPTED\tFAILED\tTRIES\tELAPSED\tDETAIL")
	for _, res := range r.Results {
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\t%s\t%s\t%d\t%s\t%s\n",
			res.SiteID,
			res.Status(),
			stamp(res.Cutoff),
			humanize.Comma(int64(res.Candidates)),
			humanize.Comma(int64(res.Unprocessed)),
			humanize.Comma(int64(res.Accepted)),
			humanize.Comma(int64(res.Failed)),
			res.Attempts,
			res.Elapsed.Round(time.Millisecond),
			detail(res),
		)
	}
	t := r.Totals()
	fmt.Fprintf(tw, "\n%s sites: %d ok, %d skipped, %d failed; %s scenes accepted, %s scene failures\n",
		humanize.Comma(int64(t.Sites)), t.OK, t.Skipped, t.Failed,
		humanize.Comma(int64(t.Accepted)), humanize.Comma(int64(t.SceneFailures)))
	return tw.Flush()
}

func stamp(t time.Time) string {
	if t.IsZero() {
		return "-"
	}
	return t.UTC().Format(timeLayout)
}

func detail(r domain.SiteResult) string {
	switch {
	case r.Err != nil:
		return r.Err.Error()
	case r.Skipped:
		return r.SkipReason
	case r.Failed > 0:
		return strconv.Itoa(r.Failed) + " of " + strconv.Itoa(r.Accepted) + " scenes failed"
	default:
		return "-"
	}
}
