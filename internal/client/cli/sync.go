package cli

import (
	"context"
	"errors"
	"fmt"
	"text/tabwriter"
	"time"

	"github.com/dmitrijs2005/homekeeper/internal/client/models"
	"github.com/dmitrijs2005/homekeeper/internal/eventstream"
)

var errOffline = errors.New("server is not reachable, changes stay queued")

func (a *App) Sync(ctx context.Context) error {
	if a.mode() != ModeOnline {
		return errOffline
	}
	err := a.scheduler.SyncNow(ctx)
	a.printReports()
	if err != nil {
		return err
	}
	fmt.Fprintln(a.output(), "Sync complete")
	return nil
}

func (a *App) Status(ctx context.Context) error {
	st := a.scheduler.Status()
	w := a.output()

	fmt.Fprintf(w, "Mode: %s\n", a.mode())
	if home, err := a.guard.ActiveHome(ctx); err == nil && home != "" {
		fmt.Fprintf(w, "Active home: %s\n", home)
	}
	if st.LastRun.IsZero() {
		fmt.Fprintln(w, "Never synced")
		return nil
	}
	fmt.Fprintf(w, "Last run: %s\n", st.LastRun.Format(time.DateTime))
	if !st.LastSuccess.IsZero() {
		fmt.Fprintf(w, "Last success: %s\n", st.LastSuccess.Format(time.DateTime))
	}
	if st.LastErr != nil {
		fmt.Fprintf(w, "Last error (%d in a row): %s\n", st.Failures, st.LastErr)
	}
	a.printReports()
	return nil
}

func (a *App) printReports() {
	reports := a.scheduler.Status().Reports
	if len(reports) == 0 {
		return
	}
	tw := tabwriter.NewWriter(a.output(), 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "KIND\tHOME\tPUSHED\tACKED\tCONFLICTS\tPULLED\tDELETED\tERROR")
	for _, r := range reports {
		errText := ""
		if err := errors.Join(r.PushErr, r.PullErr); err != nil {
			errText = err.Error()
		}
		fmt.Fprintf(tw, "%s\t%s\t%d\t%d\t%d\t%d\t%d\t%s\n",
			r.Kind, r.HomeID, r.Pushed, r.Acked, r.Conflicts, r.Pulled, r.Deleted, errText)
	}
	tw.Flush()
}

// watchEvents reports home changes made by background syncs, such as a
// reassigned home id or a switch of the active home.
func (a *App) watchEvents(ctx context.Context) {
	ch, cancel, err := a.events.Subscribe(ctx, eventstream.Topics(models.TopicActiveHome, string(models.KindHome)))
	if err != nil {
		return
	}
	defer cancel()
	reportEvents(ch)
}

func reportEvents(ch <-chan eventstream.Event[models.Notification]) {
	for evt := range ch {
		if msg := describe(evt.Payload); msg != "" {
			printlnFn(msg)
		}
	}
}

func describe(n models.Notification) string {
	switch n.Op {
	case models.OpActivated:
		return fmt.Sprintf("Active home is now %s", n.HomeID)
	case models.OpReassigned:
		if len(n.IDs) == 2 {
			return fmt.Sprintf("Home %s was renumbered to %s by the server", n.IDs[0], n.IDs[1])
		}
	case models.OpSynced:
		if n.Err != nil {
			return fmt.Sprintf("Home sync failed: %s", n.Err)
		}
	}
	return ""
}
