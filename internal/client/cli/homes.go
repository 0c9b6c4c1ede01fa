package cli

import (
	"context"
	"fmt"
	"text/tabwriter"

	"github.com/dmitrijs2005/homekeeper/internal/client/models"
	"github.com/dmitrijs2005/homekeeper/internal/client/repositories/records"
	"github.com/goccy/go-json"
)

func (a *App) Homes(ctx context.Context) error {
	active, err := a.activeHome(ctx)
	if err != nil {
		return err
	}
	homes, err := a.repos[models.KindHome].List(ctx, models.AccountScope, false)
	if err != nil {
		return err
	}

	tw := tabwriter.NewWriter(a.output(), 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "\tID\tNAME\tSTATE")
	for _, h := range homes {
		if !h.IsUsable() {
			continue
		}
		mark := ""
		if h.ID == active {
			mark = "*"
		}
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\n", mark, h.ID, summary(h.Payload), syncState(h))
	}
	return tw.Flush()
}

func (a *App) AddHome(ctx context.Context) error {
	payload, err := readForm(a.reader, a.output(), models.KindHome)
	if err != nil {
		return err
	}
	var home models.Home
	if err := json.Unmarshal(payload, &home); err != nil {
		return err
	}

	rec, err := a.guard.CreateContainer(ctx, home)
	if err != nil {
		return err
	}
	fmt.Fprintf(a.output(), "Added home %s (use 'home use %s' to switch)\n", rec.ID, rec.ID)
	return nil
}

func (a *App) RenameHome(ctx context.Context, id string) error {
	homes := a.repos[models.KindHome]
	if _, err := homes.Get(ctx, models.AccountScope, id); err != nil {
		return err
	}

	patch, err := readForm(a.reader, a.output(), models.KindHome)
	if err != nil {
		return err
	}
	if string(patch) == "{}" {
		fmt.Fprintln(a.output(), "Nothing changed")
		return nil
	}
	if _, err := homes.Update(ctx, models.AccountScope, id, patch); err != nil {
		return err
	}
	fmt.Fprintf(a.output(), "Updated home %s\n", id)
	return nil
}

// RemoveHome deletes a home. Removing the active or the last home makes the
// guard pick or create another one.
func (a *App) RemoveHome(ctx context.Context, id string) error {
	ok, err := a.guard.DeleteContainer(ctx, id)
	if err != nil {
		return err
	}
	if !ok {
		return records.ErrNotFound
	}
	fmt.Fprintf(a.output(), "Removed home %s\n", id)
	return nil
}

func (a *App) UseHome(ctx context.Context, id string) error {
	if err := a.guard.SetActiveHome(ctx, id); err != nil {
		return err
	}
	fmt.Fprintf(a.output(), "Active home: %s\n", id)
	return nil
}
