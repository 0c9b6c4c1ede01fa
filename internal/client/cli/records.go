package cli

import (
	"context"
	"errors"
	"fmt"
	"text/tabwriter"

	"github.com/dmitrijs2005/homekeeper/internal/client/models"
	"github.com/dmitrijs2005/homekeeper/internal/client/repositories/records"
)

var errHomeKind = errors.New("use the home command to manage homes")

func (a *App) repo(kind string) (*records.Repository, error) {
	k, err := models.ParseKind(kind)
	if err != nil {
		return nil, err
	}
	if k == models.KindHome {
		return nil, errHomeKind
	}
	r, ok := a.repos[k]
	if !ok {
		return nil, fmt.Errorf("unknown entity kind %q", kind)
	}
	return r, nil
}

// activeHome returns the active home id, creating a default home first if
// there is none.
func (a *App) activeHome(ctx context.Context) (string, error) {
	home, err := a.guard.EnsureDefaultContainer(ctx)
	if err != nil {
		return "", err
	}
	return home.ID, nil
}

func syncState(r *models.Record) string {
	switch {
	case r.PendingCreate:
		return "new"
	case r.PendingDelete:
		return "deleting"
	case r.PendingUpdate:
		return "modified"
	default:
		return "synced"
	}
}

func (a *App) Add(ctx context.Context, kind string) error {
	repo, err := a.repo(kind)
	if err != nil {
		return err
	}
	homeID, err := a.activeHome(ctx)
	if err != nil {
		return err
	}

	payload, err := readForm(a.reader, a.output(), repo.Kind())
	if err != nil {
		return err
	}
	rec, err := repo.Create(ctx, homeID, payload)
	if err != nil {
		return err
	}

	fmt.Fprintf(a.output(), "Added %s %s\n", repo.Kind(), rec.ID)
	return nil
}

func (a *App) List(ctx context.Context, kind string) error {
	repo, err := a.repo(kind)
	if err != nil {
		return err
	}
	homeID, err := a.activeHome(ctx)
	if err != nil {
		return err
	}

	recs, err := repo.List(ctx, homeID, false)
	if err != nil {
		return err
	}
	if len(recs) == 0 {
		fmt.Fprintf(a.output(), "No %s records\n", repo.Kind())
		return nil
	}

	tw := tabwriter.NewWriter(a.output(), 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "ID\tNAME\tVERSION\tSTATE")
	for _, r := range recs {
		fmt.Fprintf(tw, "%s\t%s\t%d\t%s\n", r.ID, summary(r.Payload), r.Version, syncState(r))
	}
	return tw.Flush()
}

// Edit prompts for every field of the record. Fields left empty keep their
// current value.
func (a *App) Edit(ctx context.Context, kind, id string) error {
	repo, err := a.repo(kind)
	if err != nil {
		return err
	}
	homeID, err := a.activeHome(ctx)
	if err != nil {
		return err
	}

	rec, err := repo.Get(ctx, homeID, id)
	if err != nil {
		return err
	}
	fmt.Fprintf(a.output(), "Current: %s\n(leave a field empty to keep it)\n", rec.Payload)

	patch, err := readForm(a.reader, a.output(), repo.Kind())
	if err != nil {
		return err
	}
	if string(patch) == "{}" {
		fmt.Fprintln(a.output(), "Nothing changed")
		return nil
	}
	if _, err := repo.Update(ctx, homeID, id, patch); err != nil {
		return err
	}

	fmt.Fprintf(a.output(), "Updated %s %s\n", repo.Kind(), id)
	return nil
}

func (a *App) Remove(ctx context.Context, kind, id string) error {
	repo, err := a.repo(kind)
	if err != nil {
		return err
	}
	homeID, err := a.activeHome(ctx)
	if err != nil {
		return err
	}

	ok, err := repo.Delete(ctx, homeID, id)
	if err != nil {
		return err
	}
	if !ok {
		return records.ErrNotFound
	}

	fmt.Fprintf(a.output(), "Removed %s %s\n", repo.Kind(), id)
	return nil
}
