package commands

import (
	"context"
	"database/sql"
	"fmt"

	"visabulletin/internal/bulletin"
	"visabulletin/internal/compare"
	"visabulletin/internal/fetch"
	"visabulletin/internal/notify"
	"visabulletin/internal/store"
	"visabulletin/internal/tracker"
)

// openStore opens and migrates the configured database, the caller closes
// the returned db.
func openStore(ctx context.Context) (store.Store, *sql.DB, error) {
	db, err := app.config.Database.OpenDB()
	if err != nil {
		return store.Store{}, nil, err
	}
	s := store.New(db, app.tel, app.time)
	err = s.Migrate(ctx, app.config.Database.IsRemote())
	if err != nil {
		db.Close()
		return store.Store{}, nil, err
	}
	return s, db, nil
}

func newExtractor() bulletin.Extractor {
	return bulletin.NewExtractor(app.tel, app.time)
}

func newEngine() compare.Engine {
	return compare.NewEngine(app.tel, app.time)
}

func newFetchClient() (fetch.Client, error) {
	return fetch.NewClient(app.config.Fetch(), app.tel, app.time)
}

// newSender previews to files with printLocal and sends over SMTP otherwise.
func newSender(printLocal bool) (notify.Sender, error) {
	if printLocal {
		return notify.NewPreviewSender(app.config.PreviewDir, app.tel, app.time), nil
	}
	if app.config.SMTP.Server == "" || app.config.SMTP.From == "" {
		return nil, fmt.Errorf("smtp.server and smtp.from must be configured to send email, use --print-local to preview instead")
	}
	return notify.NewSMTPSender(app.config.SMTP, app.tel), nil
}

func newNotifier(s store.Store, printLocal bool) (notify.Notifier, error) {
	sender, err := newSender(printLocal)
	if err != nil {
		return notify.Notifier{}, err
	}
	return notify.NewNotifier(s, sender, notify.NewComposer(app.config.AppBaseURL), app.tel), nil
}

func newTracker(s store.Store, notifier tracker.Notifier) (tracker.Tracker, error) {
	client, err := newFetchClient()
	if err != nil {
		return tracker.Tracker{}, err
	}
	return tracker.New(client, newExtractor(), newEngine(), s, notifier, app.tel, app.time), nil
}
