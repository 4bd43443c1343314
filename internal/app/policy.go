package app

import (
	"context"

	"sleepbot/internal/delivery"
	"sleepbot/internal/storage"
	logx "sleepbot/pkg/logx"
)

// watchUnreachable subscribes to delivery outcomes and turns off a user's
// notification kind after a permanently unreachable recipient (blocked the
// bot, deleted the account). Keeps the pipeline itself free of store writes
// beyond the notification log.
func (a *App) watchUnreachable() func() {
	events, unsub := a.bus.Subscribe(16)
	log := a.log.With(logx.String("comp", "policy"))

	a.sup.Go0("policy.unreachable", func(ctx context.Context) {
		for {
			select {
			case <-ctx.Done():
				return
			case ev, ok := <-events:
				if !ok {
					return
				}
				if ev.Type != delivery.EventFailed {
					continue
				}
				de, ok := ev.Data.(delivery.Event)
				if !ok || !de.Unreachable {
					continue
				}
				if err := a.store.SetPreference(ctx, de.UserID, de.Kind, false); err != nil {
					log.Error("disabling notifications failed",
						logx.Int64("user", de.UserID), logx.String("kind", string(de.Kind)), logx.Err(err))
					continue
				}
				log.Info("notifications disabled, recipient unreachable",
					logx.Int64("user", de.UserID), logx.String("kind", string(de.Kind)))
			}
		}
	})
	return unsub
}

// RegisterUser stores (or refreshes) a user and seeds every notification kind
// enabled, so a fresh account starts receiving reminders without touching
// settings first.
func (a *App) RegisterUser(ctx context.Context, u storage.User) error {
	if err := a.store.UpsertUser(ctx, u); err != nil {
		return err
	}
	for _, kind := range storage.AllKinds() {
		pref, err := a.store.GetPreference(ctx, u.ID, kind)
		if err != nil {
			return err
		}
		if pref != nil {
			continue
		}
		if err := a.store.SetPreference(ctx, u.ID, kind, true); err != nil {
			return err
		}
	}
	return nil
}
