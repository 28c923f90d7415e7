package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"
)

type Subscription struct {
	ID               int64
	Email            string
	Categories       []string
	UnsubscribeToken string
	Active           bool
	SubscribedAt     time.Time
	UpdatedAt        time.Time
	IPAddress        string
	UserAgent        string
}

type SubscribeRequest struct {
	Email      string
	Categories []string
	IPAddress  string
	UserAgent  string
}

type UpsertStatus string

const (
	UPSERT_CREATED      UpsertStatus = "created"
	UPSERT_UPDATED      UpsertStatus = "updated"
	UPSERT_RESUBSCRIBED UpsertStatus = "resubscribed"
)

type UpsertResult struct {
	Status       UpsertStatus
	Subscription Subscription
	// PreviousCategories is nil for newly created subscriptions.
	PreviousCategories []string
}

const subscriptionColumns = `id, email, categories, unsubscribe_token, is_active,
	subscribed_at, updated_at, ip_address, user_agent`

func scanSubscription(row scanner) (Subscription, error) {
	var (
		sub          Subscription
		categories   string
		subscribedAt string
		updatedAt    string
		ip           sql.NullString
		userAgent    sql.NullString
	)
	err := row.Scan(
		&sub.ID, &sub.Email, &categories, &sub.UnsubscribeToken, &sub.Active,
		&subscribedAt, &updatedAt, &ip, &userAgent,
	)
	if err != nil {
		return Subscription{}, err
	}
	err = json.Unmarshal([]byte(categories), &sub.Categories)
	if err != nil {
		return Subscription{}, fmt.Errorf("decode categories: %w", err)
	}
	sub.SubscribedAt, err = parseTime(subscribedAt)
	if err != nil {
		return Subscription{}, err
	}
	sub.UpdatedAt, err = parseTime(updatedAt)
	if err != nil {
		return Subscription{}, err
	}
	sub.IPAddress = ip.String
	sub.UserAgent = userAgent.String
	return sub, nil
}

// UpsertSubscription creates a subscription for an email, or replaces the
// categories of an existing one. Inactive subscriptions are reactivated with
// a fresh unsubscribe token.
func (s Store) UpsertSubscription(ctx context.Context, req SubscribeRequest) (UpsertResult, error) {
	categories, err := json.Marshal(req.Categories)
	if err != nil {
		return UpsertResult{}, s.broken("upsert subscription", err)
	}
	now := formatTime(s.time.Now())

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return UpsertResult{}, s.broken("upsert subscription", err)
	}
	defer tx.Rollback()

	existing, err := scanSubscription(tx.QueryRowContext(
		ctx,
		"select "+subscriptionColumns+" from subscriptions where email = ?",
		req.Email,
	))
	found := true
	if errors.Is(err, sql.ErrNoRows) {
		found = false
	} else if err != nil {
		return UpsertResult{}, s.broken("upsert subscription", err)
	}

	var status UpsertStatus
	var previous []string
	switch {
	case !found:
		status = UPSERT_CREATED
		token, err := s.token()
		if err != nil {
			return UpsertResult{}, s.broken("upsert subscription", err)
		}
		_, err = tx.ExecContext(
			ctx,
			`insert into subscriptions (
				email, categories, unsubscribe_token, is_active,
				subscribed_at, updated_at, ip_address, user_agent
			) values (?, ?, ?, 1, ?, ?, ?, ?)`,
			req.Email, string(categories), token, now, now,
			nullString(req.IPAddress), nullString(req.UserAgent),
		)
		if err != nil {
			return UpsertResult{}, s.broken("upsert subscription", err)
		}
	case existing.Active:
		status = UPSERT_UPDATED
		previous = existing.Categories
		_, err = tx.ExecContext(
			ctx,
			`update subscriptions
			set categories = ?, updated_at = ?, ip_address = ?, user_agent = ?
			where id = ?`,
			string(categories), now,
			nullString(req.IPAddress), nullString(req.UserAgent),
			existing.ID,
		)
		if err != nil {
			return UpsertResult{}, s.broken("upsert subscription", err)
		}
	default:
		status = UPSERT_RESUBSCRIBED
		previous = existing.Categories
		token, err := s.token()
		if err != nil {
			return UpsertResult{}, s.broken("upsert subscription", err)
		}
		_, err = tx.ExecContext(
			ctx,
			`update subscriptions
			set categories = ?, unsubscribe_token = ?, is_active = 1,
				subscribed_at = ?, updated_at = ?, ip_address = ?, user_agent = ?
			where id = ?`,
			string(categories), token, now, now,
			nullString(req.IPAddress), nullString(req.UserAgent),
			existing.ID,
		)
		if err != nil {
			return UpsertResult{}, s.broken("upsert subscription", err)
		}
	}

	sub, err := scanSubscription(tx.QueryRowContext(
		ctx,
		"select "+subscriptionColumns+" from subscriptions where email = ?",
		req.Email,
	))
	if err != nil {
		return UpsertResult{}, s.broken("upsert subscription", err)
	}
	err = tx.Commit()
	if err != nil {
		return UpsertResult{}, s.broken("upsert subscription", err)
	}

	s.tel.ReportDebug("upserted subscription", sub.ID, status)
	return UpsertResult{
		Status:             status,
		Subscription:       sub,
		PreviousCategories: previous,
	}, nil
}

// DeactivateSubscription deactivates the active subscription owning token.
func (s Store) DeactivateSubscription(ctx context.Context, token string) (Subscription, error) {
	if token == "" {
		return Subscription{}, ErrNotFound
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return Subscription{}, s.broken("deactivate subscription", err)
	}
	defer tx.Rollback()

	sub, err := scanSubscription(tx.QueryRowContext(
		ctx,
		"select "+subscriptionColumns+" from subscriptions where unsubscribe_token = ? and is_active = 1",
		token,
	))
	if errors.Is(err, sql.ErrNoRows) {
		return Subscription{}, ErrNotFound
	}
	if err != nil {
		return Subscription{}, s.broken("deactivate subscription", err)
	}

	now := s.time.Now()
	_, err = tx.ExecContext(
		ctx,
		"update subscriptions set is_active = 0, updated_at = ? where id = ?",
		formatTime(now), sub.ID,
	)
	if err != nil {
		return Subscription{}, s.broken("deactivate subscription", err)
	}
	err = tx.Commit()
	if err != nil {
		return Subscription{}, s.broken("deactivate subscription", err)
	}

	sub.Active = false
	sub.UpdatedAt = now.UTC()
	return sub, nil
}

// ActiveSubscriptions lists every active subscription ordered by id.
func (s Store) ActiveSubscriptions(ctx context.Context) ([]Subscription, error) {
	rows, err := s.db.QueryContext(
		ctx,
		"select "+subscriptionColumns+" from subscriptions where is_active = 1 order by id",
	)
	if err != nil {
		return nil, s.broken("active subscriptions", err)
	}
	defer rows.Close()

	var subs []Subscription
	for rows.Next() {
		sub, err := scanSubscription(rows)
		if err != nil {
			// keep the rest of the subscribers reachable
			s.tel.ReportWarning(report_store_decode, err)
			continue
		}
		subs = append(subs, sub)
	}
	err = rows.Err()
	if err != nil {
		return nil, s.broken("active subscriptions", err)
	}
	return subs, nil
}

// SubscriptionByEmail returns the subscription of an email, active or not.
func (s Store) SubscriptionByEmail(ctx context.Context, email string) (Subscription, error) {
	sub, err := scanSubscription(s.db.QueryRowContext(
		ctx,
		"select "+subscriptionColumns+" from subscriptions where email = ?",
		email,
	))
	if errors.Is(err, sql.ErrNoRows) {
		return Subscription{}, ErrNotFound
	}
	if err != nil {
		return Subscription{}, s.broken("subscription by email", err)
	}
	return sub, nil
}
