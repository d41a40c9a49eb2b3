package db

import (
	"context"
	"fmt"

	"github.com/surrealdb/surrealdb.go"
	"github.com/voicecal/voicecal-go/internal/models"
)

// CreateEvent persists a materialized calendar event and returns its
// store-assigned id. The pipeline never updates an event after creation.
func (c *Client) CreateEvent(ctx context.Context, ev *models.Event) (string, error) {
	participants := ev.Participants
	if participants == nil {
		participants = []string{}
	}

	results, err := surrealdb.Query[[]models.Event](ctx, c.db, `
		CREATE event CONTENT {
			user_id: $user_id,
			calendar_id: $calendar_id,
			title: $title,
			start: $start,
			end: $end,
			location: $location,
			description: $description,
			all_day: $all_day,
			label_id: $label_id,
			participants: $participants,
			provenance: $provenance
		}
	`, map[string]any{
		"user_id":      ev.UserID,
		"calendar_id":  ev.CalendarID,
		"title":        ev.Title,
		"start":        ev.Start.UTC(),
		"end":          ev.End.UTC(),
		"location":     ev.Location,
		"description":  ev.Description,
		"all_day":      ev.AllDay,
		"label_id":     ev.LabelID,
		"participants": participants,
		"provenance":   ev.Provenance,
	})
	if err != nil {
		return "", fmt.Errorf("create event: %w", wrapQueryError(err))
	}

	if results == nil || len(*results) == 0 || len((*results)[0].Result) == 0 {
		return "", fmt.Errorf("create event: no record returned")
	}

	id, err := models.RecordIDString((*results)[0].Result[0].ID)
	if err != nil {
		return "", fmt.Errorf("create event: %w", err)
	}
	return id, nil
}

// GetEvent retrieves an event by id. Returns ErrNotFound if it does not exist.
func (c *Client) GetEvent(ctx context.Context, id string) (*models.Event, error) {
	results, err := surrealdb.Query[[]models.Event](ctx, c.db, `
		SELECT * FROM type::record("event", $id)
	`, map[string]any{"id": id})
	if err != nil {
		return nil, fmt.Errorf("get event: %w", wrapQueryError(err))
	}

	if results == nil || len(*results) == 0 || len((*results)[0].Result) == 0 {
		return nil, fmt.Errorf("get event %s: %w", id, ErrNotFound)
	}
	return &(*results)[0].Result[0], nil
}

// CountEvents returns the number of materialized events. Testing and ops.
func (c *Client) CountEvents(ctx context.Context) (int, error) {
	type countRow struct {
		Count int `json:"count"`
	}

	results, err := surrealdb.Query[[]countRow](ctx, c.db, `
		SELECT count() AS count FROM event GROUP ALL
	`, nil)
	if err != nil {
		return 0, fmt.Errorf("count events: %w", wrapQueryError(err))
	}

	if results == nil || len(*results) == 0 || len((*results)[0].Result) == 0 {
		return 0, nil
	}
	return (*results)[0].Result[0].Count, nil
}
