package compare

import (
	"encoding/json"
	"fmt"
	"time"

	"visabulletin/internal/bulletin"
)

type fieldChangeJSON struct {
	Category  string             `json:"category"`
	Country   string             `json:"country"`
	Previous  bulletin.DateValue `json:"previous"`
	Current   bulletin.DateValue `json:"current"`
	Direction Direction          `json:"direction"`
}

type resultJSON struct {
	PreviousBulletinDate string            `json:"previous_bulletin_date"`
	CurrentBulletinDate  string            `json:"current_bulletin_date"`
	ComparedAt           time.Time         `json:"compared_at"`
	HasChanges           bool              `json:"has_changes"`
	CategoriesAdded      int               `json:"categories_added"`
	CategoriesRemoved    int               `json:"categories_removed"`
	CategoriesChanged    int               `json:"categories_changed"`
	TotalFieldChanges    int               `json:"total_field_changes"`
	AddedCategories      []string          `json:"added_categories"`
	RemovedCategories    []string          `json:"removed_categories"`
	Diff                 []fieldChangeJSON `json:"diff"`
}

func (r Result) MarshalJSON() ([]byte, error) {
	out := resultJSON{
		PreviousBulletinDate: r.PreviousPeriod,
		CurrentBulletinDate:  r.CurrentPeriod,
		ComparedAt:           r.ComparedAt,
		HasChanges:           r.HasChanges(),
		CategoriesAdded:      len(r.Added),
		CategoriesRemoved:    len(r.Removed),
		CategoriesChanged:    r.ChangedCategories,
		TotalFieldChanges:    r.TotalFieldChanges(),
		AddedCategories:      r.Added,
		RemovedCategories:    r.Removed,
		Diff:                 make([]fieldChangeJSON, len(r.Changes)),
	}
	if out.AddedCategories == nil {
		out.AddedCategories = []string{}
	}
	if out.RemovedCategories == nil {
		out.RemovedCategories = []string{}
	}
	for i, c := range r.Changes {
		out.Diff[i] = fieldChangeJSON(c)
	}
	return json.Marshal(out)
}

func (r *Result) UnmarshalJSON(data []byte) error {
	var decoded resultJSON
	err := json.Unmarshal(data, &decoded)
	if err != nil {
		return fmt.Errorf("comparison result: %w", err)
	}

	out := Result{
		PreviousPeriod:    decoded.PreviousBulletinDate,
		CurrentPeriod:     decoded.CurrentBulletinDate,
		ComparedAt:        decoded.ComparedAt,
		ChangedCategories: decoded.CategoriesChanged,
	}
	if len(decoded.AddedCategories) > 0 {
		out.Added = decoded.AddedCategories
	}
	if len(decoded.RemovedCategories) > 0 {
		out.Removed = decoded.RemovedCategories
	}
	for _, c := range decoded.Diff {
		out.Changes = append(out.Changes, FieldChange(c))
	}
	*r = out
	return nil
}
