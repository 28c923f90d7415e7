package bulletin

import (
	"bytes"
	"encoding/json"
	"fmt"
	"time"
)

const (
	jsonCategoryKey = "visa_category"
	jsonGroupKey    = "preference_level"
)

// MarshalJSON flattens the record into {"visa_category", "preference_level",
// <date key>...}, date keys are written in sorted order.
func (r CategoryRecord) MarshalJSON() ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteByte('{')

	writeField := func(key string, value any) error {
		if buf.Len() > 1 {
			buf.WriteByte(',')
		}
		encodedKey, err := json.Marshal(key)
		if err != nil {
			return err
		}
		encodedValue, err := json.Marshal(value)
		if err != nil {
			return err
		}
		buf.Write(encodedKey)
		buf.WriteByte(':')
		buf.Write(encodedValue)
		return nil
	}

	err := writeField(jsonCategoryKey, r.Category)
	if err != nil {
		return nil, err
	}
	err = writeField(jsonGroupKey, string(r.Group))
	if err != nil {
		return nil, err
	}
	for _, key := range r.Keys() {
		if key == jsonCategoryKey || key == jsonGroupKey {
			continue
		}
		err = writeField(key, r.Dates[key])
		if err != nil {
			return nil, err
		}
	}

	buf.WriteByte('}')
	return buf.Bytes(), nil
}

func (r *CategoryRecord) UnmarshalJSON(data []byte) error {
	var fields map[string]string
	err := json.Unmarshal(data, &fields)
	if err != nil {
		return fmt.Errorf("category record: %w", err)
	}

	out := CategoryRecord{
		Category: fields[jsonCategoryKey],
		Group:    PreferenceGroup(fields[jsonGroupKey]),
		Dates:    map[string]DateValue{},
	}
	if out.Group == "" {
		out.Group = GROUP_UNKNOWN
	}
	for key, value := range fields {
		if key == jsonCategoryKey || key == jsonGroupKey {
			continue
		}
		out.Dates[key] = ParseDateValue(value)
	}

	*r = out
	return nil
}

type snapshotJSON struct {
	BulletinDate    string           `json:"bulletin_date,omitempty"`
	ExtractedAt     time.Time        `json:"extracted_at"`
	SourceURL       string           `json:"source_url,omitempty"`
	NotBulletin     bool             `json:"not_bulletin"`
	Tier            TierName         `json:"tier,omitempty"`
	TotalCategories int              `json:"total_categories"`
	Categories      []CategoryRecord `json:"categories"`
}

func (s Snapshot) MarshalJSON() ([]byte, error) {
	categories := s.Categories
	if categories == nil {
		categories = []CategoryRecord{}
	}
	return json.Marshal(snapshotJSON{
		BulletinDate:    s.BulletinDate,
		ExtractedAt:     s.ExtractedAt,
		SourceURL:       s.SourceURL,
		NotBulletin:     s.NotBulletin,
		Tier:            s.Tier,
		TotalCategories: len(categories),
		Categories:      categories,
	})
}

func (s *Snapshot) UnmarshalJSON(data []byte) error {
	var decoded snapshotJSON
	err := json.Unmarshal(data, &decoded)
	if err != nil {
		return fmt.Errorf("snapshot: %w", err)
	}
	*s = Snapshot{
		BulletinDate: decoded.BulletinDate,
		ExtractedAt:  decoded.ExtractedAt,
		SourceURL:    decoded.SourceURL,
		NotBulletin:  decoded.NotBulletin,
		Tier:         decoded.Tier,
		Categories:   decoded.Categories,
	}
	return nil
}
