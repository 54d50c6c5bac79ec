package models

import (
	"database/sql/driver"
	"encoding/json"
	"fmt"

	"github.com/benzaiten/metrics-gate/pkg/constants"
)

// KeyRecord is the external store's entry for one API key. The gate reads it,
// never mutates it. Expiration is optional: an empty ExpirationDateUTC means
// the key never expires.
type KeyRecord struct {
	APIKey            string        `gorm:"column:api_key;primaryKey" json:"api_key"`
	PubKey            []byte        `gorm:"column:pub_key" json:"pub_key"`
	LocationGet       LocationGrant `gorm:"column:location_get;type:text" json:"location_get"`
	LocationPut       LocationGrant `gorm:"column:location_put;type:text" json:"location_put"`
	ExpirationDateUTC string        `gorm:"column:expiration_date_utc" json:"expiration_date_utc,omitempty"`
}

// TableName fixes the store table name for gorm.
func (KeyRecord) TableName() string {
	return "key_records"
}

// Grant selects the location attribute for a method. The caller has already
// restricted method to GET or PUT.
func (r *KeyRecord) Grant(method string) LocationGrant {
	if method == constants.MethodGet {
		return r.LocationGet
	}
	return r.LocationPut
}

// LocationGrant mirrors the store's per-method location attribute: either a
// single scalar (possibly the wildcard) or an explicit set of location names.
// A grant with neither shape is malformed and must surface as a server fault,
// never as a silent pass.
type LocationGrant struct {
	Scalar *string
	Set    []string
}

// ScalarGrant builds a scalar grant.
func ScalarGrant(v string) LocationGrant {
	return LocationGrant{Scalar: &v}
}

// SetGrant builds a set grant.
func SetGrant(locations ...string) LocationGrant {
	return LocationGrant{Set: locations}
}

// IsMalformed reports a grant that is neither scalar nor set, which includes
// a missing attribute.
func (g LocationGrant) IsMalformed() bool {
	return g.Scalar == nil && g.Set == nil
}

// grantDoc is the persisted JSON shape: {"s": "..."} or {"ss": [...]}.
// Mirrors the scalar/set attribute split of the upstream record schema.
type grantDoc struct {
	S  *string  `json:"s,omitempty"`
	SS []string `json:"ss,omitempty"`
}

// MarshalJSON encodes the grant in its persisted shape.
func (g LocationGrant) MarshalJSON() ([]byte, error) {
	return json.Marshal(grantDoc{S: g.Scalar, SS: g.Set})
}

// UnmarshalJSON decodes the persisted shape. Unknown shapes decode to a
// malformed grant rather than failing, so the engine can answer 500.
func (g *LocationGrant) UnmarshalJSON(data []byte) error {
	var doc grantDoc
	if err := json.Unmarshal(data, &doc); err != nil {
		return err
	}
	g.Scalar = doc.S
	g.Set = doc.SS
	return nil
}

// Value implements driver.Valuer: grants persist as JSON text.
func (g LocationGrant) Value() (driver.Value, error) {
	data, err := json.Marshal(g)
	if err != nil {
		return nil, err
	}
	return string(data), nil
}

// Scan implements sql.Scanner.
func (g *LocationGrant) Scan(src interface{}) error {
	switch v := src.(type) {
	case nil:
		g.Scalar, g.Set = nil, nil
		return nil
	case []byte:
		return json.Unmarshal(v, g)
	case string:
		return json.Unmarshal([]byte(v), g)
	default:
		return fmt.Errorf("cannot scan %T into LocationGrant", src)
	}
}
