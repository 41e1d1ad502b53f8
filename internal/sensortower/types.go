package sensortower

import (
	"bytes"
	"encoding/json"
)

// AppID identifies one application. Unified identifiers are hex strings,
// platform identifiers are numeric for iOS and package names for Android,
// so the type decodes from either a JSON string or a JSON number.
type AppID string

func (id *AppID) UnmarshalJSON(data []byte) error {
	trimmed := bytes.TrimSpace(data)
	if len(trimmed) == 0 || bytes.Equal(trimmed, []byte("null")) {
		*id = ""
		return nil
	}

	if trimmed[0] == '"' {
		var s string
		if err := json.Unmarshal(trimmed, &s); err != nil {
			return err
		}
		*id = AppID(s)
		return nil
	}

	var n json.Number
	if err := json.Unmarshal(trimmed, &n); err != nil {
		return err
	}
	*id = AppID(n.String())
	return nil
}

// EntityFragment carries one platform's raw metric contribution. Metric keys
// are prefixed by the requested measure (units_absolute) with an unprefixed
// fallback used by other response variants; absent values count as zero.
type EntityFragment struct {
	UnitsAbsolute         *float64 `json:"units_absolute"`
	PlainAbsolute         *float64 `json:"absolute"`
	ComparisonUnits       *float64 `json:"comparison_units_value"`
	UnitsDelta            *float64 `json:"units_delta"`
	PlainDelta            *float64 `json:"delta"`
	UnitsTransformedDelta *float64 `json:"units_transformed_delta"`
	PlainTransformedDelta *float64 `json:"transformed_delta"`
}

// Absolute returns the fragment's absolute value for the current window.
func (f EntityFragment) Absolute() float64 {
	return coalesce(f.UnitsAbsolute, f.PlainAbsolute)
}

// Comparison returns the fragment's value for the preceding window.
func (f EntityFragment) Comparison() float64 {
	return coalesce(f.ComparisonUnits)
}

// Delta returns the fragment's absolute change between the two windows.
func (f EntityFragment) Delta() float64 {
	return coalesce(f.UnitsDelta, f.PlainDelta)
}

// TransformedDelta returns the fragment's pre-computed relative change.
func (f EntityFragment) TransformedDelta() float64 {
	return coalesce(f.UnitsTransformedDelta, f.PlainTransformedDelta)
}

func coalesce(values ...*float64) float64 {
	for _, v := range values {
		if v != nil {
			return *v
		}
	}
	return 0
}

// RankedItem is one entry from a ranking query. Metric values arrive on
// per-platform entity fragments; single-platform responses carry them on the
// item itself, so the embedded fragment doubles as that implicit fragment.
type RankedItem struct {
	AppID    AppID            `json:"app_id"`
	Entities []EntityFragment `json:"entities"`

	EntityFragment
}

// AdvertiserApp is one entry from the advertiser intel feed, which carries
// display fields inline alongside the share-of-voice estimate.
type AdvertiserApp struct {
	AppID         AppID   `json:"app_id"`
	Name          string  `json:"name"`
	HumanizedName string  `json:"humanized_name"`
	PublisherName string  `json:"publisher_name"`
	IconURL       string  `json:"icon_url"`
	ShareOfVoice  float64 `json:"sov"`
}

// DisplayName returns the feed's best display name for the app.
func (a AdvertiserApp) DisplayName() string {
	if a.Name != "" {
		return a.Name
	}
	return a.HumanizedName
}

// SubApp is one platform-specific entry of a unified app.
type SubApp struct {
	OS   string `json:"os"`
	ID   AppID  `json:"id"`
	Name string `json:"name"`
}

// UnifiedApp is the cross-platform metadata record for one application.
type UnifiedApp struct {
	Name                 string   `json:"name"`
	IconURL              string   `json:"icon_url"`
	UnifiedPublisherName string   `json:"unified_publisher_name"`
	PublisherName        string   `json:"publisher_name"`
	SubApps              []SubApp `json:"sub_apps"`
}

// SubAppByOS returns the first sub-app for the given operating system.
func (u *UnifiedApp) SubAppByOS(os string) *SubApp {
	for i := range u.SubApps {
		if u.SubApps[i].OS == os {
			return &u.SubApps[i]
		}
	}
	return nil
}

// PlatformApp is a platform-specific detail record.
type PlatformApp struct {
	Description DescriptionPayload `json:"description"`
}

// DescriptionPayload is the description block of a platform detail response:
// usually an object of prioritised text fields, occasionally a bare string.
type DescriptionPayload struct {
	Summary  string
	Subtitle string
	Short    string
	Full     string
	Plain    string // set when the payload was a bare string
}

func (d *DescriptionPayload) UnmarshalJSON(data []byte) error {
	trimmed := bytes.TrimSpace(data)
	if len(trimmed) == 0 || bytes.Equal(trimmed, []byte("null")) {
		*d = DescriptionPayload{}
		return nil
	}

	if trimmed[0] == '"' {
		*d = DescriptionPayload{}
		return json.Unmarshal(trimmed, &d.Plain)
	}

	var obj struct {
		AppSummary       string `json:"app_summary"`
		Subtitle         string `json:"subtitle"`
		ShortDescription string `json:"short_description"`
		FullDescription  string `json:"full_description"`
	}
	if err := json.Unmarshal(trimmed, &obj); err != nil {
		return err
	}

	*d = DescriptionPayload{
		Summary:  obj.AppSummary,
		Subtitle: obj.Subtitle,
		Short:    obj.ShortDescription,
		Full:     obj.FullDescription,
	}
	return nil
}
