package models

import (
	"fmt"
	"strings"
	"time"

	"radiowalk/backend/libs/geo"
)

// Visibility is the persisted access class of a station.
type Visibility string

const (
	VisibilityPublic  Visibility = "PUBLIC"
	VisibilityPrivate Visibility = "PRIVATE"
)

// ParseVisibility accepts PUBLIC or PRIVATE in any case.
func ParseVisibility(raw string) (Visibility, error) {
	v := Visibility(strings.ToUpper(strings.TrimSpace(raw)))
	if !v.Valid() {
		return "", NewValidationError("type must be PUBLIC or PRIVATE, got %q", raw)
	}
	return v, nil
}

// Valid reports whether v is a known visibility.
func (v Visibility) Valid() bool {
	return v == VisibilityPublic || v == VisibilityPrivate
}

// Mode selects which visibilities a nearby query covers.
type Mode uint8

const (
	ModePublic Mode = iota + 1
	ModePrivate
	ModeBoth
)

// ParseMode accepts PUBLIC, PRIVATE or BOTH in any case.
func ParseMode(raw string) (Mode, error) {
	switch strings.ToUpper(strings.TrimSpace(raw)) {
	case "PUBLIC":
		return ModePublic, nil
	case "PRIVATE":
		return ModePrivate, nil
	case "BOTH":
		return ModeBoth, nil
	default:
		return 0, NewValidationError("mode must be PUBLIC, PRIVATE or BOTH, got %q", raw)
	}
}

// Visibilities lists the station classes covered by m, public first.
func (m Mode) Visibilities() []Visibility {
	switch m {
	case ModePublic:
		return []Visibility{VisibilityPublic}
	case ModePrivate:
		return []Visibility{VisibilityPrivate}
	case ModeBoth:
		return []Visibility{VisibilityPublic, VisibilityPrivate}
	default:
		return nil
	}
}

func (m Mode) String() string {
	switch m {
	case ModePublic:
		return "PUBLIC"
	case ModePrivate:
		return "PRIVATE"
	case ModeBoth:
		return "BOTH"
	default:
		return fmt.Sprintf("Mode(%d)", uint8(m))
	}
}

// Station is a geolocated pointer to an audio stream.
type Station struct {
	ID            string     `json:"id"`
	Name          string     `json:"name"`
	Latitude      float64    `json:"latitude"`
	Longitude     float64    `json:"longitude"`
	Visibility    Visibility `json:"type"`
	Tags          string     `json:"tags,omitempty"`
	StreamLink    string     `json:"streamLink,omitempty"`
	StreamName    string     `json:"streamName,omitempty"`
	Favicon       string     `json:"favicon,omitempty"`
	Likes         int        `json:"likes"`
	OwnerID       string     `json:"ownerId"`
	SharedUserIDs []string   `json:"sharedUserIds,omitempty"`
	CreatedAt     time.Time  `json:"createdAt"`
	UpdatedAt     time.Time  `json:"updatedAt"`
}

// Point returns the station coordinate.
func (s *Station) Point() geo.Point {
	return geo.Point{Lat: s.Latitude, Lon: s.Longitude}
}

// IsOwner reports whether userID owns the station.
func (s *Station) IsOwner(userID string) bool {
	return userID != "" && s.OwnerID == userID
}

// SharedWith reports whether userID is in the sharing set.
func (s *Station) SharedWith(userID string) bool {
	if userID == "" {
		return false
	}
	for _, id := range s.SharedUserIDs {
		if id == userID {
			return true
		}
	}
	return false
}

// CanRead applies the read rule: public stations are open to everyone, private ones only to the
// owner and the sharing set. The sharing set of a public station is never consulted.
func (s *Station) CanRead(requesterID string) bool {
	if s.Visibility == VisibilityPublic {
		return true
	}
	return s.IsOwner(requesterID) || s.SharedWith(requesterID)
}

// NearbyStation is a station annotated with its distance from the query origin.
type NearbyStation struct {
	Station
	DistanceKm float64 `json:"distanceKm"`
}

// StationInput carries the caller-supplied fields of a new station.
type StationInput struct {
	Name       string     `json:"name" validate:"required"`
	Latitude   float64    `json:"latitude" validate:"min=-90,max=90"`
	Longitude  float64    `json:"longitude" validate:"min=-180,max=180"`
	Visibility Visibility `json:"type" validate:"omitempty,oneof=PUBLIC PRIVATE"`
	Tags       string     `json:"tags"`
	StreamLink string     `json:"streamLink" validate:"omitempty,url"`
	StreamName string     `json:"streamName"`
	Favicon    string     `json:"favicon" validate:"omitempty,url"`
	Likes      int        `json:"likes" validate:"min=0"`
}

// Normalize trims free text and applies the PUBLIC default.
func (in *StationInput) Normalize() {
	in.Name = strings.TrimSpace(in.Name)
	in.Tags = strings.TrimSpace(in.Tags)
	in.StreamLink = strings.TrimSpace(in.StreamLink)
	in.StreamName = strings.TrimSpace(in.StreamName)
	in.Favicon = strings.TrimSpace(in.Favicon)
	if in.Visibility == "" {
		in.Visibility = VisibilityPublic
	}
	in.Visibility = Visibility(strings.ToUpper(string(in.Visibility)))
}

// Validate checks ranges, required fields and URLs.
func (in *StationInput) Validate() error {
	if err := validateStruct(in); err != nil {
		return err
	}
	if !geo.ValidLatitude(in.Latitude) || !geo.ValidLongitude(in.Longitude) {
		return NewValidationError("coordinates out of range")
	}
	return nil
}

// Station builds an unsaved station owned by ownerID.
func (in *StationInput) Station(ownerID string) *Station {
	return &Station{
		Name:       in.Name,
		Latitude:   in.Latitude,
		Longitude:  in.Longitude,
		Visibility: in.Visibility,
		Tags:       in.Tags,
		StreamLink: in.StreamLink,
		StreamName: in.StreamName,
		Favicon:    in.Favicon,
		Likes:      in.Likes,
		OwnerID:    ownerID,
	}
}

// StationPatch is a partial update; nil fields are left untouched.
type StationPatch struct {
	Name       *string     `json:"name"`
	Latitude   *float64    `json:"latitude"`
	Longitude  *float64    `json:"longitude"`
	Visibility *Visibility `json:"type"`
	Tags       *string     `json:"tags"`
	StreamLink *string     `json:"streamLink"`
	StreamName *string     `json:"streamName"`
	Favicon    *string     `json:"favicon"`
	Likes      *int        `json:"likes"`
}

// Apply merges p into s and validates the merged result.
func (p *StationPatch) Apply(s *Station) error {
	if p.Name != nil {
		s.Name = *p.Name
	}
	if p.Latitude != nil {
		s.Latitude = *p.Latitude
	}
	if p.Longitude != nil {
		s.Longitude = *p.Longitude
	}
	if p.Visibility != nil {
		s.Visibility = *p.Visibility
	}
	if p.Tags != nil {
		s.Tags = *p.Tags
	}
	if p.StreamLink != nil {
		s.StreamLink = *p.StreamLink
	}
	if p.StreamName != nil {
		s.StreamName = *p.StreamName
	}
	if p.Favicon != nil {
		s.Favicon = *p.Favicon
	}
	if p.Likes != nil {
		s.Likes = *p.Likes
	}

	in := StationInput{
		Name:       s.Name,
		Latitude:   s.Latitude,
		Longitude:  s.Longitude,
		Visibility: s.Visibility,
		Tags:       s.Tags,
		StreamLink: s.StreamLink,
		StreamName: s.StreamName,
		Favicon:    s.Favicon,
		Likes:      s.Likes,
	}
	in.Normalize()
	if err := in.Validate(); err != nil {
		return err
	}

	s.Name, s.Visibility, s.Tags = in.Name, in.Visibility, in.Tags
	s.StreamLink, s.StreamName, s.Favicon = in.StreamLink, in.StreamName, in.Favicon
	return nil
}

// RadioSource is the stream-only patch.
type RadioSource struct {
	StreamLink string `json:"streamLink"`
	StreamName string `json:"streamName"`
	Favicon    string `json:"favicon"`
}

// Patch converts the radio source into a StationPatch. The stream link is mandatory here.
func (r RadioSource) Patch() (*StationPatch, error) {
	link := strings.TrimSpace(r.StreamLink)
	if link == "" {
		return nil, NewValidationError("streamLink is required")
	}
	name := r.StreamName
	patch := &StationPatch{StreamLink: &link, StreamName: &name}
	if strings.TrimSpace(r.Favicon) != "" {
		favicon := r.Favicon
		patch.Favicon = &favicon
	}
	return patch, nil
}

// StationQuery is the storage-level filter set. Zero values disable a filter.
type StationQuery struct {
	Visibility Visibility
	Bounds     *geo.Bounds
	// AccessibleTo keeps only stations owned by or shared with this user.
	AccessibleTo string
	OwnerID      string
	SharedWith   string
	Tags         string
	Limit        int
	Offset       int
}

// Page is a validated limit/offset pair.
type Page struct {
	Limit  int
	Offset int
}

const (
	DefaultPageLimit = 20
	MaxPageLimit     = 100
)

// NewPage applies the default limit and checks bounds.
func NewPage(limit, offset int) (Page, error) {
	if limit == 0 {
		limit = DefaultPageLimit
	}
	if limit < 1 || limit > MaxPageLimit {
		return Page{}, NewValidationError("limit must be between 1 and %d", MaxPageLimit)
	}
	if offset < 0 {
		return Page{}, NewValidationError("offset must not be negative")
	}
	return Page{Limit: limit, Offset: offset}, nil
}
