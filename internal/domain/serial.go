package domain

import (
	"strings"
	"time"

	"github.com/google/uuid"
	"go.mongodb.org/mongo-driver/bson/bsontype"
)

const (
	discrepancyNone             = "none"
	discrepancyLocationMismatch = "location_mismatch"
	discrepancyNotFound         = "not_found"
	discrepancyUnexpectedFound  = "unexpected_found"
)

// Discrepancy classifies a serial-tracked asset against its expected location
type Discrepancy struct {
	value string
}

var (
	DiscrepancyNone             = Discrepancy{discrepancyNone}
	DiscrepancyLocationMismatch = Discrepancy{discrepancyLocationMismatch}
	DiscrepancyNotFound         = Discrepancy{discrepancyNotFound}
	DiscrepancyUnexpectedFound  = Discrepancy{discrepancyUnexpectedFound}
)

// AllDiscrepancies lists every discrepancy value in display order
var AllDiscrepancies = []Discrepancy{
	DiscrepancyNone, DiscrepancyLocationMismatch, DiscrepancyNotFound, DiscrepancyUnexpectedFound,
}

func NewDiscrepancy(value string) (Discrepancy, error) {
	switch value {
	case discrepancyNone, discrepancyLocationMismatch, discrepancyNotFound, discrepancyUnexpectedFound:
		return Discrepancy{value}, nil
	default:
		return Discrepancy{}, newRuleError(KindValidation, CodeInvalidSerial, "unknown discrepancy %q", value)
	}
}

func (d Discrepancy) String() string { return d.value }

func (d Discrepancy) Equals(other Discrepancy) bool { return d.value == other.value }

// IsPresent is true for every value except none
func (d Discrepancy) IsPresent() bool {
	return d.value != "" && d.value != discrepancyNone
}

func (d Discrepancy) MarshalText() ([]byte, error) { return []byte(d.value), nil }

func (d *Discrepancy) UnmarshalText(data []byte) error {
	parsed, err := NewDiscrepancy(string(data))
	if err != nil {
		return err
	}
	*d = parsed
	return nil
}

func (d Discrepancy) MarshalBSONValue() (bsontype.Type, []byte, error) {
	return marshalEnumBSON(d.value)
}

func (d *Discrepancy) UnmarshalBSONValue(t bsontype.Type, data []byte) error {
	raw, err := unmarshalEnumBSON(t, data)
	if err != nil || raw == "" {
		return err
	}
	return d.UnmarshalText([]byte(raw))
}

const (
	resolutionPending  = "pending"
	resolutionResolved = "resolved"
	resolutionMigrated = "migrated_to_erp"
)

// Resolution tracks the handling of a serial discrepancy
type Resolution struct {
	value string
}

var (
	ResolutionPending  = Resolution{resolutionPending}
	ResolutionResolved = Resolution{resolutionResolved}
	ResolutionMigrated = Resolution{resolutionMigrated}
)

// AllResolutions lists every resolution value in lifecycle order
var AllResolutions = []Resolution{ResolutionPending, ResolutionResolved, ResolutionMigrated}

func NewResolution(value string) (Resolution, error) {
	switch value {
	case resolutionPending, resolutionResolved, resolutionMigrated:
		return Resolution{value}, nil
	default:
		return Resolution{}, newRuleError(KindValidation, CodeInvalidSerial, "unknown resolution %q", value)
	}
}

func (r Resolution) String() string { return r.value }

func (r Resolution) Equals(other Resolution) bool { return r.value == other.value }

func (r Resolution) MarshalText() ([]byte, error) { return []byte(r.value), nil }

func (r *Resolution) UnmarshalText(data []byte) error {
	parsed, err := NewResolution(string(data))
	if err != nil {
		return err
	}
	*r = parsed
	return nil
}

func (r Resolution) MarshalBSONValue() (bsontype.Type, []byte, error) {
	return marshalEnumBSON(r.value)
}

func (r *Resolution) UnmarshalBSONValue(t bsontype.Type, data []byte) error {
	raw, err := unmarshalEnumBSON(t, data)
	if err != nil || raw == "" {
		return err
	}
	return r.UnmarshalText([]byte(raw))
}

// SerialItem tracks one serial-numbered asset through an inventory
type SerialItem struct {
	ID                 string      `bson:"_id" json:"id"`
	InventoryID        string      `bson:"inventoryId" json:"inventoryId"`
	SerialNumber       string      `bson:"serialNumber" json:"serialNumber"`
	ProductID          string      `bson:"productId" json:"productId"`
	Expected           bool        `bson:"expected" json:"expected"`
	ExpectedLocationID string      `bson:"expectedLocationId,omitempty" json:"expectedLocationId,omitempty"`
	FoundLocationID    string      `bson:"foundLocationId,omitempty" json:"foundLocationId,omitempty"`
	FoundStage         int         `bson:"foundStage" json:"foundStage"`
	ScannedBy          string      `bson:"scannedBy,omitempty" json:"scannedBy,omitempty"`
	ScannedAt          *time.Time  `bson:"scannedAt,omitempty" json:"scannedAt,omitempty"`
	Discrepancy        Discrepancy `bson:"discrepancy" json:"discrepancy"`
	Resolution         Resolution  `bson:"resolution" json:"resolution"`
	ResolutionNotes    string      `bson:"resolutionNotes,omitempty" json:"resolutionNotes,omitempty"`
	ResolvedBy         string      `bson:"resolvedBy,omitempty" json:"resolvedBy,omitempty"`
	ResolvedAt         *time.Time  `bson:"resolvedAt,omitempty" json:"resolvedAt,omitempty"`
	MigratedAt         *time.Time  `bson:"migratedAt,omitempty" json:"migratedAt,omitempty"`
	Version            int64       `bson:"version" json:"version"`
	CreatedAt          time.Time   `bson:"createdAt" json:"createdAt"`
	UpdatedAt          time.Time   `bson:"updatedAt" json:"updatedAt"`
}

// NewExpectedSerial registers an asset the stock records place at a location
func NewExpectedSerial(inventoryID, serialNumber, productID, locationID string) (*SerialItem, error) {
	serialNumber = strings.TrimSpace(serialNumber)
	if serialNumber == "" {
		return nil, newRuleError(KindValidation, CodeInvalidSerial, "serial number is required")
	}
	now := time.Now().UTC()
	return &SerialItem{
		ID:                 uuid.New().String(),
		InventoryID:        inventoryID,
		SerialNumber:       serialNumber,
		ProductID:          productID,
		Expected:           true,
		ExpectedLocationID: locationID,
		Discrepancy:        DiscrepancyNone,
		Resolution:         ResolutionPending,
		CreatedAt:          now,
		UpdatedAt:          now,
	}, nil
}

// NewUnexpectedSerial records a scanned asset the stock records do not know
func NewUnexpectedSerial(inventoryID, serialNumber, productID string, stage Stage, locationID, scannedBy string, at time.Time) (*SerialItem, error) {
	serialNumber = strings.TrimSpace(serialNumber)
	if serialNumber == "" {
		return nil, newRuleError(KindValidation, CodeInvalidSerial, "serial number is required")
	}
	return &SerialItem{
		ID:              uuid.New().String(),
		InventoryID:     inventoryID,
		SerialNumber:    serialNumber,
		ProductID:       productID,
		FoundLocationID: locationID,
		FoundStage:      stage.Int(),
		ScannedBy:       scannedBy,
		ScannedAt:       &at,
		Discrepancy:     DiscrepancyUnexpectedFound,
		Resolution:      ResolutionPending,
		CreatedAt:       at,
		UpdatedAt:       at,
	}, nil
}

func (s *SerialItem) ensureMutable() error {
	switch s.Resolution {
	case ResolutionMigrated:
		return newRuleError(KindState, CodeSerialMigrated, "serial %s was migrated to ERP", s.SerialNumber)
	case ResolutionResolved:
		return newRuleError(KindState, CodeSerialResolved, "serial %s is already resolved", s.SerialNumber)
	}
	return nil
}

// PromoteToExpected turns an unexpected_found record into an expected one
// when the asset is registered after it was first scanned. The stored scan is
// then judged against the expected location. Returns false when the record
// is already expected or its discrepancy was already handled.
func (s *SerialItem) PromoteToExpected(productID, locationID string, at time.Time) bool {
	if s.Expected || !s.Resolution.Equals(ResolutionPending) {
		return false
	}
	s.Expected = true
	s.ExpectedLocationID = locationID
	if productID != "" {
		s.ProductID = productID
	}
	switch {
	case !s.IsFound():
		s.Discrepancy = DiscrepancyNone
	case s.FoundLocationID == locationID:
		s.Discrepancy = DiscrepancyNone
	default:
		s.Discrepancy = DiscrepancyLocationMismatch
	}
	s.UpdatedAt = at
	return true
}

// IsFound reports whether any scan has been recorded
func (s *SerialItem) IsFound() bool {
	return s.FoundStage > 0
}

// ApplyScan records a reading. A reading from an earlier stage than the one
// stored is ignored and a repeat of the stored reading is a no-op; changed is
// false in both cases.
func (s *SerialItem) ApplyScan(stage Stage, locationID, scannedBy string, at time.Time) (changed bool, err error) {
	if err := s.ensureMutable(); err != nil {
		return false, err
	}
	if stage < StageFirst || stage > StageThird {
		return false, newRuleError(KindValidation, CodeInvalidStage, "serial scans are taken in stages 1 to 3")
	}
	if stage.Int() < s.FoundStage {
		return false, nil
	}
	if stage.Int() == s.FoundStage && locationID == s.FoundLocationID {
		return false, nil
	}

	s.FoundStage = stage.Int()
	s.FoundLocationID = locationID
	s.ScannedBy = scannedBy
	s.ScannedAt = &at
	s.UpdatedAt = at

	switch {
	case !s.Expected:
		s.Discrepancy = DiscrepancyUnexpectedFound
	case locationID == s.ExpectedLocationID:
		s.Discrepancy = DiscrepancyNone
	default:
		s.Discrepancy = DiscrepancyLocationMismatch
	}
	return true, nil
}

// MarkNotFound classifies an expected, never-scanned serial as not_found.
// Returns false when the record does not qualify.
func (s *SerialItem) MarkNotFound(at time.Time) bool {
	if !s.Expected || s.IsFound() || !s.Resolution.Equals(ResolutionPending) || s.Discrepancy.IsPresent() {
		return false
	}
	s.Discrepancy = DiscrepancyNotFound
	s.UpdatedAt = at
	return true
}

// Resolve closes a discrepancy with explanatory notes
func (s *SerialItem) Resolve(notes, resolver string, at time.Time) error {
	if err := s.ensureMutable(); err != nil {
		return err
	}
	if !s.Discrepancy.IsPresent() {
		return newRuleError(KindValidation, CodeNoDiscrepancy, "serial %s has no discrepancy", s.SerialNumber)
	}
	notes = strings.TrimSpace(notes)
	if notes == "" {
		return ErrResolutionNotesRequired
	}
	s.Resolution = ResolutionResolved
	s.ResolutionNotes = notes
	s.ResolvedBy = resolver
	s.ResolvedAt = &at
	s.UpdatedAt = at
	return nil
}

// MarkMigrated moves a resolved record to migrated_to_erp
func (s *SerialItem) MarkMigrated(at time.Time) error {
	switch s.Resolution {
	case ResolutionMigrated:
		return newRuleError(KindState, CodeSerialMigrated, "serial %s was migrated to ERP", s.SerialNumber)
	case ResolutionPending:
		return newRuleError(KindState, CodeSerialNotResolved, "serial %s is not resolved", s.SerialNumber)
	}
	s.Resolution = ResolutionMigrated
	s.MigratedAt = &at
	s.UpdatedAt = at
	return nil
}

// SerialSummary aggregates serial records for an inventory
type SerialSummary struct {
	Total         int            `json:"total"`
	Found         int            `json:"found"`
	Expected      int            `json:"expected"`
	ByDiscrepancy map[string]int `json:"byDiscrepancy"`
	ByResolution  map[string]int `json:"byResolution"`
	// OpenDiscrepancies counts records with a discrepancy still pending.
	OpenDiscrepancies int `json:"openDiscrepancies"`
}

// SummarizeSerials totals serial records by discrepancy and resolution
func SummarizeSerials(items []*SerialItem) SerialSummary {
	summary := SerialSummary{
		ByDiscrepancy: make(map[string]int, len(AllDiscrepancies)),
		ByResolution:  make(map[string]int, len(AllResolutions)),
	}
	for _, d := range AllDiscrepancies {
		summary.ByDiscrepancy[d.String()] = 0
	}
	for _, r := range AllResolutions {
		summary.ByResolution[r.String()] = 0
	}

	for _, s := range items {
		summary.Total++
		if s.IsFound() {
			summary.Found++
		}
		if s.Expected {
			summary.Expected++
		}
		summary.ByDiscrepancy[s.Discrepancy.String()]++
		summary.ByResolution[s.Resolution.String()]++
		if s.Discrepancy.IsPresent() && s.Resolution.Equals(ResolutionPending) {
			summary.OpenDiscrepancies++
		}
	}
	return summary
}
