// Package normalizer turns raw extract rows into canonical member
// records. It owns the source-format quirks: combined full-name fields,
// day-month-year dates, single-letter sex codes and the feed's static
// plan/document tables.
package normalizer

import (
	"context"
	"strings"
	"time"

	"go.uber.org/zap"

	"padron-sync/internal/feed"
	"padron-sync/internal/loader"
	"padron-sync/internal/models"
)

// Source date layout: day-month-year.
const dateLayout = "02-01-2006"

// sexCodes maps the extracts' single-letter vocabulary to the stored
// enumeration. Unmapped codes normalize to nil.
var sexCodes = map[string]string{
	"M": models.SexMale,
	"F": models.SexFemale,
	"U": models.SexIntersex,
}

// LocationResolver resolves province and city names to surrogate ids;
// nil means unresolved.
type LocationResolver interface {
	Province(ctx context.Context, raw string) *string
	City(ctx context.Context, raw string, provinceID *string) *string
}

// Normalizer builds canonical records for one feed.
type Normalizer struct {
	feed     *feed.Feed
	resolver LocationResolver
	logger   *zap.Logger
}

// New creates a normalizer for the given feed.
func New(f *feed.Feed, resolver LocationResolver, logger *zap.Logger) *Normalizer {
	return &Normalizer{
		feed:     f,
		resolver: resolver,
		logger:   logger,
	}
}

// Normalize converts the extract into canonical records. Rows that fail
// input validation (non-numeric card codes) are skipped and returned as
// input errors; everything else normalizes fail-open, with unusable
// values becoming nil rather than aborting the row.
func (n *Normalizer) Normalize(ctx context.Context, extract *loader.Extract) ([]models.MemberRecord, []*models.InputError) {
	if extract.Empty() {
		return nil, nil
	}

	// Index member id -> (card, full name) so each record can carry its
	// holder's card code and name, denormalized from the extract itself.
	cardsByMemberID := make(map[string]string, len(extract.Rows))
	namesByMemberID := make(map[string]string, len(extract.Rows))
	for _, row := range extract.Rows {
		memberID := value(row, feed.ColMemberID)
		if memberID == "" {
			continue
		}
		if card, err := models.CanonicalCardCode(row[feed.ColCardNumber]); err == nil {
			cardsByMemberID[memberID] = card
		}
		namesByMemberID[memberID] = value(row, feed.ColFullName)
	}

	records := make([]models.MemberRecord, 0, len(extract.Rows))
	var inputErrors []*models.InputError

	for _, row := range extract.Rows {
		card, err := models.CanonicalCardCode(row[feed.ColCardNumber])
		if err != nil {
			inputErrors = append(inputErrors, &models.InputError{
				CardCode: row[feed.ColCardNumber],
				Field:    feed.ColCardNumber,
				Message:  err.Error(),
			})
			continue
		}

		rec := models.MemberRecord{CardCode: card}

		family, given := splitFullName(value(row, feed.ColFullName))
		rec.FamilyName = family
		rec.GivenName = given

		rec.BirthDate = parseDate(value(row, feed.ColBirthDate))

		if sex, ok := sexCodes[value(row, feed.ColSex)]; ok {
			rec.Sex = &sex
		}

		rec.DocumentTypeID = n.feed.DocumentTypeID(value(row, feed.ColDocumentType))
		rec.DocumentNumber = optional(row, feed.ColDocumentNum)
		rec.PlanID = n.feed.PlanID(value(row, feed.ColPlanName))
		rec.Phone = optional(row, feed.ColPhone)
		rec.Email = optional(row, feed.ColEmail)

		// A member with no holder reference is its own holder.
		holderID := value(row, feed.ColHolderID)
		if holderID == "" {
			holderID = value(row, feed.ColMemberID)
		}
		rec.HolderCardCode = cardsByMemberID[holderID]
		rec.HolderName = namesByMemberID[holderID]

		if n.feed.WithAddress {
			rec.Address = n.normalizeAddress(ctx, row)
		}

		records = append(records, rec)
	}

	n.logger.Info("Extract normalized",
		zap.Int("records", len(records)),
		zap.Int("input_errors", len(inputErrors)),
	)

	return records, inputErrors
}

func (n *Normalizer) normalizeAddress(ctx context.Context, row loader.Row) *models.Address {
	provinceID := n.resolver.Province(ctx, value(row, feed.ColProvince))
	cityID := n.resolver.City(ctx, value(row, feed.ColCity), provinceID)

	return &models.Address{
		PostalCode: value(row, feed.ColPostalCode),
		Street:     value(row, feed.ColStreet),
		Number:     value(row, feed.ColStreetNumber),
		Floor:      value(row, feed.ColFloor),
		Unit:       value(row, feed.ColUnit),
		CityID:     cityID,
	}
}

// splitFullName splits a combined "APELLIDO NOMBRE" field on the first
// space: family name first, the remainder is the given name. A value
// with no space yields an empty given name.
func splitFullName(full string) (family, given string) {
	full = strings.TrimSpace(full)
	if full == "" {
		return "", ""
	}
	parts := strings.SplitN(full, " ", 2)
	if len(parts) == 1 {
		return parts[0], ""
	}
	return parts[0], strings.TrimSpace(parts[1])
}

// parseDate parses the source date format; unparseable values become
// nil, never a row failure.
func parseDate(s string) *time.Time {
	if s == "" {
		return nil
	}
	t, err := time.Parse(dateLayout, s)
	if err != nil {
		return nil
	}
	return &t
}

// value reads a column treating the literal "NULL" as absent.
func value(row loader.Row, col string) string {
	v := strings.TrimSpace(row[col])
	if v == "NULL" {
		return ""
	}
	return v
}

// optional reads a column into a pointer, nil when absent.
func optional(row loader.Row, col string) *string {
	v := value(row, col)
	if v == "" {
		return nil
	}
	return &v
}
