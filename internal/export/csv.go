// Package export serializes record projections to delimited text for the
// operator's file-download action. Raw records only; aggregate statistics
// never appear in an export.
package export

import (
	"io"
	"strconv"
	"strings"
	"time"

	"avalia/internal/feedback/models"

	dErrors "avalia/pkg/domain-errors"
)

// Field names one exportable column.
type Field string

const (
	FieldID            Field = "id"
	FieldCreatedAt     Field = "created_at"
	FieldName          Field = "name"
	FieldCPF           Field = "cpf"
	FieldPhone         Field = "phone"
	FieldInstagram     Field = "instagram"
	FieldFoodQuality   Field = "food_quality"
	FieldService       Field = "service"
	FieldWaitTime      Field = "wait_time"
	FieldCleanliness   Field = "cleanliness"
	FieldValueForMoney Field = "value_for_money"
	FieldAmbiance      Field = "ambiance"
	FieldComment       Field = "comment"
)

// DefaultFields is the full column set in export order.
var DefaultFields = []Field{
	FieldID, FieldCreatedAt,
	FieldName, FieldCPF, FieldPhone, FieldInstagram,
	FieldFoodQuality, FieldService, FieldWaitTime,
	FieldCleanliness, FieldValueForMoney, FieldAmbiance,
	FieldComment,
}

var extractors = map[Field]func(models.FeedbackRecord) string{
	FieldID:            func(r models.FeedbackRecord) string { return r.ID },
	FieldCreatedAt:     func(r models.FeedbackRecord) string { return r.CreatedAt.Format(time.RFC3339Nano) },
	FieldName:          func(r models.FeedbackRecord) string { return r.Customer.Name },
	FieldCPF:           func(r models.FeedbackRecord) string { return r.Customer.CPF },
	FieldPhone:         func(r models.FeedbackRecord) string { return r.Customer.Phone },
	FieldInstagram:     func(r models.FeedbackRecord) string { return r.Customer.Instagram },
	FieldFoodQuality:   func(r models.FeedbackRecord) string { return strconv.Itoa(r.Scores.FoodQuality) },
	FieldService:       func(r models.FeedbackRecord) string { return strconv.Itoa(r.Scores.Service) },
	FieldWaitTime:      func(r models.FeedbackRecord) string { return strconv.Itoa(r.Scores.WaitTime) },
	FieldCleanliness:   func(r models.FeedbackRecord) string { return strconv.Itoa(r.Scores.Cleanliness) },
	FieldValueForMoney: func(r models.FeedbackRecord) string { return strconv.Itoa(r.Scores.ValueForMoney) },
	FieldAmbiance:      func(r models.FeedbackRecord) string { return strconv.Itoa(r.Scores.Ambiance) },
	FieldComment:       func(r models.FeedbackRecord) string { return r.Comment },
}

// Write streams one header line plus one line per record, preserving the
// given record order. Every value is quoted unconditionally and embedded
// quotes are doubled, so free text survives a round trip through any
// standard CSV parser.
func Write(w io.Writer, records []models.FeedbackRecord, fields []Field) error {
	if len(fields) == 0 {
		fields = DefaultFields
	}
	for _, f := range fields {
		if _, ok := extractors[f]; !ok {
			return dErrors.New(dErrors.CodeInvalidInput, "unknown export field: "+string(f))
		}
	}

	var sb strings.Builder
	writeRow := func(values []string) error {
		sb.Reset()
		for i, v := range values {
			if i > 0 {
				sb.WriteByte(',')
			}
			sb.WriteByte('"')
			sb.WriteString(strings.ReplaceAll(v, `"`, `""`))
			sb.WriteByte('"')
		}
		sb.WriteByte('\n')
		_, err := io.WriteString(w, sb.String())
		return err
	}

	header := make([]string, len(fields))
	for i, f := range fields {
		header[i] = string(f)
	}
	if err := writeRow(header); err != nil {
		return err
	}

	row := make([]string, len(fields))
	for _, record := range records {
		for i, f := range fields {
			row[i] = extractors[f](record)
		}
		if err := writeRow(row); err != nil {
			return err
		}
	}
	return nil
}

// DelimitedText is the string-building convenience over Write.
func DelimitedText(records []models.FeedbackRecord, fields []Field) (string, error) {
	var sb strings.Builder
	if err := Write(&sb, records, fields); err != nil {
		return "", err
	}
	return sb.String(), nil
}
