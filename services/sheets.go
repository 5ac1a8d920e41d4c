package services

import (
	"context"
	"fmt"
	"strings"

	"google.golang.org/api/option"
	"google.golang.org/api/sheets/v4"

	"weddingtg/models"
)

// sheetHeaders is the fixed column layout of the guest mirror sheet.
var sheetHeaders = []interface{}{
	"telegram_id",
	"tg_username",
	"full_name",
	"phone",
	"gender",
	"side",
	"attendance_status",
	"is_relative",
	"children",
	"allergies",
	"food",
	"alcohol",
	"updated_at",
	"created_at",
}

// SheetUploader mirrors guest rows into an external spreadsheet.
// Implementations must be safe to call from the sync worker goroutine.
type SheetUploader interface {
	EnsureHeader(ctx context.Context) error
	UpsertRow(ctx context.Context, row []interface{}) error
}

// GoogleSheetUploader talks to the Google Sheets API with a service
// account credential.
type GoogleSheetUploader struct {
	svc           *sheets.Service
	spreadsheetID string
	sheetName     string
}

func NewGoogleSheetUploader(ctx context.Context, credentialsFile, spreadsheetID, sheetName string) (*GoogleSheetUploader, error) {
	svc, err := sheets.NewService(ctx, option.WithCredentialsFile(credentialsFile))
	if err != nil {
		return nil, err
	}
	return &GoogleSheetUploader{svc: svc, spreadsheetID: spreadsheetID, sheetName: sheetName}, nil
}

func (u *GoogleSheetUploader) EnsureHeader(ctx context.Context) error {
	rng := fmt.Sprintf("%s!A1:%s1", u.sheetName, columnLetter(len(sheetHeaders)))
	_, err := u.svc.Spreadsheets.Values.Update(u.spreadsheetID, rng, &sheets.ValueRange{
		Values: [][]interface{}{sheetHeaders},
	}).ValueInputOption("RAW").Context(ctx).Do()
	return err
}

// UpsertRow finds an existing row by the telegram id in column A and
// updates it in place, appending when the guest is not on the sheet yet.
func (u *GoogleSheetUploader) UpsertRow(ctx context.Context, row []interface{}) error {
	if len(row) == 0 {
		return fmt.Errorf("empty row")
	}

	keyRange := u.sheetName + "!A2:A"
	resp, err := u.svc.Spreadsheets.Values.Get(u.spreadsheetID, keyRange).Context(ctx).Do()
	if err != nil {
		return err
	}

	key := fmt.Sprintf("%v", row[0])
	for i, existing := range resp.Values {
		if len(existing) > 0 && fmt.Sprintf("%v", existing[0]) == key {
			rng := fmt.Sprintf("%s!A%d:%s%d", u.sheetName, i+2, columnLetter(len(row)), i+2)
			_, err := u.svc.Spreadsheets.Values.Update(u.spreadsheetID, rng, &sheets.ValueRange{
				Values: [][]interface{}{row},
			}).ValueInputOption("RAW").Context(ctx).Do()
			return err
		}
	}

	_, err = u.svc.Spreadsheets.Values.Append(u.spreadsheetID, u.sheetName, &sheets.ValueRange{
		Values: [][]interface{}{row},
	}).ValueInputOption("RAW").InsertDataOption("INSERT_ROWS").Context(ctx).Do()
	return err
}

func columnLetter(n int) string {
	s := ""
	for n > 0 {
		n--
		s = string(rune('A'+n%26)) + s
		n /= 26
	}
	return s
}

// GuestRow flattens a guest with profile and family profile into the
// sheet column order.
func GuestRow(guest *models.Guest, profile *models.Profile, family *models.FamilyProfile) []interface{} {
	return []interface{}{
		guest.TelegramUserID,
		deref(guest.Username),
		deref(profile.FullName),
		deref(guest.Phone),
		deref(profile.Gender),
		deref(profile.Side),
		profile.RSVPStatus,
		profile.IsRelative,
		childrenString(family),
		deref(profile.FoodAllergies),
		deref(profile.FoodPref),
		deref(profile.AlcoholPrefsCSV),
		guest.UpdatedAt.Format("2006-01-02 15:04:05"),
		guest.CreatedAt.Format("2006-01-02 15:04:05"),
	}
}

func childrenString(family *models.FamilyProfile) string {
	if family == nil || len(family.Children) == 0 {
		return ""
	}
	parts := make([]string, 0, len(family.Children))
	for _, ch := range family.Children {
		if ch.Name == "" {
			continue
		}
		if ch.Age > 0 {
			parts = append(parts, fmt.Sprintf("%s (%d)", ch.Name, ch.Age))
		} else {
			parts = append(parts, ch.Name)
		}
	}
	return strings.Join(parts, ", ")
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}
