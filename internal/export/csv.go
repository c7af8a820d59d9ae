// Package export renders a record list as a CSV file for spreadsheet
// import.
package export

import (
	"encoding/csv"
	"fmt"
	"io"
	"strconv"
	"time"

	"github.com/okabe/studylog/internal/models"
)

// bom is the UTF-8 byte-order mark. Spreadsheet apps need it to detect
// the encoding of the Japanese headers.
var bom = []byte{0xEF, 0xBB, 0xBF}

// header matches the column layout the downstream analysis scripts
// consume: ownerId, ownerName, date, time, field, attempted, correct, rate.
var header = []string{"学籍番号", "氏名", "日付", "時刻", "分野", "問題数", "正答数", "正答率(%)"}

// Filename names the export for one user on a given day, e.g.
// "学習記録_P22001_2026-08-31.csv".
func Filename(userID string, now time.Time) string {
	return fmt.Sprintf("学習記録_%s_%s.csv", userID, now.Format("2006-01-02"))
}

// Write emits the BOM, the header row and one row per record in the
// given (in-memory) order.
func Write(w io.Writer, records []models.StudyRecord) error {
	if _, err := w.Write(bom); err != nil {
		return fmt.Errorf("writing BOM: %w", err)
	}

	cw := csv.NewWriter(w)
	if err := cw.Write(header); err != nil {
		return fmt.Errorf("writing header: %w", err)
	}
	for _, r := range records {
		row := []string{
			r.OwnerID,
			r.OwnerName,
			r.Date,
			r.Time,
			r.Field,
			strconv.Itoa(r.Attempted),
			strconv.Itoa(r.Correct),
			strconv.Itoa(r.Rate),
		}
		if err := cw.Write(row); err != nil {
			return fmt.Errorf("writing record %d: %w", r.ID, err)
		}
	}

	cw.Flush()
	return cw.Error()
}
