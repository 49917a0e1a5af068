package registry

import (
	"bytes"
	"encoding/csv"
	"strings"
	"time"
)

const exportWidth = 6

var studentHeader = []string{"Name", "Organization", "Date of Birth", "Email", "Phone", "Enrollment Date"}

// ExportClassSheet builds the spreadsheet grid for a class roster: class
// metadata rows, a blank separator row, then the student table. Cells are
// display strings ready for sheet rendering or file generation.
func ExportClassSheet(c Class, students []Student, now time.Time) [][]string {
	grid := [][]string{
		padRow("Class Information"),
		padRow("Name", c.Name),
		padRow("Start Date", FormatDOB(c.StartDate)),
		padRow("End Date", FormatDOB(c.EndDate)),
		padRow("Trainers", trainersCell(c.Trainers)),
		padRow("Status", statusLabel(c, now)),
		padRow(),
		padRow("Enrolled Students"),
		studentHeader,
	}

	for _, s := range students {
		grid = append(grid, []string{
			s.Name,
			orNA(s.Organization),
			FormatDOB(s.DOB),
			orNA(s.Email),
			orNA(s.Phone),
			FormatDOB(s.EnrollmentDate),
		})
	}
	return grid
}

// ExportCSV renders a grid to CSV bytes.
func ExportCSV(grid [][]string) ([]byte, error) {
	var buf bytes.Buffer
	w := csv.NewWriter(&buf)
	if err := w.WriteAll(grid); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func statusLabel(c Class, now time.Time) string {
	switch ClassState(c, now) {
	case StateFuture:
		return "Upcoming"
	case StateEnded:
		return "Ended"
	default:
		return "Ongoing"
	}
}

func trainersCell(trainers []string) string {
	if len(trainers) == 0 {
		return "None"
	}
	return strings.Join(trainers, ", ")
}

func orNA(s string) string {
	if s == "" {
		return "N/A"
	}
	return s
}

func padRow(cells ...string) []string {
	row := make([]string, exportWidth)
	copy(row, cells)
	return row
}
