package student

import (
	"bytes"
	"fmt"
	"time"

	"sgcsc-backend/internal/apperrors"
	"sgcsc-backend/internal/auth"
	"sgcsc-backend/internal/models"

	"github.com/gofiber/fiber/v2"
	"github.com/xuri/excelize/v2"
)

const exportSheet = "Students"

var exportHeader = []any{
	"Enrollment No", "Name", "Father Name", "Mother Name", "Gender", "DOB",
	"Mobile", "Email", "Course", "Center", "Session Start", "Session End", "Status",
}

// WriteWorkbook renders students as a single sheet xlsx file.
func WriteWorkbook(students []models.Student) (*bytes.Buffer, error) {
	f := excelize.NewFile()
	defer f.Close()

	if err := f.SetSheetName("Sheet1", exportSheet); err != nil {
		return nil, err
	}
	if err := f.SetSheetRow(exportSheet, "A1", &exportHeader); err != nil {
		return nil, err
	}
	bold, err := f.NewStyle(&excelize.Style{Font: &excelize.Font{Bold: true}})
	if err != nil {
		return nil, err
	}
	lastCol, _ := excelize.ColumnNumberToName(len(exportHeader))
	if err := f.SetCellStyle(exportSheet, "A1", lastCol+"1", bold); err != nil {
		return nil, err
	}

	for i := range students {
		s := &students[i]
		center, course, _ := centerAndCourse(s)
		row := []any{
			s.EnrollmentNo, s.Name, s.FatherName, s.MotherName, s.Gender, s.DOB,
			s.Mobile, s.Email, course, center, s.SessionStart, s.SessionEnd, string(s.Status),
		}
		cell, err := excelize.CoordinatesToCellName(1, i+2)
		if err != nil {
			return nil, err
		}
		if err := f.SetSheetRow(exportSheet, cell, &row); err != nil {
			return nil, err
		}
	}
	if err := f.SetColWidth(exportSheet, "A", lastCol, 18); err != nil {
		return nil, err
	}

	return f.WriteToBuffer()
}

// GET /api/students/export
// Same filters and scope as the list.
func ExportHandler(svc *Service) fiber.Handler {
	return func(c *fiber.Ctx) error {
		filter, err := listFilter(c)
		if err != nil {
			return err
		}
		list, err := svc.List(c.UserContext(), auth.PrincipalFrom(c), filter)
		if err != nil {
			return apperrors.HTTP(err)
		}
		buf, err := WriteWorkbook(list)
		if err != nil {
			return fmt.Errorf("student export: %w", err)
		}

		name := fmt.Sprintf("students-%s.xlsx", time.Now().Format("20060102"))
		c.Set(fiber.HeaderContentType, "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet")
		c.Set(fiber.HeaderContentDisposition, fmt.Sprintf(`attachment; filename="%s"`, name))
		return c.Send(buf.Bytes())
	}
}
