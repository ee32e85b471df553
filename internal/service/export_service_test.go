package service

import (
	"context"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/danuarta/mediaportal-api/internal/models"
	appErrors "github.com/danuarta/mediaportal-api/pkg/errors"
)

func TestParseExportFormat(t *testing.T) {
	format, err := ParseExportFormat("")
	require.NoError(t, err)
	assert.Equal(t, ExportFormatCSV, format)

	format, err = ParseExportFormat("PDF")
	require.NoError(t, err)
	assert.Equal(t, ExportFormatPDF, format)

	_, err = ParseExportFormat("xlsx")
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrValidation.Code, appErrors.FromError(err).Code)
}

func TestExportServiceRosterCSV(t *testing.T) {
	students := newMockStudentRepo()
	students.students["s1"] = &models.Student{ID: "s1", Username: "arif", FullName: "Arif Rahman", RollNumber: "21", Class: "10", Section: "A", Active: true}
	svc := NewExportService(students, newMockMediaRepo(), nil, nil, zap.NewNop())

	doc, err := svc.RosterReport(context.Background(), models.StudentFilter{}, ExportFormatCSV)
	require.NoError(t, err)
	assert.Equal(t, "text/csv", doc.ContentType)
	assert.True(t, strings.HasSuffix(doc.Filename, ".csv"))
	content := string(doc.Data)
	assert.Contains(t, content, "Username,Full Name,Roll Number")
	assert.Contains(t, content, "Arif Rahman")
}

func TestExportServiceMediaPDF(t *testing.T) {
	media := newMockMediaRepo()
	media.items["m1"] = &models.MediaItem{ID: "m1", Title: "Sports day", Kind: models.MediaKindPhoto, Status: models.MediaStatusApproved, AssignedTo: "all", UploadedBy: "admin-1"}
	svc := NewExportService(newMockStudentRepo(), media, nil, nil, zap.NewNop())

	doc, err := svc.MediaReport(context.Background(), models.MediaFilter{}, ExportFormatPDF)
	require.NoError(t, err)
	assert.Equal(t, "application/pdf", doc.ContentType)
	assert.True(t, strings.HasSuffix(doc.Filename, ".pdf"))
	assert.NotEmpty(t, doc.Data)
	assert.True(t, strings.HasPrefix(string(doc.Data[:5]), "%PDF-"))
}
