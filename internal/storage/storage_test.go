package storage

import (
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
)

func TestArtifactKey(t *testing.T) {
	id := uuid.MustParse("0b5c7a3e-7d59-4bde-9d5e-5b0a8f1d2c33")

	assert.Equal(t, "runs/0b5c7a3e-7d59-4bde-9d5e-5b0a8f1d2c33/counts.png", ArtifactKey(id, "out/counts.png"))
	assert.Equal(t, "runs/0b5c7a3e-7d59-4bde-9d5e-5b0a8f1d2c33/report.html", ArtifactKey(id, "report.html"))
	assert.Equal(t, "report.html", ArtifactName(ArtifactKey(id, "/tmp/x/report.html")))
}

func TestContentType(t *testing.T) {
	assert.Equal(t, "image/png", ContentType("a/counts.png"))
	assert.Equal(t, "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet", ContentType("detection_results.XLSX"))
	assert.Equal(t, "application/vnd.sqlite3", ContentType("results.db"))
	assert.Equal(t, "video/mp4", ContentType("annotated.mp4"))
	assert.Contains(t, ContentType("report.html"), "text/html")
	assert.Equal(t, "application/octet-stream", ContentType("blob"))
}
