package handlers

import (
	"io"
	"mime"
	"strconv"
	"strings"

	"github.com/gofiber/fiber/v2"

	"github.com/spec-kit/pqr-service/internal/service"
	apperrors "github.com/spec-kit/pqr-service/pkg/util"
)

const mediaField = "media"

func isMultipart(c *fiber.Ctx) bool {
	return strings.HasPrefix(c.Get(fiber.HeaderContentType), fiber.MIMEMultipartForm)
}

// readUploads opens every file in the media field. The returned closer must
// be called once the service is done with the readers.
func readUploads(c *fiber.Ctx) ([]service.MediaInput, func(), error) {
	noop := func() {}
	if !isMultipart(c) {
		return nil, noop, nil
	}
	form, err := c.MultipartForm()
	if err != nil {
		return nil, noop, apperrors.NewValidationError("Formulario multipart inválido", nil)
	}
	headers := form.File[mediaField]
	uploads := make([]service.MediaInput, 0, len(headers))
	closers := make([]io.Closer, 0, len(headers))
	closeAll := func() {
		for _, cl := range closers {
			_ = cl.Close()
		}
	}
	for _, fh := range headers {
		f, err := fh.Open()
		if err != nil {
			closeAll()
			return nil, noop, apperrors.NewValidationError("No se pudo leer el archivo adjunto", map[string]any{"file": fh.Filename})
		}
		closers = append(closers, f)
		uploads = append(uploads, service.MediaInput{
			FileName: fh.Filename,
			MimeType: fh.Header.Get(fiber.HeaderContentType),
			Size:     fh.Size,
			Content:  f,
		})
	}
	return uploads, closeAll, nil
}

func queryInt(c *fiber.Ctx, key string, fallback int) (int, error) {
	raw := strings.TrimSpace(c.Query(key))
	if raw == "" {
		return fallback, nil
	}
	v, err := strconv.Atoi(raw)
	if err != nil {
		return 0, apperrors.NewValidationError("Parámetro numérico inválido", map[string]any{"field": key})
	}
	return v, nil
}

func sendPDF(c *fiber.Ctx, name string, body []byte) error {
	c.Attachment(name)
	return c.Send(body)
}

// inlineDisposition quotes the stored file name so any character is safe in the header.
func inlineDisposition(fileName string) string {
	if v := mime.FormatMediaType("inline", map[string]string{"filename": fileName}); v != "" {
		return v
	}
	return "inline"
}
