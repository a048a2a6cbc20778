package handlers

import (
	"errors"
	"io"
	"mime"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/example/edu-admin/internal/usecase"
)

const multipartSlack = 1 << 20

var allowedImageTypes = map[string]struct{}{
	"image/jpeg": {},
	"image/jpg":  {},
	"image/png":  {},
}

func (h *handler) registerFaceRoutes(api *gin.RouterGroup) {
	api.POST("/verify-face", h.verifyFace)
	api.POST("/upload-face", h.uploadFace)
	api.POST("/recognize-face", h.recognizeFace)
	api.GET("/face-metrics", h.faceMetrics)
}

func (h *handler) verifyFace(c *gin.Context) {
	in, ok := h.readFaceForm(c)
	if !ok {
		return
	}

	result, err := h.faces.VerifyFace(c.Request.Context(), in)
	if err != nil {
		h.writeError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"request_id": result.RequestID,
		"encoded":    result.Encoded,
		"faces":      result.Faces,
		"message":    result.Message,
	})
}

func (h *handler) uploadFace(c *gin.Context) {
	in, ok := h.readFaceForm(c)
	if !ok {
		return
	}

	result, err := h.faces.UploadFace(c.Request.Context(), in)
	if err != nil {
		h.writeError(c, err)
		return
	}

	status := http.StatusCreated
	if result.Duplicate {
		status = http.StatusOK
	}
	c.JSON(status, gin.H{
		"message":   "Face uploaded",
		"id":        result.ID,
		"duplicate": result.Duplicate,
	})
}

type recognizeRequest struct {
	Image string `json:"image"`
}

func (h *handler) recognizeFace(c *gin.Context) {
	c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, h.maxUpload*2)

	var req recognizeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		var maxErr *http.MaxBytesError
		if errors.As(err, &maxErr) {
			c.JSON(http.StatusRequestEntityTooLarge, gin.H{"error": "image too large"})
			return
		}
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid JSON body"})
		return
	}
	if strings.TrimSpace(req.Image) == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "image is required"})
		return
	}

	rec, err := h.faces.RecognizeFace(c.Request.Context(), req.Image)
	if err != nil {
		h.writeError(c, err)
		return
	}

	body := gin.H{"status": rec.Status}
	if rec.Status == usecase.RecognitionRecognized {
		body["identifier"] = rec.Identifier
		body["id_type"] = rec.IDType
		body["confidence"] = rec.Confidence
		body["image_url"] = rec.ImageURL
	}
	c.JSON(http.StatusOK, body)
}

func (h *handler) faceMetrics(c *gin.Context) {
	summary, err := h.faces.GetMetricsSummary(c.Request.Context())
	if err != nil {
		h.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, summary)
}

// readFaceForm parses the multipart face/identifier/id_type form. It writes
// the error response itself and reports false when the request is unusable.
func (h *handler) readFaceForm(c *gin.Context) (usecase.FaceInput, bool) {
	c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, h.maxUpload+multipartSlack)

	file, err := c.FormFile("face")
	if err != nil {
		var maxErr *http.MaxBytesError
		if errors.As(err, &maxErr) {
			c.JSON(http.StatusRequestEntityTooLarge, gin.H{"error": "image too large"})
			return usecase.FaceInput{}, false
		}
		c.JSON(http.StatusBadRequest, gin.H{"error": "face image file is required"})
		return usecase.FaceInput{}, false
	}

	if file.Size > h.maxUpload {
		c.JSON(http.StatusRequestEntityTooLarge, gin.H{"error": "image too large"})
		return usecase.FaceInput{}, false
	}

	if ct := file.Header.Get("Content-Type"); ct != "" {
		mediaType, _, err := mime.ParseMediaType(ct)
		if _, ok := allowedImageTypes[strings.ToLower(mediaType)]; err != nil || !ok {
			c.JSON(http.StatusUnsupportedMediaType, gin.H{"error": "only JPEG and PNG images are accepted"})
			return usecase.FaceInput{}, false
		}
	}

	src, err := file.Open()
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "unable to open image"})
		return usecase.FaceInput{}, false
	}
	defer src.Close()

	data, err := io.ReadAll(src)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to read image"})
		return usecase.FaceInput{}, false
	}

	return usecase.FaceInput{
		Identifier: strings.TrimSpace(c.PostForm("identifier")),
		IDType:     strings.TrimSpace(c.PostForm("id_type")),
		Image:      data,
	}, true
}
