package handlers

import (
	"context"
	"errors"
	"io"
	"mime/multipart"
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/example/face-match/internal/facematch"
	"github.com/example/face-match/internal/logging"
)

// MaxUploadSize is the default cap on a /verify request body.
const MaxUploadSize = 32 << 20

const (
	targetField      = "target"
	comparisonsField = "comparisons"
)

var errRequestTooLarge = &facematch.ValidationError{
	Message: "request body too large",
	Status:  http.StatusRequestEntityTooLarge,
}

// Matcher runs the per-comparison verification loop.
type Matcher interface {
	Match(ctx context.Context, requestID string, req *facematch.Request) []facematch.Outcome
}

// Handler serves the verification API.
type Handler struct {
	matcher        Matcher
	logger         *zap.Logger
	maxUploadBytes int64
}

// NewHandler builds a Handler. A non-positive maxUploadBytes falls back to MaxUploadSize.
func NewHandler(matcher Matcher, logger *zap.Logger, maxUploadBytes int64) *Handler {
	if maxUploadBytes <= 0 {
		maxUploadBytes = MaxUploadSize
	}
	return &Handler{
		matcher:        matcher,
		logger:         logger.Named("handlers"),
		maxUploadBytes: maxUploadBytes,
	}
}

// RegisterRoutes wires the HTTP handlers to the Gin router.
func RegisterRoutes(router *gin.Engine, h *Handler) {
	router.Use(RequestID(), AccessLog(h.logger))

	router.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})

	router.POST("/verify", h.verify)
}

func (h *Handler) verify(c *gin.Context) {
	requestID := GetRequestID(c)
	opLogger := logging.WithOperation(h.logger, "handlers.verify", requestID)

	req, cleanup, err := h.decodeRequest(c, opLogger)
	defer cleanup()
	if err != nil {
		verr, ok := facematch.AsValidationError(err)
		if !ok {
			verr = facematch.ErrMissingTarget
		}
		opLogger.Info("rejected verification request", zap.String("reason", verr.Message))
		c.JSON(verr.Status, gin.H{"error": verr.Message})
		return
	}

	outcomes := h.matcher.Match(c.Request.Context(), requestID, req)
	results := facematch.Partition(outcomes)

	opLogger.Info("verification finished",
		zap.Strings("matches", results.Matches),
		zap.Strings("non_matches", results.NonMatches),
	)
	c.JSON(http.StatusOK, results)
}

// decodeRequest reads the multipart body into a validated Request. The
// returned cleanup removes any temporary files and is always non-nil.
func (h *Handler) decodeRequest(c *gin.Context, logger *zap.Logger) (*facematch.Request, func(), error) {
	noop := func() {}
	c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, h.maxUploadBytes)

	form, err := c.MultipartForm()
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			return nil, noop, errRequestTooLarge
		}
		logger.Debug("request has no readable multipart form", zap.Error(err))
		return nil, noop, facematch.ErrMissingTarget
	}
	cleanup := func() {
		if err := form.RemoveAll(); err != nil {
			logger.Warn("failed to remove multipart temp files", zap.Error(err))
		}
	}

	targets := readUploads(form.File[targetField], logger)
	comparisons := readUploads(form.File[comparisonsField], logger)
	logger.Debug("received files",
		zap.Int("targets", len(targets)),
		zap.Int("comparisons", len(comparisons)),
	)

	req, err := facematch.NewRequest(targets, comparisons)
	return req, cleanup, err
}

// readUploads keeps every file header. A file that cannot be read is kept
// with empty data so it fails decoding and is reported as a non-match.
func readUploads(files []*multipart.FileHeader, logger *zap.Logger) []facematch.Upload {
	uploads := make([]facematch.Upload, 0, len(files))
	for _, fh := range files {
		data, err := readFile(fh)
		if err != nil {
			logger.Warn("failed to read uploaded file", zap.String("filename", fh.Filename), zap.Error(err))
		}
		uploads = append(uploads, facematch.Upload{Filename: fh.Filename, Data: data})
	}
	return uploads
}

func readFile(fh *multipart.FileHeader) ([]byte, error) {
	src, err := fh.Open()
	if err != nil {
		return nil, err
	}
	defer src.Close()
	return io.ReadAll(src)
}
