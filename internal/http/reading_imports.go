package http

import (
	"errors"
	"io"
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/mrlokans/shelfsync/internal/database/imports"
	"github.com/mrlokans/shelfsync/internal/importcache"
	"github.com/mrlokans/shelfsync/internal/importers"
	"github.com/mrlokans/shelfsync/internal/matcher"
	"github.com/mrlokans/shelfsync/internal/services"
	"github.com/mrlokans/shelfsync/internal/tasks"
)

// ReadingImportsController handles the upload, preview and execute flow for
// reading-history exports.
type ReadingImportsController struct {
	reconciler     ImportReconciler
	queue          TaskQueue
	maxUploadBytes int64
	skipDuplicates bool
	logger         *zap.Logger
}

// NewReadingImportsController creates a ReadingImportsController. queue may be
// nil, in which case executions always run inline.
func NewReadingImportsController(reconciler ImportReconciler, queue TaskQueue, maxUploadBytes int64, skipDuplicates bool, logger *zap.Logger) *ReadingImportsController {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ReadingImportsController{
		reconciler:     reconciler,
		queue:          queue,
		maxUploadBytes: maxUploadBytes,
		skipDuplicates: skipDuplicates,
		logger:         logger,
	}
}

// Upload handles POST /api/reading-imports.
// Accepts a multipart "file" and an optional "provider" form field; without a
// provider the export format is detected from its header row.
func (rc *ReadingImportsController) Upload(c *gin.Context) {
	if rc.maxUploadBytes > 0 {
		c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, rc.maxUploadBytes)
	}

	fileHeader, err := c.FormFile("file")
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			respondError(c, http.StatusRequestEntityTooLarge, "upload exceeds size limit")
			return
		}
		respondBadRequest(c, "file is required")
		return
	}

	var provider importers.Provider
	if raw := c.PostForm("provider"); raw != "" {
		provider, err = importers.ParseProvider(raw)
		if err != nil {
			respondBadRequest(c, err.Error())
			return
		}
	}

	file, err := fileHeader.Open()
	if err != nil {
		respondInternalError(c, rc.logger, err, "open upload")
		return
	}
	defer file.Close()

	result, err := rc.reconciler.Upload(c.Request.Context(), file, provider, fileHeader.Filename)
	if err != nil {
		var structural *importers.StructuralError
		if errors.As(err, &structural) {
			c.JSON(http.StatusUnprocessableEntity, ErrorResponse{
				Error:   structural.Error(),
				Code:    "invalid_export",
				Details: gin.H{"missing_columns": structural.MissingColumns},
			})
			return
		}
		respondInternalError(c, rc.logger, err, "upload reading import")
		return
	}

	respondCreated(c, result)
}

// Preview handles GET /api/reading-imports/:id
// Query parameters: confidence, offset, limit.
func (rc *ReadingImportsController) Preview(c *gin.Context) {
	id := c.Param("id")

	filter := services.PreviewFilter{}
	if raw := c.Query("confidence"); raw != "" {
		conf, err := matcher.ParseConfidence(raw)
		if err != nil {
			respondBadRequest(c, err.Error())
			return
		}
		filter.Confidence = conf
	}
	var ok bool
	if filter.Offset, ok = parseIntQuery(c, "offset", 0); !ok {
		return
	}
	if filter.Limit, ok = parseIntQuery(c, "limit", services.DefaultPreviewLimit); !ok {
		return
	}

	preview, err := rc.reconciler.Preview(id, filter)
	if err != nil {
		if errors.Is(err, importcache.ErrBatchNotFound) {
			respondGone(c, id)
			return
		}
		respondInternalError(c, rc.logger, err, "preview reading import")
		return
	}

	c.JSON(http.StatusOK, preview)
}

// ExecuteRequest is the request body for executing a cached import.
type ExecuteRequest struct {
	SkipDuplicates *bool  `json:"skip_duplicates"`
	MinConfidence  string `json:"min_confidence"`
	// Async runs the execution on the task queue when one is configured.
	// Defaults to true when the queue is available.
	Async *bool `json:"async"`
}

// Execute handles POST /api/reading-imports/:id/execute
func (rc *ReadingImportsController) Execute(c *gin.Context) {
	id := c.Param("id")

	var req ExecuteRequest
	// The body is optional; chunked requests report no length.
	if c.Request.Body != nil && c.Request.Body != http.NoBody {
		if err := c.ShouldBindJSON(&req); err != nil && !errors.Is(err, io.EOF) {
			respondBadRequest(c, "invalid request body")
			return
		}
	}

	opts := services.ExecuteOptions{SkipDuplicates: rc.skipDuplicates}
	if req.SkipDuplicates != nil {
		opts.SkipDuplicates = *req.SkipDuplicates
	}
	if req.MinConfidence != "" {
		conf, err := matcher.ParseConfidence(req.MinConfidence)
		if err != nil {
			respondBadRequest(c, err.Error())
			return
		}
		opts.MinConfidence = conf
	}

	async := rc.queue != nil
	if req.Async != nil {
		async = async && *req.Async
	}

	if async {
		if !rc.reconciler.Exists(id) {
			respondGone(c, id)
			return
		}
		taskID, err := rc.queue.Enqueue(tasks.ExecuteImportTask{
			ImportID:       id,
			SkipDuplicates: opts.SkipDuplicates,
			MinConfidence:  string(opts.MinConfidence),
		})
		if err != nil {
			respondInternalError(c, rc.logger, err, "enqueue import execution")
			return
		}
		rc.logger.Info("import execution enqueued", zap.String("import_id", id), zap.String("task_id", taskID))
		respondAccepted(c, "import execution enqueued", gin.H{
			"task_id":   taskID,
			"import_id": id,
		})
		return
	}

	summary, err := rc.reconciler.Execute(c.Request.Context(), id, opts)
	if err != nil {
		if errors.Is(err, importcache.ErrBatchNotFound) {
			respondGone(c, id)
			return
		}
		respondInternalError(c, rc.logger, err, "execute reading import")
		return
	}

	c.JSON(http.StatusOK, summary)
}

// Run handles GET /api/reading-imports/:id/run
// Returns the persisted record of an execution.
func (rc *ReadingImportsController) Run(c *gin.Context) {
	run, err := rc.reconciler.Run(c.Request.Context(), c.Param("id"))
	if err != nil {
		if errors.Is(err, imports.ErrRunNotFound) {
			respondNotFound(c, "import run")
			return
		}
		respondInternalError(c, rc.logger, err, "get import run")
		return
	}
	c.JSON(http.StatusOK, run)
}

// Discard handles DELETE /api/reading-imports/:id
func (rc *ReadingImportsController) Discard(c *gin.Context) {
	id := c.Param("id")
	if !rc.reconciler.Discard(id) {
		respondGone(c, id)
		return
	}
	respondSuccess(c, "import discarded")
}
