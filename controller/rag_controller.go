package controller

import (
	"errors"
	"fmt"
	"io"
	"log"
	"net/http"

	"github.com/gin-gonic/gin"

	"github/itish2003/docqa/models"
	"github/itish2003/docqa/services"
)

// RAGController handles the HTTP requests for the document QA API. It
// depends on the RAGService to perform the actual business logic.
type RAGController struct {
	ragService     services.RAGService
	maxUploadBytes int64
}

// NewRAGController is a constructor function that creates a new RAGController.
func NewRAGController(service services.RAGService, maxUploadBytes int64) *RAGController {
	return &RAGController{
		ragService:     service,
		maxUploadBytes: maxUploadBytes,
	}
}

// RegisterRoutes wires the handlers into router.
func (c *RAGController) RegisterRoutes(router gin.IRouter) {
	router.POST("/upload", c.Upload)
	router.POST("/ask", c.Ask)
	router.GET("/sessions", c.ListSessions)
}

// Upload is the Gin handler for the POST /upload endpoint. It expects a
// multipart form with the document in the "file" field.
func (c *RAGController) Upload(ctx *gin.Context) {
	if c.maxUploadBytes > 0 {
		// Leave room for the multipart envelope around the file.
		ctx.Request.Body = http.MaxBytesReader(ctx.Writer, ctx.Request.Body, c.maxUploadBytes+1<<20)
	}

	fileHeader, err := ctx.FormFile("file")
	if err != nil {
		var maxErr *http.MaxBytesError
		if errors.As(err, &maxErr) {
			respondError(ctx, &services.Error{Code: services.CodeUploadTooLarge, Message: "Uploaded file is too large."})
			return
		}
		respondError(ctx, &services.Error{Code: services.CodeInvalidRequest, Message: "Missing multipart file field 'file'.", Err: err})
		return
	}
	if c.maxUploadBytes > 0 && fileHeader.Size > c.maxUploadBytes {
		respondError(ctx, &services.Error{
			Code:    services.CodeUploadTooLarge,
			Message: fmt.Sprintf("Uploaded file exceeds %d bytes.", c.maxUploadBytes),
		})
		return
	}

	f, err := fileHeader.Open()
	if err != nil {
		respondError(ctx, &services.Error{Code: services.CodeInvalidRequest, Message: "Could not read the uploaded file.", Err: err})
		return
	}
	defer f.Close()
	content, err := io.ReadAll(f)
	if err != nil {
		respondError(ctx, &services.Error{Code: services.CodeInvalidRequest, Message: "Could not read the uploaded file.", Err: err})
		return
	}

	response, err := c.ragService.UploadDocument(ctx.Request.Context(), models.UploadDocumentRequest{
		Filename: fileHeader.Filename,
		Content:  content,
		Origin:   "upload",
	})
	if err != nil {
		respondError(ctx, err)
		return
	}

	ctx.JSON(http.StatusOK, response)
}

// Ask is the Gin handler for the POST /ask endpoint.
func (c *RAGController) Ask(ctx *gin.Context) {
	var req models.AskRequest

	if err := ctx.ShouldBindJSON(&req); err != nil {
		respondError(ctx, &services.Error{Code: services.CodeInvalidRequest, Message: "Invalid request body: " + err.Error(), Err: err})
		return
	}

	response, err := c.ragService.Ask(ctx.Request.Context(), req)
	if err != nil {
		respondError(ctx, err)
		return
	}

	ctx.JSON(http.StatusOK, response)
}

// ListSessions is the Gin handler for the GET /sessions endpoint.
func (c *RAGController) ListSessions(ctx *gin.Context) {
	ctx.JSON(http.StatusOK, c.ragService.ListSessions(ctx.Request.Context()))
}

// respondError maps a service error to its status code and JSON body.
func respondError(ctx *gin.Context, err error) {
	code := services.CodeOf(err)
	status := StatusFor(code)
	if status >= http.StatusInternalServerError {
		log.Printf("CONTROLLER: %s %s failed: %v", ctx.Request.Method, ctx.FullPath(), err)
	}
	ctx.AbortWithStatusJSON(status, models.ErrorResponse{
		Error: services.MessageOf(err),
		Code:  string(code),
	})
}

// StatusFor returns the HTTP status used for an error code.
func StatusFor(code services.ErrorCode) int {
	switch code {
	case services.CodeInvalidRequest:
		return http.StatusBadRequest
	case services.CodeSessionNotFound:
		return http.StatusNotFound
	case services.CodeNoActiveSession:
		return http.StatusConflict
	case services.CodeUploadTooLarge:
		return http.StatusRequestEntityTooLarge
	case services.CodeUnsupportedFile:
		return http.StatusUnsupportedMediaType
	case services.CodeEmptyDocument, services.CodeInvalidConfiguration:
		return http.StatusUnprocessableEntity
	case services.CodeTranslationUnavailable, services.CodeEmbeddingProvider,
		services.CodeGenerationProvider, services.CodeVectorStore:
		return http.StatusBadGateway
	case services.CodeProviderTimeout:
		return http.StatusGatewayTimeout
	default:
		return http.StatusInternalServerError
	}
}
