package service

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/noah-isme/skillswap-api/internal/dto"
	"github.com/noah-isme/skillswap-api/internal/models"
	appErrors "github.com/noah-isme/skillswap-api/pkg/errors"
	"github.com/noah-isme/skillswap-api/pkg/export"
	"github.com/noah-isme/skillswap-api/pkg/storage"
)

const defaultExportRowLimit = 10000

type exportSwapRepository interface {
	ExportRows(ctx context.Context, status *models.SwapStatus, limit int) ([]models.SwapExportRow, error)
}

type exportAuditWriter interface {
	CreateAuditLog(ctx context.Context, log *models.AuditLog) error
}

type fileStorage interface {
	Save(relPath string, data []byte) (string, error)
	Open(relPath string) (io.ReadSeekCloser, os.FileInfo, error)
	Delete(relPath string) error
	CleanupOlderThan(ttl time.Duration) ([]string, error)
}

type datasetRenderer interface {
	Render(data export.Dataset) ([]byte, error)
}

// ExportConfig tunes export behaviour.
type ExportConfig struct {
	APIPrefix string
	MaxRows   int
}

// ExportDownload is an opened export file ready to stream.
type ExportDownload struct {
	Content     io.ReadSeekCloser
	Filename    string
	ContentType string
	ModTime     time.Time
	Size        int64
}

// ExportService renders swap moderation exports and serves them behind signed links.
type ExportService struct {
	swaps     exportSwapRepository
	audits    exportAuditWriter
	storage   fileStorage
	signer    *storage.SignedURLSigner
	renderers map[export.Format]datasetRenderer
	metrics   *MetricsService
	validator *validator.Validate
	logger    *zap.Logger
	cfg       ExportConfig
	now       func() time.Time
}

// NewExportService constructs an ExportService.
func NewExportService(swaps exportSwapRepository, audits exportAuditWriter, store fileStorage, signer *storage.SignedURLSigner, metrics *MetricsService, validate *validator.Validate, logger *zap.Logger, cfg ExportConfig) *ExportService {
	if logger == nil {
		logger = zap.NewNop()
	}
	if validate == nil {
		validate = validator.New()
	}
	if cfg.MaxRows <= 0 {
		cfg.MaxRows = defaultExportRowLimit
	}
	if strings.TrimRight(cfg.APIPrefix, "/") == "" {
		cfg.APIPrefix = "/api/v1"
	}
	return &ExportService{
		swaps:   swaps,
		audits:  audits,
		storage: store,
		signer:  signer,
		renderers: map[export.Format]datasetRenderer{
			export.FormatCSV: export.NewCSVExporter(),
			export.FormatPDF: export.NewPDFExporter(),
		},
		metrics:   metrics,
		validator: validate,
		logger:    logger,
		cfg:       cfg,
		now:       time.Now,
	}
}

// ExportSwaps renders every swap matching the status filter and returns a signed download link.
func (s *ExportService) ExportSwaps(ctx context.Context, adminID string, req dto.SwapExportRequest, meta dto.AuditMeta) (result *dto.ExportResult, err error) {
	format, formatErr := export.ParseFormat(req.Format)
	defer func() { s.metrics.RecordExport(string(format), err) }()

	if vErr := s.validator.Struct(req); vErr != nil {
		return nil, validationError(vErr, "invalid export request")
	}
	if formatErr != nil {
		return nil, validationError(formatErr, "format must be csv or pdf")
	}
	status, err := parseSwapStatus(req.Status)
	if err != nil {
		return nil, err
	}

	rows, err := s.swaps.ExportRows(ctx, status, s.cfg.MaxRows)
	if err != nil {
		return nil, internalError(err, "failed to load swaps for export")
	}

	generatedAt := s.now().UTC()
	payload, err := s.renderers[format].Render(swapDataset(rows, status))
	if err != nil {
		return nil, internalError(err, "failed to render export")
	}

	id := uuid.NewString()
	relPath, err := s.storage.Save(path.Join("swaps", generatedAt.Format("20060102"), id+"."+string(format)), payload)
	if err != nil {
		return nil, internalError(err, "failed to store export")
	}

	token, expiresAt, err := s.signer.Generate(id, relPath)
	if err != nil {
		if delErr := s.storage.Delete(relPath); delErr != nil {
			s.logger.Warn("failed to remove unsigned export", zap.String("path", relPath), zap.Error(delErr))
		}
		return nil, internalError(err, "failed to sign export link")
	}

	s.audit(ctx, adminID, id, req, len(rows), meta)
	s.logger.Info("swap export generated",
		zap.String("export_id", id),
		zap.String("format", string(format)),
		zap.Int("rows", len(rows)),
	)

	return &dto.ExportResult{
		ID:          id,
		Format:      string(format),
		RowCount:    len(rows),
		DownloadURL: fmt.Sprintf("%s/exports/%s", strings.TrimRight(s.cfg.APIPrefix, "/"), token),
		ExpiresAt:   expiresAt,
	}, nil
}

// Open verifies a download token and opens the export it points at.
func (s *ExportService) Open(token string) (*ExportDownload, error) {
	obj, err := s.signer.Verify(token)
	switch {
	case errors.Is(err, storage.ErrTokenExpired):
		return nil, appErrors.Clone(appErrors.ErrForbidden, "download link has expired")
	case err != nil:
		return nil, appErrors.Clone(appErrors.ErrNotFound, "export not found")
	}

	content, info, err := s.storage.Open(obj.Path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "export not found")
		}
		return nil, internalError(err, "failed to open export")
	}

	ext := strings.TrimPrefix(path.Ext(obj.Path), ".")
	format, err := export.ParseFormat(ext)
	if err != nil {
		content.Close()
		return nil, internalError(err, "unknown export format")
	}

	return &ExportDownload{
		Content:     content,
		Filename:    "swaps-" + obj.ID + "." + string(format),
		ContentType: format.ContentType(),
		ModTime:     info.ModTime(),
		Size:        info.Size(),
	}, nil
}

// Cleanup removes exports older than the signing TTL. Links to them have expired anyway.
func (s *ExportService) Cleanup() (int, error) {
	removed, err := s.storage.CleanupOlderThan(s.signer.TTL())
	if err != nil {
		return len(removed), err
	}
	if len(removed) > 0 {
		s.logger.Info("expired exports removed", zap.Int("count", len(removed)))
	}
	return len(removed), nil
}

func (s *ExportService) audit(ctx context.Context, adminID, exportID string, req dto.SwapExportRequest, rows int, meta dto.AuditMeta) {
	if s.audits == nil {
		return
	}
	entry := &models.AuditLog{
		UserID:     &adminID,
		Action:     models.AuditActionSwapExport,
		Resource:   "export",
		ResourceID: &exportID,
		NewValues: marshalAudit(map[string]interface{}{
			"format": strings.ToLower(req.Format),
			"status": req.Status,
			"rows":   rows,
		}),
		IPAddress: meta.IP,
		UserAgent: meta.UserAgent,
	}
	if err := s.audits.CreateAuditLog(ctx, entry); err != nil {
		s.logger.Warn("failed to record audit log", zap.String("action", entry.Action), zap.String("resource_id", exportID), zap.Error(err))
	}
}

func swapDataset(rows []models.SwapExportRow, status *models.SwapStatus) export.Dataset {
	title := "Swap moderation export"
	if status != nil {
		title += " (" + string(*status) + ")"
	}
	data := export.Dataset{
		Title: title,
		Columns: []export.Column{
			{Key: "id", Title: "Swap ID", Weight: 2.2},
			{Key: "status", Title: "Status"},
			{Key: "requester", Title: "Requester", Weight: 1.6},
			{Key: "requester_email", Title: "Requester email", Weight: 1.8},
			{Key: "requester_skill", Title: "Offers", Weight: 1.3},
			{Key: "recipient", Title: "Recipient", Weight: 1.6},
			{Key: "recipient_email", Title: "Recipient email", Weight: 1.8},
			{Key: "recipient_skill", Title: "Wants", Weight: 1.3},
			{Key: "created_at", Title: "Created", Weight: 1.5},
			{Key: "completed_at", Title: "Completed", Weight: 1.5},
		},
		Rows: make([]map[string]string, 0, len(rows)),
	}
	for _, row := range rows {
		completed := ""
		if row.CompletedAt != nil {
			completed = row.CompletedAt.UTC().Format(time.RFC3339)
		}
		data.Rows = append(data.Rows, map[string]string{
			"id":              row.ID,
			"status":          string(row.Status),
			"requester":       row.RequesterName,
			"requester_email": row.RequesterEmail,
			"requester_skill": row.RequesterSkill,
			"recipient":       row.RecipientName,
			"recipient_email": row.RecipientEmail,
			"recipient_skill": row.RecipientSkill,
			"created_at":      row.CreatedAt.UTC().Format(time.RFC3339),
			"completed_at":    completed,
		})
	}
	return data
}
