package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"time"

	"github.com/google/uuid"
	"github.com/xuri/excelize/v2"

	"tripsplit/internal/clients"
	"tripsplit/internal/domain"
	"tripsplit/internal/repository"
	"tripsplit/internal/splitter"
)

// ExportStatus is the redis-persisted progress record of one export run.
type ExportStatus struct {
	Key      string    `json:"key"`
	Type     string    `json:"type"`
	MemberID string    `json:"member_id"`
	TripID   string    `json:"trip_id"`
	Progress float64   `json:"progress"`
	FileURL  *string   `json:"file_url"`
	Error    *string   `json:"error,omitempty"`
	Created  time.Time `json:"created_at"`
}

const (
	exportSetKey = "export_ids"
	exportTTL    = 20 * time.Minute
)

// ExportService renders a trip's payments, splits and balances to xlsx in
// the background. Progress lives in redis, the file in export storage,
// and notifications go out over the websocket hub.
type ExportService struct {
	store   repository.Store
	members repository.MemberDirectory
	redis   *clients.RedisClient
	storage clients.ExportStorage
	ws      *clients.WebSocketClient
}

func NewExportService(store repository.Store, members repository.MemberDirectory, redis *clients.RedisClient, storage clients.ExportStorage, ws *clients.WebSocketClient) *ExportService {
	return &ExportService{store: store, members: members, redis: redis, storage: storage, ws: ws}
}

func (s *ExportService) saveStatus(ctx context.Context, st *ExportStatus) error {
	if s.redis == nil {
		return nil
	}
	data, err := json.Marshal(st)
	if err != nil {
		return err
	}
	if err := s.redis.Set(ctx, st.Key, string(data), exportTTL); err != nil {
		return err
	}
	return s.redis.SAdd(ctx, exportSetKey, st.Key)
}

// StartTripExport kicks off a background export of the trip's payment
// state for the requesting member and returns the export id to poll.
func (s *ExportService) StartTripExport(ctx context.Context, tripID, memberID string) (string, error) {
	exportID := fmt.Sprintf("exports:%s", uuid.NewString())
	now := time.Now()

	status := &ExportStatus{
		Key:      exportID,
		Type:     "trip_payments",
		MemberID: memberID,
		TripID:   tripID,
		Progress: 0,
		Created:  now,
	}
	_ = s.saveStatus(ctx, status)

	go s.runTripExport(context.Background(), exportID, tripID, memberID, now)

	return exportID, nil
}

func (s *ExportService) runTripExport(ctx context.Context, exportID, tripID, memberID string, createdAt time.Time) {
	status := &ExportStatus{
		Key:      exportID,
		Type:     "trip_payments",
		MemberID: memberID,
		TripID:   tripID,
		Created:  createdAt,
	}

	fail := func(err error) {
		errStr := err.Error()
		slog.Error("export failed", "export_id", exportID, "trip_id", tripID, "error", err)
		status.Error = &errStr
		status.Progress = 100
		_ = s.saveStatus(ctx, status)
		if s.ws != nil {
			_ = s.ws.NotifyExportFailed(ctx, memberID, exportID, errStr)
		}
	}

	payments, err := s.store.ListByTrip(ctx, tripID)
	if err != nil {
		fail(err)
		return
	}

	members, err := s.members.ListTripMembers(ctx, tripID)
	if err != nil {
		fail(err)
		return
	}
	names := make(map[string]string, len(members))
	for _, m := range members {
		names[m.ID] = m.DisplayName
	}
	displayName := func(id string) string {
		if n, ok := names[id]; ok {
			return n
		}
		return id
	}

	f := excelize.NewFile()
	paymentsSheet := "Payments"
	f.SetSheetName(f.GetSheetName(0), paymentsSheet)
	_ = f.SetDocProps(&excelize.DocProperties{Creator: displayName(memberID)})

	paymentHeaders := []string{"ID", "Description", "Amount", "Currency", "Created by", "Participants", "Settled", "Created at"}
	for i, h := range paymentHeaders {
		cell, _ := excelize.CoordinatesToCellName(i+1, 1)
		_ = f.SetCellValue(paymentsSheet, cell, h)
	}

	splitsSheet := "Splits"
	_, _ = f.NewSheet(splitsSheet)
	splitHeaders := []string{"Payment", "Debtor", "Amount owed", "Currency", "Settled", "Settled at", "Method"}
	for i, h := range splitHeaders {
		cell, _ := excelize.CoordinatesToCellName(i+1, 1)
		_ = f.SetCellValue(splitsSheet, cell, h)
	}

	total := len(payments)
	paymentRow := 2
	splitRow := 2
	for i := range payments {
		p := &payments[i]

		settledState := fmt.Sprintf("%d/%d", p.SettledCount(), len(p.Splits))
		values := []any{
			p.ID, p.Description, p.Amount.String(), p.Amount.Currency,
			displayName(p.CreatedBy), len(p.ParticipantIDs), settledState,
			p.CreatedAt.Format("2006-01-02 15:04:05"),
		}
		for col, v := range values {
			cell, _ := excelize.CoordinatesToCellName(col+1, paymentRow)
			_ = f.SetCellValue(paymentsSheet, cell, v)
		}
		paymentRow++

		for j := range p.Splits {
			sp := &p.Splits[j]
			settledAt := ""
			if sp.SettledAt != nil {
				settledAt = sp.SettledAt.Format("2006-01-02 15:04:05")
			}
			method := ""
			if sp.Method != nil {
				method = *sp.Method
			}
			splitValues := []any{
				p.Description, displayName(sp.DebtorID), sp.AmountOwed.String(),
				sp.AmountOwed.Currency, sp.Settled, settledAt, method,
			}
			for col, v := range splitValues {
				cell, _ := excelize.CoordinatesToCellName(col+1, splitRow)
				_ = f.SetCellValue(splitsSheet, cell, v)
			}
			splitRow++
		}

		if total > 0 {
			progress := float64(i+1) / float64(total) * 90.0
			status.Progress = progress
			_ = s.saveStatus(ctx, status)
			if s.ws != nil {
				_ = s.ws.NotifyExportProgress(ctx, memberID, exportID, progress, "generating")
			}
		}
	}

	// Balance matrix: one row per member with their current summary.
	balancesSheet := "Balances"
	_, _ = f.NewSheet(balancesSheet)
	balanceHeaders := []string{"Member", "You owe", "Owed to you", "Net"}
	for i, h := range balanceHeaders {
		cell, _ := excelize.CoordinatesToCellName(i+1, 1)
		_ = f.SetCellValue(balancesSheet, cell, h)
	}
	row := 2
	for _, m := range members {
		summary := splitter.Summarize(tripID, m.ID, payments)
		values := []any{
			m.DisplayName,
			summary.TotalYouOwe.String(),
			summary.TotalOwedToYou.String(),
			summary.Net.String(),
		}
		for col, v := range values {
			cell, _ := excelize.CoordinatesToCellName(col+1, row)
			_ = f.SetCellValue(balancesSheet, cell, v)
		}
		row++
	}

	buf, err := f.WriteToBuffer()
	if err != nil {
		fail(err)
		return
	}

	fileName := fmt.Sprintf("trip_%s_payments_%s.xlsx", tripID, time.Now().Format("20060102_150405"))

	status.Progress = 95
	_ = s.saveStatus(ctx, status)
	if s.ws != nil {
		_ = s.ws.NotifyExportProgress(ctx, memberID, exportID, 95, "uploading")
	}

	savedName, err := s.storage.Save(ctx, fileName, buf.Bytes())
	if err != nil {
		fail(fmt.Errorf("save export failed: %w", err))
		return
	}

	url := s.storage.GetURL(savedName)
	status.FileURL = &url
	status.Progress = 100
	_ = s.saveStatus(ctx, status)
	if s.ws != nil {
		_ = s.ws.NotifyExportProgress(ctx, memberID, exportID, 100, "ready")
		_ = s.ws.NotifyExportComplete(ctx, memberID, exportID, url, fileName)
	}
	slog.Info("export complete", "export_id", exportID, "trip_id", tripID, "file", savedName)
}

// GetExports lists the member's export runs, newest first.
func (s *ExportService) GetExports(ctx context.Context, memberID string) ([]map[string]any, error) {
	if s.redis == nil {
		return nil, errors.New("redis client not configured")
	}

	keys, err := s.redis.SMembers(ctx, exportSetKey)
	if err != nil {
		return nil, fmt.Errorf("failed to get export keys: %w", err)
	}

	var statuses []ExportStatus
	for _, key := range keys {
		data, err := s.redis.Get(ctx, key)
		if err != nil {
			continue
		}
		var status ExportStatus
		if err := json.Unmarshal([]byte(data), &status); err != nil {
			continue
		}
		if status.MemberID == memberID {
			statuses = append(statuses, status)
		}
	}

	sort.Slice(statuses, func(i, j int) bool {
		return statuses[i].Created.After(statuses[j].Created)
	})

	out := make([]map[string]any, 0, len(statuses))
	for _, status := range statuses {
		out = append(out, exportMap(status))
	}
	return out, nil
}

// GetExport returns one export run, scoped to its owner.
func (s *ExportService) GetExport(ctx context.Context, exportID, memberID string) (map[string]any, error) {
	if s.redis == nil {
		return nil, errors.New("redis client not configured")
	}

	data, err := s.redis.Get(ctx, exportID)
	if err != nil {
		return nil, domain.ErrNotFound
	}

	var status ExportStatus
	if err := json.Unmarshal([]byte(data), &status); err != nil {
		return nil, fmt.Errorf("failed to parse export status: %w", err)
	}

	if status.MemberID != memberID {
		return nil, domain.ErrNotFound
	}

	return exportMap(status), nil
}

func exportMap(status ExportStatus) map[string]any {
	return map[string]any{
		"key":        status.Key,
		"type":       status.Type,
		"member_id":  status.MemberID,
		"trip_id":    status.TripID,
		"progress":   status.Progress,
		"file_url":   status.FileURL,
		"error":      status.Error,
		"created_at": humanizeAgo(status.Created),
	}
}

func humanizeAgo(t time.Time) string {
	now := time.Now()
	if t.After(now) {
		return "just now"
	}

	diff := now.Sub(t)
	minutes := int(diff.Minutes())
	if minutes < 1 {
		return "just now"
	}
	if minutes < 60 {
		return fmt.Sprintf("%d min ago", minutes)
	}
	hours := minutes / 60
	if hours < 24 {
		return fmt.Sprintf("%d h ago", hours)
	}
	days := hours / 24
	if days < 30 {
		return fmt.Sprintf("%d d ago", days)
	}
	return t.Format("2006-01-02 15:04")
}
